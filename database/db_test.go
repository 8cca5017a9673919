/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/payrec/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDBConnection_Singleton(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instance = &Datasource{Conn: db}
	once = sync.Once{}
	once.Do(func() {})
	defer func() {
		instance = nil
		once = sync.Once{}
	}()

	cfg := &config.Configuration{DataSource: config.DataSourceConfig{Dns: "postgres://postgres@localhost/payrec?sslmode=disable"}}
	ds1, err := GetDBConnection(cfg)
	assert.NoError(t, err)
	ds2, err := GetDBConnection(cfg)
	assert.NoError(t, err)
	assert.Same(t, ds1, ds2)
	assert.Same(t, db, ds1.Conn)
}

func TestConnectDB_Failure(t *testing.T) {
	if testing.Short() {
		t.Skip("retries with backoff")
	}

	db, err := ConnectDB("postgres://postgres@127.0.0.1:1/payrec?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestGetDBConnection_Failure(t *testing.T) {
	if testing.Short() {
		t.Skip("retries with backoff")
	}
	instance = nil
	once = sync.Once{}
	defer func() { once = sync.Once{} }()

	_, err := GetDBConnection(&config.Configuration{DataSource: config.DataSourceConfig{Dns: "postgres://postgres@127.0.0.1:1/payrec?sslmode=disable"}})
	assert.Error(t, err)
}
