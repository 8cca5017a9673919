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
	"database/sql"
	"sync"
	"time"

	"github.com/blnkfinance/payrec/config"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	maxConnectRetries = 5
	maxOpenConns      = 25
	connMaxIdleTime   = 5 * time.Minute
)

var (
	instance *Datasource
	once     sync.Once
)

// Datasource is the Postgres implementation of IDataSource. Tables live in the
// payrec schema created by the migrations under sql/.
type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection returns the process-wide datasource, connecting on first use.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the pool and pings it with exponential backoff, so the
// service survives the database coming up after it.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxConnectRetries)
	err = backoff.RetryNotify(db.Ping, policy, func(err error, wait time.Duration) {
		logrus.WithError(err).WithField("retry_in", wait).Warn("database connection failed, retrying")
	})
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Error("database connection error ❌")
		return nil, err
	}
	return db, nil
}
