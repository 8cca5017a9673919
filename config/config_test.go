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

package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	}
	err := cnf.validateAndAddDefaults()
	require.Error(t, err)
	assert.Equal(t, "data source DNS is required", err.Error())

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
	}
	err = cnf.validateAndAddDefaults()
	require.Error(t, err)
	assert.Equal(t, "redis DNS is required", err.Error())

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource:  DataSourceConfig{Dns: "some-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
		Platform:    PlatformConfig{BaseURL: "https://api.example.com/v1/ "},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, float64(DEFAULT_TOLERANCE), cnf.Payment.Tolerance)
	assert.Equal(t, DEFAULT_SYNC_MAX_ATTEMPTS, cnf.Sync.MaxAttempts)
	assert.Equal(t, DEFAULT_SYNC_BATCH_SIZE, cnf.Sync.BatchSize)
	assert.Equal(t, DEFAULT_SYNC_RETENTION_DAYS, cnf.Sync.RetentionDays)
	assert.Equal(t, DEFAULT_DEBOUNCE_WINDOW_SEC, cnf.Receipts.DebounceWindowSec)
	assert.Equal(t, DEFAULT_WEBHOOK_SIGNATURE_HDR, cnf.Platform.SignatureHeader)
	assert.Equal(t, "https://api.example.com/v1", cnf.Platform.BaseURL)
	assert.Equal(t, "1000", cnf.Tolerance().String())
	assert.Equal(t, "1m0s", cnf.SyncBaseDelay().String())
}

func TestValidateRejectsUnknownStorageProvider(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Storage:    StorageConfig{Provider: "Azure"},
	}
	err := cnf.validateAndAddDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage provider")
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "payrec.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "temp-redis"},
		Payment:     PaymentConfig{Tolerance: 500},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	t.Setenv("PAYREC_PROJECT_NAME", "Env Project")
	t.Setenv("PAYREC_SYNC_MAX_ATTEMPTS", "8")

	require.NoError(t, loadConfigFromFile(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, float64(500), loadedConfig.Payment.Tolerance)
	assert.Equal(t, 8, loadedConfig.Sync.MaxAttempts)
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "payrec.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource:  DataSourceConfig{Dns: "init-config-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	require.NoError(t, InitConfig(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "InitConfig Test", loadedConfig.ProjectName)
	assert.Equal(t, "init-config-dns", loadedConfig.DataSource.Dns)
}
