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

package main

import (
	"testing"

	"github.com/blnkfinance/payrec/config"
	"github.com/stretchr/testify/assert"
)

func TestRedactConfig(t *testing.T) {
	cfg := config.Configuration{
		ProjectName: "payrec",
		Server:      config.ServerConfig{SecretKey: "top-secret", Port: "5001"},
		Platform:    config.PlatformConfig{StoreID: "123", WebhookSecret: "s3cr3t"},
	}

	out := redactConfig(cfg)
	assert.Equal(t, redacted, out.Server.SecretKey)
	assert.Equal(t, redacted, out.Platform.WebhookSecret)
	assert.Equal(t, "", out.Platform.AccessToken)
	assert.Equal(t, "123", out.Platform.StoreID)
	assert.Equal(t, "top-secret", cfg.Server.SecretKey)
}

func TestInitializeQueues(t *testing.T) {
	cfg := &config.Configuration{Queue: config.QueueConfig{SyncQueue: "payrec_sync", MessagingQueue: "payrec_messages"}}
	queues := initializeQueues(cfg)
	assert.Equal(t, 3, queues["payrec_sync"])
	assert.Equal(t, 1, queues["payrec_messages"])
}
