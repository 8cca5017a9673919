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
	"encoding/json"
	"fmt"
	"log"

	"github.com/blnkfinance/payrec/config"
	"github.com/spf13/cobra"
)

const redacted = "********"

// redactConfig blanks every credential so the computed configuration can be
// printed safely.
func redactConfig(cfg config.Configuration) config.Configuration {
	for _, secret := range []*string{
		&cfg.Server.SecretKey,
		&cfg.DataSource.Dns,
		&cfg.Redis.Dns,
		&cfg.Platform.AccessToken,
		&cfg.Platform.WebhookSecret,
		&cfg.Storage.AwsSecretAccessKey,
		&cfg.Storage.GCSCredentialsJSON,
		&cfg.Messaging.Token,
		&cfg.OCR.ApiKey,
		&cfg.Notification.Slack.WebhookUrl,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return cfg
}

func configCommands(_ *payrecInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "config outputs your instance's computed configuration",
		Annotations: map[string]string{"skip_service": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redactConfig(*cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
