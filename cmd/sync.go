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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/payrec/model"
	"github.com/spf13/cobra"
)

type syncOutput struct {
	Source string           `json:"source"`
	Result model.SyncResult `json:"result"`
	Error  string           `json:"error,omitempty"`
}

// syncCommands groups the one-shot sync operations.
func syncCommands(p *payrecInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "run order synchronization",
	}

	cmd.AddCommand(syncTriggerCommand(p))
	cmd.AddCommand(syncResyncCommand(p))

	return cmd
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
	fmt.Println(string(data))
}

// syncTriggerCommand runs one sync job inline and prints what it did.
func syncTriggerCommand(p *payrecInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "poll the store, drain the sync queue and clean up once",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := p.payrec.RunSync(context.Background(), "cli")
			out := syncOutput{Source: "cli", Result: result}
			if err != nil {
				out.Error = err.Error()
			}
			printJSON(out)
			if err != nil {
				os.Exit(1)
			}
		},
	}
}

func syncResyncCommand(p *payrecInstance) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "enqueue a sync for every mirrored order",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := p.payrec.ResyncOrders(context.Background(), limit)
			if err != nil {
				log.Fatalf("Error enqueuing resync: %v\n", err)
			}
			printJSON(map[string]int{"enqueued": n})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of orders to enqueue, 0 uses the configured limit")

	return cmd
}
