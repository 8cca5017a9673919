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
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/payrec"
	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/database"
	"github.com/blnkfinance/payrec/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Payrec represents the CLI application, encapsulating the root Cobra command.
type Payrec struct {
	cmd *cobra.Command
}

// payrecInstance holds the service and its configuration for the commands.
type payrecInstance struct {
	payrec *payrec.Payrec
	cnf    *config.Configuration
}

// recoverPanic logs a panic that escaped a command and exits.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the service before any command runs.
// Commands that manage the schema only need the configuration.
func preRun(app *payrecInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if cmd.Annotations["skip_service"] == "true" {
			return nil
		}

		newPayrec, err := setupPayrec(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.payrec = newPayrec

		return nil
	}
}

// setupPayrec connects to the datasource and builds the service around it.
func setupPayrec(cfg *config.Configuration) (*payrec.Payrec, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPayrec, err := payrec.New(db)
	if err != nil {
		return nil, fmt.Errorf("error creating payrec: %v", err)
	}
	return newPayrec, nil
}

// NewCLI creates the root command with the server, workers, migrate and sync subcommands.
func NewCLI() *Payrec {
	var configFile string
	p := &payrecInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payrec",
		Short: "Payment reconciliation and order sync",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payrec.json", "Configuration file for payrec")
	rootCmd.PersistentPreRunE = preRun(p, &configFile)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))
	rootCmd.AddCommand(migrateCommands(p))
	rootCmd.AddCommand(syncCommands(p))
	rootCmd.AddCommand(configCommands(p))

	return &Payrec{cmd: rootCmd}
}

func (w Payrec) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
