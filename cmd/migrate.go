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

/*
Package main provides the CLI commands for managing database migrations in payrec.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/blnkfinance/payrec"
	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

const migrationSchema = "payrec"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(_ *payrecInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "run payrec migrations",
		Annotations: map[string]string{"skip_service": "true"},
	}

	cmd.AddCommand(migrateUpCommands())
	cmd.AddCommand(migrateDownCommands())

	return cmd
}

// prepareMigration connects to the database and makes sure the schema that
// holds the migration table exists.
func prepareMigration() (*sql.DB, migrate.EmbedFileSystemMigrationSource, error) {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: payrec.SQLFiles,
		Root:       "sql",
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, migrations, fmt.Errorf("error fetching config: %v", err)
	}

	db, err := database.ConnectDB(cnf.DataSource.Dns)
	if err != nil {
		return nil, migrations, fmt.Errorf("error connecting to database: %v", err)
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + migrationSchema); err != nil {
		_ = db.Close()
		return nil, migrations, fmt.Errorf("error creating schema: %v", err)
	}
	migrate.SetSchema(migrationSchema)

	return db, migrations, nil
}

// migrateUpCommands creates the command for applying migrations.
func migrateUpCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "up",
		Annotations: map[string]string{"skip_service": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			db, migrations, err := prepareMigration()
			if err != nil {
				log.Print(err)
				return
			}
			defer db.Close()

			n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
			} else {
				fmt.Printf("Applied %d migrations!\n", n)
			}
		},
	}

	return cmd
}

// migrateDownCommands creates the command for rolling back migrations.
func migrateDownCommands() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:         "down",
		Annotations: map[string]string{"skip_service": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			db, migrations, err := prepareMigration()
			if err != nil {
				log.Print(err)
				return
			}
			defer db.Close()

			n, err := migrate.ExecMax(db, "postgres", migrations, migrate.Down, steps)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back, 0 rolls back all")

	return cmd
}
