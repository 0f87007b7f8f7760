// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command toolgate is the operator CLI for the smart proxy gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stacklok/toolgate/pkg/logger"
	"github.com/stacklok/toolgate/pkg/vectorstore"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Smart proxy gateway for MCP tool servers",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply vector store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := viper.GetString("database-url")
			if dsn == "" {
				return fmt.Errorf("database URL is required (--database-url or TOOLGATE_DATABASE_URL)")
			}

			db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			if err := vectorstore.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			logger.Info("Migrations applied")
			return nil
		},
	}

	migrateCmd.Flags().String("database-url", "", "Postgres connection string")
	_ = viper.BindPFlag("database-url", migrateCmd.Flags().Lookup("database-url"))
	_ = viper.BindEnv("database-url", "TOOLGATE_DATABASE_URL")

	return migrateCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the toolgate version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
