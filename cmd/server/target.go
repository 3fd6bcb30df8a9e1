package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/file"
)

func newTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage the target directory",
	}

	cmd.AddCommand(
		newTargetRegisterCmd(),
		newTargetListCmd(),
	)

	return cmd
}

func newTargetRegisterCmd() *cobra.Command {
	var (
		id       string
		name     string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register or update a field device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, db, err := openDirectory(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			info := &directory.TargetInfo{
				ID:           id,
				Name:         name,
				Active:       !inactive,
				RegisteredAt: time.Now().UTC(),
			}
			if err := dir.Register(cmd.Context(), info); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Target id")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable device name")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Register the target as deactivated")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTargetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, db, err := openDirectory(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			targets, err := dir.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, target := range targets {
				state := "active"
				if !target.Active {
					state = "inactive"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					target.ID, target.Name, state, target.RegisteredAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// openDirectory opens the Postgres-backed directory from the configured DSN.
// The caller owns the returned handle.
func openDirectory(ctx context.Context) (directory.TargetDirectory, *sql.DB, error) {
	fileClient := file.NewFileService()
	config, err := utils.LoadServerConfig(configPath, fileClient)
	if err != nil {
		return nil, nil, err
	}
	if config.Storage.Driver != "postgres" {
		return nil, nil, errors.New("target management requires the postgres storage driver")
	}

	db, err := sql.Open("pgx", config.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	dir := directory.NewPostgresDirectory(db)
	if err := dir.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return dir, db, nil
}
