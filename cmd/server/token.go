package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/file"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a device or an operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			normalized, ok := auth.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q, want device, supervisor or admin", role)
			}

			fileClient := file.NewFileService()
			config, err := utils.LoadServerConfig(configPath, fileClient)
			if err != nil {
				return err
			}
			secret, err := fileClient.ReadFileRaw(config.Auth.SecretFile)
			if err != nil {
				return err
			}

			token, err := auth.SignToken(bytes.TrimSpace(secret), subject, normalized, ttl)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Caller id: a target id for devices, a username for operators")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleDevice), "Token role: device, supervisor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
