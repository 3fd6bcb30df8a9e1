package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/encryption"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/fieldvision/fieldvision/pkg/jwt"
)

func newTokenSetCmd() *cobra.Command {
	var tokenValue string

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the provisioned bearer token, encrypted at rest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := strings.TrimSpace(tokenValue)
			if token == "" {
				return errors.New("--value must carry the bearer token")
			}

			fileClient := file.NewFileService()
			config, err := utils.LoadAgentConfig(configPath, fileClient)
			if err != nil {
				return err
			}

			encryptionManager := encryption.NewEncryptionManager(fileClient)
			if err := encryptionManager.Initialize(config.Security.AESKeyFile); err != nil {
				return err
			}

			tokenManager := jwt.NewTokenManager(config.Security.TokenFile, fileClient, encryptionManager)
			if err := tokenManager.SaveToken(token); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "token stored in %s\n", config.Security.TokenFile)
			return nil
		},
	}
	setCmd.Flags().StringVar(&tokenValue, "value", "", "Bearer token minted by the back office")
	_ = setCmd.MarkFlagRequired("value")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the agent's bearer token",
	}
	tokenCmd.AddCommand(setCmd)

	return tokenCmd
}
