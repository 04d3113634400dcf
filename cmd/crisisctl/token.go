package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/jwt"
	"crisis-chat/backend/pkg/logger"
	"crisis-chat/backend/pkg/secrets"
)

func newTokenCmd(loadConfig func() *config.Config) *cobra.Command {
	var (
		userID string
		name   string
		role   string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the server's JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			manager, err := secrets.NewVaultManager(cfg, logger.Nop())
			if err != nil {
				return err
			}
			secret := manager.GetSecretWithDefault(cmd.Context(), secrets.KeyJWTSecret, cfg.JWT.Secret)

			if expiry == 0 {
				expiry = cfg.JWT.Expiry
			}
			svc, err := jwt.NewService(secret, expiry)
			if err != nil {
				return err
			}

			token, err := svc.GenerateToken(userID, name, jwt.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id placed in the token subject (required)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&role, "role", "r", string(jwt.RoleUser), "user, specialist or admin")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime, defaults to JWT_EXPIRY")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
