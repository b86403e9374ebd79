package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"listings-api/dto"
	"listings-api/migrations"
	"listings-api/repositories"
	"listings-api/services"
	"listings-api/utils"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login accounts",
	}
	cmd.AddCommand(userCreateCmd(), userPasswdCmd())
	return cmd
}

// withAuth runs fn against an auth service over a migrated database.
func withAuth(cmd *cobra.Command, fn func(svc services.AuthService) error) error {
	cfg, logger, db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer closeDB(db)

	if _, err := migrations.NewMigrator(db).Up(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	jwt := utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return fn(services.NewAuthService(repositories.NewUserRepository(db), jwt, logger))
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			return withAuth(cmd, func(svc services.AuthService) error {
				user, err := svc.CreateUser(cmd.Context(), dto.CreateUserRequest{Username: username, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("username", "", "login name")
	cmd.Flags().String("password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			return withAuth(cmd, func(svc services.AuthService) error {
				err := svc.ChangePassword(cmd.Context(), dto.ChangePasswordRequest{Username: username, NewPassword: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %s\n", username)
				return nil
			})
		},
	}
	cmd.Flags().String("username", "", "login name")
	cmd.Flags().String("password", "", "new password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
