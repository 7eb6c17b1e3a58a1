package main

import (
	"context"
	"fmt"

	"task-manager/logging"

	"github.com/spf13/cobra"
)

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator directly in the configured store.

Examples:
  task-manager create-admin --name "Ops" --email ops@example.com --password 'S3cure!pass'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup("task-manager-cli")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			userService, err := newUserService(cfg, st)
			if err != nil {
				return err
			}
			user, err := userService.CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}

			logging.Logger.Infof("Event ID: ADMIN_CREATED, Description: administrator %s created from the command line", user.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}
