package main

import (
	"github.com/spf13/cobra"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the learned user profile",
	}
	cmd.AddCommand(optimizeProfileCmd())
	return cmd
}

func optimizeProfileCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Rewrite the profile from documents uploaded since its last update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, store, err := initAgent(ctx, cfg, nil, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := a.OptimizeProfile(ctx, userID, true)
			if err != nil {
				return err
			}

			renderOptimization(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	return cmd
}
