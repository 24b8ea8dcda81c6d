package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect users",
	}
	cmd.AddCommand(showUserCmd())
	return cmd
}

func showUserCmd() *cobra.Command {
	var (
		userID string
		output string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's profile, rules and learning queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "yaml" {
				return fmt.Errorf("unsupported output format: %s", output)
			}
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, store, err := initAgent(ctx, cfg, nil, false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := a.UserSummary(ctx, userID)
			if err != nil {
				return err
			}

			if output == "yaml" {
				data, err := yaml.Marshal(summary)
				if err != nil {
					return fmt.Errorf("failed to encode summary: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			renderUserSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, yaml)")
	return cmd
}
