package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-flow/internal/cli"
)

func learnCmd() *cobra.Command {
	var (
		userID       string
		maxFeedbacks int
		batchSize    int
	)

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Turn queued corrections into classification rules",
		Long: `Analyze the most recent corrections in windows and let the model edit the
user's rule list after each window. The correction queue is cleared afterwards.`,
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

			progress := cli.NewProgress(os.Stderr, "学习分类规则")
			result, err := a.TriggerFeedbackLearning(ctx, userID, maxFeedbacks, batchSize, progress.Update)
			if err != nil {
				return err
			}

			renderLearningResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().IntVar(&maxFeedbacks, "max-feedbacks", 0, "most recent corrections to use (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "corrections per rule request (default from config)")

	return cmd
}
