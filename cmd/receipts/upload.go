package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-flow/internal/agent"
	"github.com/Veraticus/receipt-flow/internal/cli"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/session"
)

func uploadCmd() *cobra.Command {
	var (
		userID   string
		text     string
		audio    string
		docType  string
		category string
		tags     []string
		confirm  bool
		cancel   bool
		noInput  bool
	)

	cmd := &cobra.Command{
		Use:   "upload IMAGE",
		Short: "Recognize and classify a receipt image",
		Long: `Run an image through relevance check, recognition, classification,
tagging and structuring, then confirm or cancel the proposed document.

Without --confirm or --cancel the result is shown and you are asked what to do.
Corrections given with --type, --category or --tags are recorded as feedback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm && cancel {
				return errors.New("--confirm and --cancel are mutually exclusive")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, store, err := initAgent(ctx, cfg, nil, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := a.Upload(ctx, userID, args[0], text, audio)
			if err != nil {
				return err
			}
			renderSession(out, sess)
			if sess.State == session.StateError {
				return fmt.Errorf("upload failed: %s", sess.Error)
			}

			mods := &agent.Modifications{
				DocumentType: model.DocumentType(docType),
				UserCategory: model.UserCategory(category),
			}
			if cmd.Flags().Changed("tags") {
				mods.Tags = tags
			}

			action := "n"
			switch {
			case confirm:
				action = "y"
			case cancel:
				action = "c"
			case !noInput:
				action, err = cli.NewPrompter(os.Stdin, out).Choose(ctx, "确认这张票据? y=确认 n=稍后 c=作废", []string{"y", "n", "c"}, "y")
				if err != nil {
					return err
				}
			}

			switch action {
			case "y":
				if _, err := a.Confirm(ctx, sess.ID, mods); err != nil {
					return fmt.Errorf("confirm failed: %w", err)
				}
				fmt.Fprintln(out, cli.FormatSuccess("票据已确认"))
			case "c":
				if _, err := a.Cancel(ctx, sess.ID); err != nil {
					return fmt.Errorf("cancel failed: %w", err)
				}
				fmt.Fprintln(out, cli.FormatSuccess("票据已作废"))
			default:
				fmt.Fprintln(out, cli.SubtleStyle.Render("票据保持待确认状态"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().StringVar(&text, "text", "", "note describing the receipt")
	cmd.Flags().StringVar(&audio, "audio", "", "voice note describing the receipt")
	cmd.Flags().StringVar(&docType, "type", "", "correct the document type ("+typeNames()+")")
	cmd.Flags().StringVar(&category, "category", "", "correct the user category")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "replace the proposed tags")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm without prompting")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "void without prompting")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "leave the document pending without prompting")

	return cmd
}

func typeNames() string {
	names := make([]string, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
