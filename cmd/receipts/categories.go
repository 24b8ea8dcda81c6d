package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-flow/internal/cli"
	"github.com/Veraticus/receipt-flow/internal/model"
)

func categoriesCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage category sub-tags",
		Long:  `List, add and remove the sub-tags available under each user category.`,
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "default", "user id")

	cmd.AddCommand(listCategoriesCmd(&userID))
	cmd.AddCommand(editCategoryCmd(&userID, "add", "Add a sub-tag to a category"))
	cmd.AddCommand(editCategoryCmd(&userID, "remove", "Remove a sub-tag from a category"))

	return cmd
}

func listCategoriesCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every category with its sub-tags",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			template, err := a.CategoryTags(ctx, *userID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Tags"),
				cli.TableHeaderStyle.Render("Description"))
			for _, c := range model.UserCategories {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c, strings.Join(template.Tags(c), "、"), cli.SubtleStyle.Render(c.Description()))
			}
			return nil
		},
	}
}

func editCategoryCmd(userID *string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " CATEGORY TAG",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			category := model.UserCategory(args[0])

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, store, err := initAgent(ctx, cfg, nil, false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if action == "add" {
				err = a.AddCategoryTag(ctx, *userID, category, args[1])
			} else {
				err = a.RemoveCategoryTag(ctx, *userID, category, args[1])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s %s: %s", action, args[0], args[1])))
			return nil
		},
	}
}
