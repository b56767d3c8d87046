package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

func newAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign USER_ID",
		Short: "Create or rotate today's tasks for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().Assign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newAssignAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-all",
		Short: "Create or rotate today's tasks for every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := opts.client().AssignAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d users failed", len(result.Errors))
			}
			return nil
		},
	}
}

func newClaimCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "claim USER_ID ACCOUNT_ID ARTICLE_ID",
		Short: "Claim the task for an article",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().Claim(cmd.Context(), domain.ClaimRequest{
				UserID:    args[0],
				AccountID: args[1],
				ArticleID: args[2],
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	var (
		title       string
		category    int
		callbackURL string
		views       int64
		likes       int64
		earnings    string
	)

	cmd := &cobra.Command{
		Use:   "complete USER_ID ACCOUNT_ID ARTICLE_ID",
		Short: "Report a published post for an article",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(earnings)
			if err != nil {
				return fmt.Errorf("invalid --earnings: %w", err)
			}

			result, err := opts.client().ReportCompletion(cmd.Context(), domain.CompletionRequest{
				UserID:        args[0],
				AccountID:     args[1],
				ArticleID:     args[2],
				Title:         title,
				TrackCategory: category,
				CallbackURL:   callbackURL,
				Metrics:       domain.Metrics{Views: views, Likes: likes, Earnings: amount},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "post title (defaults to the task's article title)")
	cmd.Flags().IntVar(&category, "category", 0, "track category (defaults to the account's)")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "link to the published post")
	cmd.Flags().Int64Var(&views, "views", 0, "view count")
	cmd.Flags().Int64Var(&likes, "likes", 0, "like count")
	cmd.Flags().StringVar(&earnings, "earnings", "0", "earnings as a decimal amount")

	return cmd
}
