package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

func newExpiredCmd(opts *rootOptions) *cobra.Command {
	var (
		filter domain.ExpiredFilter
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "expired",
		Short: "List claimed tasks left unfinished past their day",
		Long: `List claimed tasks left unfinished past their day. With --items the
output is a YAML list that "taskctl sweep --file" accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := opts.client().ListExpired(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(report.Items())
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&filter.UserID, "user", "", "only this user")
	cmd.Flags().StringVar(&filter.AccountID, "account", "", "only this account")
	cmd.Flags().IntVar(&filter.TrackCategory, "category", 0, "only this track category")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of users")
	cmd.Flags().BoolVar(&asYAML, "items", false, "print sweep items as YAML")

	return cmd
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var (
		file       string
		allExpired bool
	)

	cmd := &cobra.Command{
		Use:   "sweep [USER_ID ACCOUNT_ID ARTICLE_ID]",
		Short: "Reject expired claimed tasks",
		Long: `Reject expired claimed tasks. Items come from the positional arguments,
from a YAML file of {userId, accountId, articleId} entries, or, with
--all-expired, from the current expired-task report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()

			var items []domain.SweepItem
			switch {
			case allExpired:
				report, err := client.ListExpired(cmd.Context(), domain.ExpiredFilter{})
				if err != nil {
					return err
				}
				items = report.Items()
				if len(items) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no expired tasks")
					return nil
				}
			case file != "":
				loaded, err := loadSweepItems(file)
				if err != nil {
					return err
				}
				items = loaded
			case len(args) == 3:
				items = []domain.SweepItem{{UserID: args[0], AccountID: args[1], ArticleID: args[2]}}
			default:
				return fmt.Errorf("give USER_ID ACCOUNT_ID ARTICLE_ID, --file or --all-expired")
			}

			result, err := client.Sweep(cmd.Context(), items)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d items failed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with sweep items")
	cmd.Flags().BoolVar(&allExpired, "all-expired", false, "sweep everything currently reported as expired")

	return cmd
}

func loadSweepItems(path string) ([]domain.SweepItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep items: %w", err)
	}
	var items []domain.SweepItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse sweep items %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s has no sweep items", path)
	}
	return items, nil
}
