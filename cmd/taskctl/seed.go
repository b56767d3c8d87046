package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackmichael/creator-tasks/internal/config"
	"github.com/blackmichael/creator-tasks/internal/domain"
	"github.com/blackmichael/creator-tasks/internal/storage"
)

// fixture is the YAML document accepted by the seed command.
type fixture struct {
	Articles []domain.Article `yaml:"articles"`
	Users    []fixtureUser    `yaml:"users"`
}

type fixtureUser struct {
	ID       string           `yaml:"id"`
	Accounts []domain.Account `yaml:"accounts"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	seen := map[string]struct{}{}
	for i, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user %d has no id", i)
		}
		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("user %s appears twice", u.ID)
		}
		seen[u.ID] = struct{}{}
		for _, a := range u.Accounts {
			if a.AccountID == "" || a.TrackCategory <= 0 {
				return nil, fmt.Errorf("user %s: every account needs an accountId and a positive trackCategory", u.ID)
			}
		}
	}
	for i, a := range f.Articles {
		if a.ID == "" || a.TrackCategory <= 0 {
			return nil, fmt.Errorf("article %d needs an articleId and a positive trackCategory", i)
		}
	}

	return &f, nil
}

func openRepository(ctx context.Context) (*storage.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	repo, err := storage.Open(storage.Dialect(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func seed(ctx context.Context, repo *storage.Repository, f *fixture) (articles int64, users int, err error) {
	articles, err = repo.ImportArticles(ctx, f.Articles)
	if err != nil {
		return 0, 0, err
	}
	for _, u := range f.Users {
		if err := repo.PutUser(ctx, &domain.User{ID: u.ID, Accounts: u.Accounts}); err != nil {
			return articles, users, err
		}
		users++
	}
	return articles, users, nil
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FIXTURE.yaml",
		Short: "Import articles and users from a YAML fixture",
		Long: `Import articles and users from a YAML fixture straight into the database
named by DATABASE_DRIVER and DATABASE_URL. Existing articles are kept,
existing users have their accounts replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFixture(args[0])
			if err != nil {
				return err
			}

			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			articles, users, err := seed(cmd.Context(), repo, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d new articles, wrote %d users\n", articles, users)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}
