package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/kotoba-voice/kotoba/internal/config"
	"github.com/kotoba-voice/kotoba/internal/database"
	"github.com/spf13/cobra"
)

// NewUsageCmd creates the usage command with show and reset subcommands.
func NewUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Manage per-user usage counters",
		Long:  "Inspect or reset the sliding-window admission counters stored in the database.",
	}
	cmd.AddCommand(newUsageShowCmd())
	cmd.AddCommand(newUsageResetCmd())
	return cmd
}

func newUsageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show usage counters for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewUsageRepository(db)
			rec, err := repo.Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get usage record: %w", err)
			}
			if rec == nil {
				fmt.Println("No usage record for this user.")
				return nil
			}
			fmt.Printf("Usage for %s:\n", rec.UserID)
			fmt.Printf("  Window calls:  %d\n", rec.APICalls)
			fmt.Printf("  Daily calls:   %d\n", rec.DailyAPICalls)
			fmt.Printf("  Total calls:   %d\n", rec.TotalAPICalls)
			fmt.Printf("  Last request:  %s\n", time.Unix(rec.LastRequestTime, 0).UTC().Format(time.RFC3339))
			fmt.Printf("  Start date:    %s\n", rec.StartDate.Format("2006-01-02"))
			return nil
		},
	}
}

func newUsageResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Reset window and daily counters for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewUsageRepository(db)
			if err := repo.ResetAll(context.Background(), args[0], time.Now()); err != nil {
				return fmt.Errorf("reset usage counters: %w", err)
			}
			fmt.Println("Usage counters reset.")
			return nil
		},
	}
}
