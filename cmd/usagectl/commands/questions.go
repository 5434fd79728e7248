package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/kotoba-voice/kotoba/internal/config"
	"github.com/kotoba-voice/kotoba/internal/database"
	"github.com/spf13/cobra"
)

// NewQuestionsCmd creates the questions command.
func NewQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Inspect the question log",
	}
	cmd.AddCommand(newQuestionsListCmd())
	return cmd
}

func newQuestionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List recent questions for a user, newest first",
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
			repo := database.NewQuestionRepository(db)
			records, err := repo.ListByUser(context.Background(), args[0], limit)
			if err != nil {
				return fmt.Errorf("list questions: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("No questions logged for this user.")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%s  %s\n", rec.AskedAt.UTC().Format(time.RFC3339), rec.Question)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of questions to list")
	return cmd
}
