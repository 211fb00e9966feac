package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/replytrainer/internal/sessions"
	"github.com/replytrainer/pkg/models"
)

type sessionView struct {
	Session  *models.TrainerSession  `json:"session"`
	Feedback []models.FeedbackRecord `json:"feedback"`
}

// SessionCommand prints a stored session together with its feedback
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Show a stored session and its ratings",
		ArgsUsage: "SESSION_ID",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("session id is required")
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx := c.Context
			a, err := buildApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			view, err := lookupSession(ctx, a.store, id)
			if err != nil {
				return err
			}
			return printJSON(view)
		},
	}
}

func lookupSession(ctx context.Context, store sessions.Store, id string) (*sessionView, error) {
	sess, err := store.GetSession(ctx, id)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	feedback, err := store.ListFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sessionView{Session: sess, Feedback: feedback}, nil
}
