package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/replytrainer/internal/trainer"
	"github.com/replytrainer/pkg/models"
)

// GenerateCommand runs one generation from the command line
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate reply candidates for a set of screenshots",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Profile photo `URL` (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "chat",
				Usage: "Chat screenshot `URL` (repeatable)",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Free-form context as a JSON object",
				Value: "{}",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	extra, err := parseContextFlag(c.String("context"))
	if err != nil {
		return err
	}

	ctx := c.Context
	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	res, err := a.service.GenerateCandidates(ctx, models.GenerationRequest{
		Context:          extra,
		ProfileImageURLs: c.StringSlice("profile"),
		ChatImageURLs:    c.StringSlice("chat"),
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func parseContextFlag(raw string) (map[string]interface{}, error) {
	extra := map[string]interface{}{}
	if raw == "" {
		return extra, nil
	}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("--context must be a JSON object: %w", err)
	}
	if extra == nil {
		extra = map[string]interface{}{}
	}
	return extra, nil
}

// FeedbackCommand records a single rating against a stored session
func FeedbackCommand() *cli.Command {
	return &cli.Command{
		Name:  "feedback",
		Usage: "Record a trainer rating for a generated candidate",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session `ID` returned by generate"},
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "Candidate index"},
			&cli.StringFlag{Name: "candidate", Usage: "Candidate text being rated"},
			&cli.StringFlag{Name: "rating", Aliases: []string{"r"}, Usage: "Rating; numbers are stored as numbers"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag (repeatable)"},
			&cli.StringFlag{Name: "comment", Usage: "Free-form comment"},
		},
		Action: runFeedback,
	}
}

func runFeedback(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == "memory" {
		log.Warn().Msg("Memory store in use, feedback will not outlive this process")
	}

	ctx := c.Context
	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var sessionID *string
	if c.IsSet("session") {
		id := c.String("session")
		sessionID = &id
	}

	res, err := a.service.SaveTrainerFeedback(ctx, sessionID, []trainer.FeedbackItem{feedbackFromFlags(c)})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func feedbackFromFlags(c *cli.Context) trainer.FeedbackItem {
	item := trainer.FeedbackItem{
		Candidate: c.String("candidate"),
		Tags:      c.StringSlice("tag"),
		Rating:    parseRating(c.String("rating")),
	}
	if c.IsSet("index") {
		idx := c.Int("index")
		item.CandidateIndex = &idx
	}
	if c.IsSet("comment") {
		comment := c.String("comment")
		item.Comment = &comment
	}
	return item
}

// parseRating keeps numeric ratings numeric so they match ratings sent over HTTP
func parseRating(raw string) interface{} {
	if raw == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
