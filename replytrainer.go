package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/replytrainer/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "replytrainer",
		Usage:   "Generate and rate chat reply candidates from profile and chat screenshots",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "replytrainer.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before reading config",
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("env-file"); path != "" {
				if err := cmd.LoadEnvFile(path); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.GenerateCommand(),
			cmd.FeedbackCommand(),
			cmd.SessionCommand(),
			cmd.ConfigCommand(),
			cmd.EnvCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
