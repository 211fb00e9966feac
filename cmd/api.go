package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/replytrainer/internal/api"
)

// ServeCommand returns the command that runs the HTTP API
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"api"},
		Usage:   "Start the candidate generation API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	return api.NewServer(cfg.Server.Port, a.service).Run(ctx)
}
