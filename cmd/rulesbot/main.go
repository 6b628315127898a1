package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to the environment file",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "rulesbot",
		Usage: "board game rules assistant backed by ingested rulebook PDFs",
		Commands: []*cli.Command{
			{
				Name:   "init-db",
				Usage:  "create the database schema",
				Flags:  []cli.Flag{envFlag},
				Action: initDBAction,
			},
			{
				Name:  "games",
				Usage: "manage games",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "register a new game",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "name",
								Usage:    "game name",
								Required: true,
							},
						},
						Action: gameAddAction,
					},
					{
						Name:   "list",
						Usage:  "list registered games",
						Flags:  []cli.Flag{envFlag},
						Action: gameListAction,
					},
				},
			},
			{
				Name:  "documents",
				Usage: "manage rulebook documents",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "register a rulebook PDF for a game",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "game",
								Usage:    "game slug",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "name",
								Usage:    "display name of the rulebook",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "url",
								Usage:    "download URL of the PDF",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "public-url",
								Usage: "user-facing URL shown in citations (defaults to the download URL)",
							},
							&cli.StringFlag{
								Name:  "ignore-pages",
								Usage: "comma-separated 1-indexed pages to drop",
							},
							&cli.StringFlag{
								Name:  "setup-pages",
								Usage: "comma-separated 1-indexed pages holding setup instructions",
							},
						},
						Action: documentAddAction,
					},
					{
						Name:  "list",
						Usage: "list a game's rulebooks",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "game",
								Usage:    "game slug",
								Required: true,
							},
						},
						Action: documentListAction,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "build or rebuild a game's index from its rulebooks",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "game",
						Usage:    "game slug",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "document",
						Usage: "ingest only this document id into the existing index",
					},
				},
				Action: ingestAction,
			},
			{
				Name:  "ask",
				Usage: "ask a single rules question",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "game",
						Usage:    "game slug",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "the question to answer",
						Required: true,
					},
				},
				Action: askAction,
			},
			{
				Name:  "chat",
				Usage: "start an interactive rules chat",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "game",
						Usage:    "game slug",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "resume an existing session by slug",
					},
				},
				Action: chatAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
