package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"rulesbot/internal/models"
	"rulesbot/internal/qa"
)

func initDBAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.DB.Initialize(ctx); err != nil {
		return err
	}
	slog.Info("database initialized")
	return nil
}

func gameAddAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.CreateGame(ctx, cmd.String("name"))
	if err != nil {
		return err
	}
	fmt.Printf("created game %d: %s (%s)\n", game.ID, game.Name, game.Slug)
	return nil
}

func gameListAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	games, err := app.DB.ListGames(ctx)
	if err != nil {
		return err
	}
	for _, game := range games {
		status := "pending"
		if game.Ingested {
			status = "ingested"
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", game.ID, game.Slug, game.Name, status)
	}
	return nil
}

func documentAddAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.GetGameBySlug(ctx, cmd.String("game"))
	if err != nil {
		return err
	}

	doc := models.Document{
		GameID:      game.ID,
		DisplayName: cmd.String("name"),
		URL:         cmd.String("url"),
		PublicURL:   cmd.String("public-url"),
		IgnorePages: cmd.String("ignore-pages"),
		SetupPages:  cmd.String("setup-pages"),
	}
	// Reject malformed page lists before they reach ingestion.
	if _, err := doc.IgnorePageList(); err != nil {
		return err
	}
	if _, err := doc.SetupPageList(); err != nil {
		return err
	}

	doc, err = app.DB.CreateDocument(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Printf("created document %d: %s\n", doc.ID, doc.DisplayName)
	return nil
}

func documentListAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.GetGameBySlug(ctx, cmd.String("game"))
	if err != nil {
		return err
	}
	docs, err := app.DB.ListDocuments(ctx, game.ID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		status := "pending"
		if doc.Ingested {
			status = "ingested"
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", doc.ID, doc.DisplayName, doc.DisplayURL(), status)
	}
	return nil
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.GetGameBySlug(ctx, cmd.String("game"))
	if err != nil {
		return err
	}

	svc, err := app.ingestService()
	if err != nil {
		return err
	}

	if docID := cmd.Int64("document"); docID != 0 {
		doc, err := app.DB.GetDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.GameID != game.ID {
			return fmt.Errorf("document %d does not belong to game %s", docID, game.Slug)
		}
		return svc.IngestDocument(ctx, doc)
	}

	return svc.ReingestGame(ctx, game.ID)
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.GetGameBySlug(ctx, cmd.String("game"))
	if err != nil {
		return err
	}
	session, err := app.DB.CreateChatSession(ctx, game.ID)
	if err != nil {
		return err
	}

	answer, err := app.qaService().Ask(ctx, session, game, cmd.String("question"))
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	printSources(answer.Sources)
	return nil
}

func chatAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	game, err := app.DB.GetGameBySlug(ctx, cmd.String("game"))
	if err != nil {
		return err
	}

	var session models.ChatSession
	if slug := cmd.String("session"); slug != "" {
		session, err = app.DB.GetChatSessionBySlug(ctx, slug)
		if err != nil {
			return err
		}
		if session.GameID != game.ID {
			return fmt.Errorf("session %s does not belong to game %s", slug, game.Slug)
		}
	} else {
		session, err = app.DB.CreateChatSession(ctx, game.ID)
		if err != nil {
			return err
		}
	}

	svc := app.qaService()
	fmt.Printf("Chatting about %s (session %s). Empty line to quit.\n", game.Name, session.Slug)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		events, err := svc.AskStream(ctx, session, game, question)
		if err != nil {
			return err
		}
		for ev := range events {
			switch ev.Type {
			case qa.EventContent:
				fmt.Print(ev.Content)
			case qa.EventDone:
				fmt.Println()
			case qa.EventError:
				fmt.Println()
				fmt.Fprintf(os.Stderr, "error: %v\n", ev.Err)
			}
		}
	}
	return scanner.Err()
}

func printSources(sections []models.Section) {
	if len(sections) == 0 {
		return
	}
	fmt.Println("\nSources:")
	seen := make(map[string]bool)
	for _, section := range sections {
		ref := fmt.Sprintf("document %d, page %d", section.DocumentID, section.Page+1)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		fmt.Printf("  %s\n", ref)
	}
}
