package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Game is one board game with an embedding index built from its rulebooks.
type Game struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Ingested bool   `json:"ingested"`
}

// Document is one source rulebook PDF belonging to a game.
//
// IgnorePages and SetupPages are comma-separated 1-indexed page numbers.
// Ignored pages are dropped during chunking; setup pages are merged into a
// single synthetic setup section.
type Document struct {
	ID          int64  `json:"id"`
	GameID      int64  `json:"game_id"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	PublicURL   string `json:"public_url,omitempty"`
	IgnorePages string `json:"ignore_pages,omitempty"`
	SetupPages  string `json:"setup_pages,omitempty"`
	Ingested    bool   `json:"ingested"`
}

// DisplayURL returns the user-facing URL for the document.
func (d *Document) DisplayURL() string {
	if d.PublicURL != "" {
		return d.PublicURL
	}
	return d.URL
}

// IgnorePageList parses IgnorePages into 1-indexed page numbers.
func (d *Document) IgnorePageList() ([]int, error) {
	return parsePageList(d.IgnorePages)
}

// SetupPageList parses SetupPages into 1-indexed page numbers.
func (d *Document) SetupPageList() ([]int, error) {
	return parsePageList(d.SetupPages)
}

func parsePageList(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		page, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q: %w", part, err)
		}
		if page < 1 {
			return nil, fmt.Errorf("invalid page number %d: pages are 1-indexed", page)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// Section is one indexed chunk of rulebook text with its provenance.
// Page is stored 0-indexed; citations report it 1-indexed.
type Section struct {
	Content    string `json:"content"`
	GameID     int64  `json:"game_id"`
	DocumentID int64  `json:"document_id"`
	Page       int    `json:"page"`
	SetupPage  bool   `json:"setup_page,omitempty"`

	// Score is the relevancy score attached at query time. It is never
	// persisted with the section.
	Score float64 `json:"score,omitempty"`
}

// Role classifies who authored a chat message.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// ChatSession is one conversation about a single game.
type ChatSession struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	GameID    int64     `json:"game_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one chat turn, either a user question or an assistant answer.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceRef cites one rulebook page backing an assistant answer.
// PageNumber is 1-indexed as displayed to users.
type SourceRef struct {
	DocumentID int64 `json:"document_id"`
	PageNumber int   `json:"page_number"`
}
