// Package retriever selects the rulebook sections used to ground an
// answer, with preferential treatment for game-setup questions.
package retriever

import (
	"context"
	"strings"

	"rulesbot/internal/models"
)

// DefaultK is the number of sections retrieved per question.
const DefaultK = 3

// setupTriggers classify a question as being about game setup. Matching is
// case-insensitive substring containment.
var setupTriggers = []string{
	"setup",
	"set up",
	"set-up",
	"start with",
	"starts with",
	"start the game",
	"begin with",
	"begins with",
	"start of the game",
	"beginning of the game",
}

// IsSetupQuestion reports whether the question asks about game setup.
func IsSetupQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, trigger := range setupTriggers {
		if strings.Contains(q, trigger) {
			return true
		}
	}
	return false
}

// Searcher is the similarity-search surface the retriever runs on.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Section, error)
	SimilaritySearchWithFilter(ctx context.Context, query string, k int, filter func(models.Section) bool) ([]models.Section, error)
}

// Retriever fetches the grounding sections for a question.
type Retriever struct {
	index Searcher
	k     int
}

// New creates a retriever over an index. k values below 1 fall back to
// DefaultK.
func New(index Searcher, k int) *Retriever {
	if k < 1 {
		k = DefaultK
	}
	return &Retriever{index: index, k: k}
}

// Retrieve returns the sections grounding an answer to the question,
// most relevant first.
//
// For setup questions whose plain similarity results contain no setup
// section, dedicated setup sections are searched separately and appended
// in place of the least relevant plain results, keeping the total at k.
// If the game has no setup sections the plain results stand.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Section, error) {
	sections, err := r.index.SimilaritySearch(ctx, question, r.k)
	if err != nil {
		return nil, err
	}

	if !IsSetupQuestion(question) || containsSetup(sections) {
		return sections, nil
	}

	setupSections, err := r.index.SimilaritySearchWithFilter(ctx, "setup", r.k, func(s models.Section) bool {
		return s.SetupPage
	})
	if err != nil {
		return nil, err
	}
	if len(setupSections) == 0 {
		return sections, nil
	}

	keep := len(sections) - len(setupSections)
	if keep < 0 {
		keep = 0
	}
	merged := make([]models.Section, 0, keep+len(setupSections))
	merged = append(merged, sections[:keep]...)
	merged = append(merged, setupSections...)
	return merged, nil
}

func containsSetup(sections []models.Section) bool {
	for _, s := range sections {
		if s.SetupPage {
			return true
		}
	}
	return false
}
