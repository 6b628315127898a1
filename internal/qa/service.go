// Package qa answers rules questions: it reformulates follow-ups against
// the conversation, retrieves grounding sections, generates the answer,
// and records the exchange with its citations.
package qa

import (
	"context"
	"log/slog"
	"strings"

	"rulesbot/internal/llm"
	"rulesbot/internal/models"
)

// DefaultHistoryWindow is the number of recent messages given to the
// question reformulator.
const DefaultHistoryWindow = 12

// StreamEventType tags the events of a streamed answer.
type StreamEventType int

const (
	// EventContent carries one chunk of answer text.
	EventContent StreamEventType = iota
	// EventDone terminates a successful stream.
	EventDone
	// EventError terminates a failed stream.
	EventError
)

// StreamEvent is one event of a streamed answer. A stream delivers zero or
// more EventContent events followed by exactly one EventDone or EventError.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// MessageStore is the conversation persistence surface.
type MessageStore interface {
	Messages(ctx context.Context, sessionID int64) ([]models.Message, error)
	AddMessage(ctx context.Context, sessionID int64, role models.Role, text string) (models.Message, error)
	AddSourceRefs(ctx context.Context, messageID int64, refs []models.SourceRef) error
}

// Retriever fetches the sections grounding an answer.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.Section, error)
}

// RetrieverFactory returns the retriever for a game.
type RetrieverFactory func(gameID int64) Retriever

// Service answers questions within chat sessions.
type Service struct {
	llm           llm.Client
	condenseLLM   llm.Client
	messages      MessageStore
	retrievers    RetrieverFactory
	historyWindow int
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCondenseLLM uses a separate model for question reformulation.
func WithCondenseLLM(client llm.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.condenseLLM = client
		}
	}
}

// WithHistoryWindow overrides the reformulation history window.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// NewService creates a question-answering service. The generation model
// doubles as the reformulation model unless WithCondenseLLM overrides it.
func NewService(client llm.Client, messages MessageStore, retrievers RetrieverFactory, opts ...Option) *Service {
	s := &Service{
		llm:           client,
		condenseLLM:   client,
		messages:      messages,
		retrievers:    retrievers,
		historyWindow: DefaultHistoryWindow,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer is a completed question-answer exchange.
type Answer struct {
	Text    string
	Sources []models.Section
}

// Ask answers a question synchronously. The question is recorded first;
// the answer and its citations are recorded once generation succeeds.
func (s *Service) Ask(ctx context.Context, session models.ChatSession, game models.Game, question string) (Answer, error) {
	prompt, sections, err := s.prepare(ctx, session, game, question)
	if err != nil {
		return Answer{}, err
	}

	if _, err := s.messages.AddMessage(ctx, session.ID, models.RoleHuman, question); err != nil {
		return Answer{}, err
	}

	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}

	if err := s.persistAnswer(ctx, session.ID, text, sections); err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Sources: sections}, nil
}

// AskStream answers a question as a stream of events. The returned channel
// delivers answer chunks as they are generated and is closed after exactly
// one terminal event. The exchange is persisted only when generation
// completes successfully.
func (s *Service) AskStream(ctx context.Context, session models.ChatSession, game models.Game, question string) (<-chan StreamEvent, error) {
	prompt, sections, err := s.prepare(ctx, session, game, question)
	if err != nil {
		return nil, err
	}

	if _, err := s.messages.AddMessage(ctx, session.ID, models.RoleHuman, question); err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)

		var answer strings.Builder
		err := s.llm.Stream(ctx, prompt, func(chunk string) error {
			answer.WriteString(chunk)
			select {
			case events <- StreamEvent{Type: EventContent, Content: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil {
			err = s.persistAnswer(ctx, session.ID, answer.String(), sections)
		}

		terminal := StreamEvent{Type: EventDone}
		if err != nil {
			terminal = StreamEvent{Type: EventError, Err: err}
		}
		select {
		case events <- terminal:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// prepare reformulates the question against the session history and builds
// the grounded prompt.
func (s *Service) prepare(ctx context.Context, session models.ChatSession, game models.Game, question string) (string, []models.Section, error) {
	history, err := s.messages.Messages(ctx, session.ID)
	if err != nil {
		return "", nil, err
	}

	standalone := s.condenseQuestion(ctx, history, question)

	sections, err := s.retrievers(game.ID).Retrieve(ctx, standalone)
	if err != nil {
		return "", nil, err
	}

	s.logger.Debug("question prepared",
		slog.Int64("session_id", session.ID),
		slog.String("standalone", standalone),
		slog.Int("sections", len(sections)))

	return answerPrompt(game.Name, sections, standalone), sections, nil
}

// condenseQuestion rewrites a follow-up into a standalone question. The
// original question passes through unchanged when there is no history or
// the reformulation model fails.
func (s *Service) condenseQuestion(ctx context.Context, history []models.Message, question string) string {
	window := latestWindow(history, s.historyWindow)
	if len(window) == 0 {
		return question
	}

	standalone, err := s.condenseLLM.Generate(ctx, condensePrompt(window, question))
	if err != nil {
		s.logger.Warn("question reformulation failed, using original",
			slog.String("error", err.Error()))
		return question
	}

	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question
	}
	return standalone
}

func (s *Service) persistAnswer(ctx context.Context, sessionID int64, text string, sections []models.Section) error {
	msg, err := s.messages.AddMessage(ctx, sessionID, models.RoleAI, text)
	if err != nil {
		return err
	}

	refs := make([]models.SourceRef, 0, len(sections))
	for _, section := range sections {
		refs = append(refs, models.SourceRef{
			DocumentID: section.DocumentID,
			PageNumber: section.Page + 1,
		})
	}
	return s.messages.AddSourceRefs(ctx, msg.ID, refs)
}

// latestWindow returns the most recent n messages in chronological order.
func latestWindow(history []models.Message, n int) []models.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
