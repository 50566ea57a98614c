// Package chat orchestrates a single conversational turn: record the
// prompt for future retrieval, assemble context from prior exchanges
// and similar documents, and generate a reply.
//
// The conversational surface never fails outward. Every internal error
// is downgraded to a diagnostic reply string at the boundary, so the
// caller's request/response cycle always completes.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corvid-labs/ragline/internal/exchange"
	"github.com/corvid-labs/ragline/internal/rag"
)

// Ingestor records a document for future retrieval.
type Ingestor interface {
	Ingest(ctx context.Context, document, source string) (string, error)
}

// Retriever assembles a context block of similar stored chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Generator produces free text from a prompt using the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ExchangeLog persists completed turns and replays recent ones.
type ExchangeLog interface {
	Save(ctx context.Context, prompt, response string) error
	Recent(ctx context.Context, limit int) ([]exchange.Exchange, error)
}

// Config holds the orchestrator settings.
type Config struct {
	// DefaultModel is used when a turn does not name a model.
	DefaultModel string

	// HistoryLimit is the number of prior exchanges included in the
	// generation prompt. Non-positive values fall back to 5.
	HistoryLimit int
}

// Orchestrator runs chat turns. It holds no per-turn state and is safe
// for concurrent use.
type Orchestrator struct {
	ingestor     Ingestor
	retriever    Retriever
	generator    Generator
	log          ExchangeLog // nil disables conversation persistence
	defaultModel string
	historyLimit int
	logger       *slog.Logger
}

// New creates an Orchestrator. log may be nil, which disables the
// conversation log; a nil logger falls back to slog.Default().
func New(ingestor Ingestor, retriever Retriever, generator Generator, log ExchangeLog, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 5
	}

	return &Orchestrator{
		ingestor:     ingestor,
		retriever:    retriever,
		generator:    generator,
		log:          log,
		defaultModel: cfg.DefaultModel,
		historyLimit: limit,
		logger:       logger,
	}
}

// Error markers prefixing degraded replies. They identify the failing
// stage so operators can diagnose from replies and logs alike.
const (
	markerIngest   = "Error adding the document"
	markerEmbed    = "Error generating embeddings"
	markerSearch   = "Error searching documents"
	markerGenerate = "Error generating response"
)

// stageError tags an internal failure with the display marker of the
// stage it came from. Its Error() string is exactly the degraded reply
// shown to the user.
type stageError struct {
	marker string
	err    error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.marker, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// metaprompt is the fixed generation prompt layout: the user's literal
// question, the prior conversation, the retrieved documents, and the
// instruction block, always in that order. Empty sections stay present
// so the model sees a stable structure.
const metaprompt = `User's question:
%s

Previous conversation:
%s

Relevant documents:
%s

Please provide a natural, conversational response to the user's question,
incorporating relevant information from the provided context and documents.
Focus on the most relevant information and maintain a coherent narrative.
Do not mention that the answer draws on stored history, and stay in character.
Answer:`

// Chat runs one conversational turn and always returns a reply. When a
// stage fails, the reply is that stage's diagnostic string instead of a
// generated answer.
func (o *Orchestrator) Chat(ctx context.Context, prompt, model string) string {
	reply, err := o.respond(ctx, prompt, model)
	if err != nil {
		o.logger.Error("chat turn degraded", "error", err)
		return err.Error()
	}
	return reply
}

// respond is the fallible inner flow. It keeps internal code
// result-returning; Chat converts the error to a display string at the
// outer boundary.
func (o *Orchestrator) respond(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = o.defaultModel
	}

	// Record the turn before replying: every prompt must be
	// retrievable by later turns, so an ingestion failure
	// short-circuits without attempting generation.
	summary, err := o.ingestor.Ingest(ctx, prompt, rag.SourceChatHistory)
	if err != nil {
		return "", &stageError{marker: markerIngest, err: err}
	}
	o.logger.Debug("recorded chat turn", "summary", summary)

	previous := o.previousConversation(ctx)

	documents, err := o.retriever.Retrieve(ctx, prompt)
	if err != nil {
		if errors.Is(err, rag.ErrEmbedding) {
			return "", &stageError{marker: markerEmbed, err: err}
		}
		return "", &stageError{marker: markerSearch, err: err}
	}

	assembled := fmt.Sprintf(metaprompt, prompt, previous, documents)

	reply, err := o.generator.Generate(ctx, model, assembled)
	if err != nil {
		return "", &stageError{marker: markerGenerate, err: err}
	}

	if o.log != nil {
		if err := o.log.Save(ctx, prompt, reply); err != nil {
			// Persistence is best-effort; the reply already exists.
			o.logger.Warn("failed to save exchange", "error", err)
		}
	}

	return reply, nil
}

// previousConversation renders recent exchanges as a transcript.
// Failures degrade to an empty section; prior turns are context, not a
// prerequisite.
func (o *Orchestrator) previousConversation(ctx context.Context) string {
	if o.log == nil {
		return ""
	}

	recent, err := o.log.Recent(ctx, o.historyLimit)
	if err != nil {
		o.logger.Warn("failed to load recent exchanges", "error", err)
		return ""
	}

	lines := make([]string, 0, len(recent))
	for _, e := range recent {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", e.Prompt, e.Response))
	}

	return strings.Join(lines, "\n")
}
