// Package genai wraps Genkit's Ollama plugin behind the pipeline's
// Embedder and Generator capabilities, adding retry with exponential
// backoff and optional proactive rate limiting.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"
	"golang.org/x/time/rate"

	"github.com/corvid-labs/ragline/internal/rag"
)

// Config holds the Ollama connection settings.
type Config struct {
	// Host is the Ollama server address, e.g. "http://localhost:11434".
	Host string

	// EmbedModel is the embedding model name, e.g. "nomic-embed-text:latest".
	EmbedModel string

	// ChatModel is the default chat model, registered at startup.
	ChatModel string

	// Retry overrides the default retry behavior when non-zero.
	Retry RetryConfig

	// RequestsPerSecond enables proactive rate limiting when positive.
	// Zero disables the limiter.
	RequestsPerSecond float64
}

// Client talks to a local Ollama server through Genkit. It implements
// both the Embedder and Generator capabilities and is safe for
// concurrent use.
type Client struct {
	g        *genkit.Genkit
	plugin   *ollama.Ollama
	embedder ai.Embedder
	retry    RetryConfig
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu     sync.Mutex
	models map[string]bool // chat models already registered
}

// New initializes Genkit with the Ollama plugin and registers the
// configured chat model and embedder. A nil logger falls back to
// slog.Default().
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		return nil, errors.New("ollama host is required")
	}
	if cfg.EmbedModel == "" {
		return nil, errors.New("embedding model is required")
	}

	plugin := &ollama.Ollama{ServerAddress: cfg.Host}
	g := genkit.Init(ctx, genkit.WithPlugins(plugin))
	if g == nil {
		return nil, errors.New("initializing genkit with ollama plugin")
	}

	plugin.DefineEmbedder(g, cfg.Host, cfg.EmbedModel, nil)
	embedder := ollama.Embedder(g, cfg.Host)
	if embedder == nil {
		return nil, fmt.Errorf("looking up embedder for %q", cfg.Host)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	c := &Client{
		g:        g,
		plugin:   plugin,
		embedder: embedder,
		retry:    retry,
		limiter:  limiter,
		logger:   logger,
		models:   make(map[string]bool),
	}

	if cfg.ChatModel != "" {
		c.ensureModel(cfg.ChatModel)
	}

	logger.Info("initialized ollama client",
		"host", cfg.Host,
		"embed_model", cfg.EmbedModel,
		"chat_model", cfg.ChatModel)

	return c, nil
}

// Embed converts text into an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	err := c.do(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 {
			return errors.New("no embeddings returned")
		}
		vector = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}

	return vector, nil
}

// Generate produces a completion from prompt using the named model.
// model accepts both bare Ollama names ("gemma3:latest") and fully
// qualified Genkit names ("ollama/gemma3:latest").
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	bare, qualified := splitModelName(model)
	c.ensureModel(bare)

	var text string
	err := c.do(ctx, "generate", func(ctx context.Context) error {
		resp, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(qualified),
			ai.WithPrompt(prompt),
		)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generating with %q: %w", qualified, err)
	}

	return text, nil
}

// ensureModel registers a chat model with the plugin once. Ollama
// models require explicit registration; there is no auto-discovery.
func (c *Client) ensureModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models[name] {
		return
	}

	c.plugin.DefineModel(c.g, ollama.ModelDefinition{
		Name: name,
		Type: "chat",
	}, nil)
	c.models[name] = true
}

// splitModelName normalizes a model reference to its bare Ollama name
// and its Genkit-qualified form.
func splitModelName(model string) (bare, qualified string) {
	if after, ok := strings.CutPrefix(model, "ollama/"); ok {
		return after, model
	}
	return model, "ollama/" + model
}

var (
	_ rag.Embedder  = (*Client)(nil)
	_ rag.Generator = (*Client)(nil)
)
