package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvid-labs/ragline/internal/log"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limit", err: errors.New("rate limit exceeded"), want: true},
		{name: "429 status", err: errors.New("HTTP 429: Too Many Requests"), want: true},
		{name: "503 unavailable", err: errors.New("503 Service Unavailable"), want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "timeout", err: errors.New("request timeout"), want: true},
		{name: "case insensitive", err: errors.New("TIMEOUT occurred"), want: true},
		{name: "bad request", err: errors.New("HTTP 400 Bad Request"), want: false},
		{name: "auth failure", err: errors.New("invalid API key"), want: false},
		{name: "model missing", err: errors.New("model \"gemma3\" not found"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := retryableError(tt.err)
			if got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// retryClient builds a Client with just the fields do() touches.
func retryClient(cfg RetryConfig) *Client {
	return &Client{
		retry:  cfg,
		logger: log.NewNop(),
	}
}

func TestDo_RecoversFromTransientError(t *testing.T) {
	t.Parallel()

	c := retryClient(RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	calls := 0
	err := c.do(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 Service Unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	c := retryClient(DefaultRetryConfig())

	permanent := errors.New("invalid API key")
	calls := 0
	err := c.do(context.Background(), "generate", func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("do() error = %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	c := retryClient(RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})

	transient := errors.New("request timeout")
	calls := 0
	err := c.do(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("do() error = %v, want wrapped transient error", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want initial + 2 retries", calls)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	c := retryClient(RetryConfig{
		MaxRetries:      5,
		InitialInterval: time.Minute,
		MaxInterval:     time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.do(ctx, "embed", func(ctx context.Context) error {
		return errors.New("temporary failure")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("do() error = %v, want context.Canceled", err)
	}
}

func TestSplitModelName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in            string
		wantBare      string
		wantQualified string
	}{
		{"gemma3:latest", "gemma3:latest", "ollama/gemma3:latest"},
		{"ollama/gemma3:latest", "gemma3:latest", "ollama/gemma3:latest"},
		{"llama3", "llama3", "ollama/llama3"},
	}

	for _, tt := range tests {
		bare, qualified := splitModelName(tt.in)
		if bare != tt.wantBare || qualified != tt.wantQualified {
			t.Errorf("splitModelName(%q) = (%q, %q), want (%q, %q)",
				tt.in, bare, qualified, tt.wantBare, tt.wantQualified)
		}
	}
}
