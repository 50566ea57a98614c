package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corvid-labs/ragline/internal/exchange"
)

// maxBodyBytes caps request bodies. Documents can be large; a megabyte
// of text is roughly 150k words, well past any sane single ingestion.
const maxBodyBytes = 1 << 20

// Chatter runs one conversational turn and always returns a reply.
type Chatter interface {
	Chat(ctx context.Context, prompt, model string) string
}

// Ingestor records a document for future retrieval.
type Ingestor interface {
	Ingest(ctx context.Context, document, source string) (string, error)
}

// ExchangeLister reads the conversation log.
type ExchangeLister interface {
	Recent(ctx context.Context, limit int) ([]exchange.Exchange, error)
	Count(ctx context.Context) (int64, error)
}

type chatHandler struct {
	chatter   Chatter
	ingestor  Ingestor
	exchanges ExchangeLister
	logger    *slog.Logger
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// chat handles POST /api/chat.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "prompt is required")
		return
	}

	reply := h.chatter.Chat(r.Context(), req.Prompt, req.Model)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

type ingestRequest struct {
	Document string `json:"document"`
	Source   string `json:"source"`
}

type ingestResponse struct {
	Result string `json:"result"`
}

// ingest handles POST /api/documents.
func (h *chatHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "source is required")
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), req.Document, req.Source)
	if err != nil {
		h.logger.Error("ingestion failed", "source", req.Source, "error", err)
		writeError(w, http.StatusBadGateway, "ingest_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Result: result})
}

type exchangeItem struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

type exchangesResponse struct {
	Exchanges []exchangeItem `json:"exchanges"`
	Total     int64          `json:"total"`
}

// listExchanges handles GET /api/exchanges?limit=N.
func (h *chatHandler) listExchanges(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be 1-1000")
			return
		}
		limit = parsed
	}

	recent, err := h.exchanges.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing exchanges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list exchanges")
		return
	}

	total, err := h.exchanges.Count(r.Context())
	if err != nil {
		h.logger.Error("counting exchanges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to count exchanges")
		return
	}

	items := make([]exchangeItem, len(recent))
	for i, e := range recent {
		items[i] = exchangeItem{
			ID:        e.ID,
			Prompt:    e.Prompt,
			Response:  e.Response,
			CreatedAt: e.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, exchangesResponse{Exchanges: items, Total: total})
}

// decodeBody decodes a JSON request body into dst, writing the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		}
		return false
	}

	return true
}
