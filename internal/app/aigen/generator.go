// Package aigen is the boundary to the external AI generation endpoint:
// request validation, a tiered rolling-window rate limit, bounded retries
// for transient failures, and the XP award for a finished generation.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// Type is the kind of study content requested.
type Type string

const (
	TypeNotes      Type = "notes"
	TypeFlashcards Type = "flashcards"
	TypeRoadmap    Type = "roadmap"
	TypeQuiz       Type = "quiz"
)

// Valid reports whether t is a known content type.
func (t Type) Valid() bool {
	switch t {
	case TypeNotes, TypeFlashcards, TypeRoadmap, TypeQuiz:
		return true
	}
	return false
}

// MaxPromptLen bounds the prompt size accepted from clients.
const MaxPromptLen = 4000

// Request is one generation call.
type Request struct {
	Type    Type   `json:"type"`
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

// Validate checks the request before any quota is spent.
func (r Request) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown generation type %q", domain.ErrInvalidInput, r.Type)
	}
	p := strings.TrimSpace(r.Prompt)
	if p == "" {
		return fmt.Errorf("%w: prompt must not be empty", domain.ErrInvalidInput)
	}
	if len([]rune(p)) > MaxPromptLen {
		return fmt.Errorf("%w: prompt longer than %d characters", domain.ErrInvalidInput, MaxPromptLen)
	}
	return nil
}

// Response is the generated content. Content is passed through as returned
// by the endpoint.
type Response struct {
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Generator produces content for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ─── HTTP Generator ─────────────────────────────────────────────────────────

// HTTPGenerator calls a JSON edge function over HTTP.
type HTTPGenerator struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPGenerator creates a generator with a per-call timeout.
func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGenerator{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Generate posts req and classifies failures: 429 as ErrRateLimited, 5xx and
// network errors as ErrTransient, other statuses as ErrUpstream.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		// Dial, TLS and timeout failures are all worth another try.
		return Response{}, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", domain.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, fmt.Errorf("%w: endpoint returned 429", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return Response{}, fmt.Errorf("%w: endpoint returned %d", domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 300:
		return Response{}, fmt.Errorf("%w: endpoint returned %d: %s", domain.ErrUpstream, resp.StatusCode, snippet(data))
	}

	out := Response{Type: req.Type}
	var wrapped struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Content) > 0 {
		out.Content = wrapped.Content
	} else if json.Valid(data) {
		out.Content = data
	} else {
		return Response{}, fmt.Errorf("%w: response is not JSON", domain.ErrUpstream)
	}
	return out, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
