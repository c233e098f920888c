package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	errEmptyQuestion = errors.New("analysis service returned an empty question")
	errEmptyTurn     = errors.New("analysis service returned an empty turn")
)

// StatusError is a non-2xx reply from the analysis service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned status %d: %s", e.Code, e.Body)
}

// Client is the HTTP client to the multi-agent analysis service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientConfig holds configuration for the analysis service client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        getEnv("ANALYSIS_SERVICE_URL", "http://localhost:8600"),
		RequestTimeout: 30 * time.Second,
	}
}

// NewClient creates a new analysis service client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClientConfig().BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultClientConfig().RequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}
}

// StartAssessment opens a remote session and returns the first question.
func (c *Client) StartAssessment(ctx context.Context, userID, kind string) (*Question, error) {
	body := map[string]string{
		"user_id":         userID,
		"assessment_kind": kind,
	}
	var q Question
	if err := c.post(ctx, "/assessments/start", body, &q); err != nil {
		return nil, fmt.Errorf("start assessment: %w", err)
	}
	if q.Text == "" {
		return nil, errEmptyQuestion
	}
	return &q, nil
}

// SubmitResponse sends one answer and returns the next turn.
func (c *Client) SubmitResponse(ctx context.Context, userID, kind string, payload ResponsePayload) (*Turn, error) {
	body := map[string]any{
		"user_id":         userID,
		"assessment_kind": kind,
		"question_id":     payload.QuestionID,
		"answer":          payload.Answer,
		"session_context": payload.SessionContext,
	}
	var t Turn
	if err := c.post(ctx, "/assessments/respond", body, &t); err != nil {
		return nil, fmt.Errorf("submit response: %w", err)
	}
	if !t.Completed && t.Message == "" {
		return nil, errEmptyTurn
	}
	return &t, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	c.logger.Debug("analysis service call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
