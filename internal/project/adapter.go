// Package project integrates completed assessments with the project
// service. Both calls are best-effort: a failure is logged and never
// rolls back the assessment.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/praxislabs/readiness/internal/domain"
)

// ActionItem is a follow-up task the project service derives from a
// completed assessment.
type ActionItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ResultsSnapshot is the copy of completed results handed to the
// project service. It is a value copy; the session keeps ownership of
// the originals.
type ResultsSnapshot struct {
	UserID            string               `json:"user_id"`
	Kind              string               `json:"kind"`
	OverallScore      float64              `json:"overall_score"`
	MaturityLevel     int                  `json:"maturity_level"`
	MaturityScores    map[string]float64   `json:"maturity_scores"`
	QuestionsAnswered int                  `json:"questions_answered"`
	BasicInsights     domain.BasicInsights `json:"basic_insights"`
	CompletedAt       time.Time            `json:"completed_at"`
}

// Integrator is the interface to the project service.
type Integrator interface {
	// AddAssessmentToProject stores a snapshot of completed results on
	// the project.
	AddAssessmentToProject(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) error

	// GenerateActionItemsFromAssessment asks the project service to
	// derive action items from the snapshot.
	GenerateActionItemsFromAssessment(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) ([]ActionItem, error)
}

// HTTPAdapter talks to the project service over JSON.
type HTTPAdapter struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ Integrator = (*HTTPAdapter)(nil)

// NewHTTPAdapter creates an adapter for the project service at baseURL.
func NewHTTPAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// AddAssessmentToProject stores the snapshot on the project.
func (a *HTTPAdapter) AddAssessmentToProject(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) error {
	path := fmt.Sprintf("/projects/%s/assessments", projectID)
	body := map[string]any{
		"kind": kind,
		"data": snapshot,
	}
	return a.post(ctx, path, body, nil)
}

// GenerateActionItemsFromAssessment derives action items from the snapshot.
func (a *HTTPAdapter) GenerateActionItemsFromAssessment(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) ([]ActionItem, error) {
	path := fmt.Sprintf("/projects/%s/action-items/generate", projectID)
	body := map[string]any{
		"kind": kind,
		"data": snapshot,
	}
	var out struct {
		ActionItems []ActionItem `json:"action_items"`
	}
	if err := a.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return out.ActionItems, nil
}

func (a *HTTPAdapter) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("project service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// Noop is used when no project service is configured.
type Noop struct{}

var _ Integrator = Noop{}

// AddAssessmentToProject does nothing.
func (Noop) AddAssessmentToProject(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) error {
	return nil
}

// GenerateActionItemsFromAssessment does nothing.
func (Noop) GenerateActionItemsFromAssessment(ctx context.Context, projectID, kind string, snapshot ResultsSnapshot) ([]ActionItem, error) {
	return nil, nil
}
