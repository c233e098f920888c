package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/praxislabs/readiness/internal/agent"
	"github.com/praxislabs/readiness/internal/domain"
	"github.com/praxislabs/readiness/internal/identity"
	"github.com/praxislabs/readiness/internal/session"
	"github.com/praxislabs/readiness/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "busy")

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "busy" {
		t.Errorf("Expected error=busy, got %v", got["error"])
	}
}

func TestRetryableErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	RetryableError(w, http.StatusBadGateway, "upstream down")

	var got map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["retryable"] != true {
		t.Errorf("Expected retryable=true, got %v", got["retryable"])
	}
}

// stubRepo is an in-memory Repository for handler tests.
type stubRepo struct {
	user     *domain.User
	sessions map[string]*domain.AssessmentSession
}

func newStubRepo(entitled bool) *stubRepo {
	return &stubRepo{
		user: &domain.User{
			UserID:   "anon_0123456789abcdef0123456789abcdef",
			Username: "visitor-1234",
			Entitled: entitled,
		},
		sessions: make(map[string]*domain.AssessmentSession),
	}
}

func (r *stubRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if r.user != nil && r.user.UserID == userID {
		return r.user, nil
	}
	return nil, nil
}

func (r *stubRepo) UpsertUser(_ context.Context, user *domain.User) error {
	r.user = user
	return nil
}

func (r *stubRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

func (r *stubRepo) GetSession(_ context.Context, userID, kind string) (*domain.AssessmentSession, error) {
	return r.sessions[userID+"/"+kind], nil
}

func (r *stubRepo) SaveSession(_ context.Context, sess *domain.AssessmentSession) error {
	cp := *sess
	r.sessions[sess.UserID+"/"+sess.Kind] = &cp
	return nil
}

func (r *stubRepo) CleanupStaleSessions(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (r *stubRepo) Ping(_ context.Context) error { return nil }
func (r *stubRepo) Close() error                 { return nil }

var _ store.Repository = (*stubRepo)(nil)

// stubAnalyzer scripts a two-question assessment.
type stubAnalyzer struct{}

func (stubAnalyzer) StartAssessment(_ context.Context, _, _ string) (*agent.Question, error) {
	return &agent.Question{
		QuestionID: "q1",
		Text:       "How does your team use AI today?",
		SessionID:  "remote-1",
	}, nil
}

func (stubAnalyzer) SubmitResponse(_ context.Context, _, _ string, payload agent.ResponsePayload) (*agent.Turn, error) {
	if payload.QuestionID == "q1" {
		return &agent.Turn{
			SessionID:     "remote-1",
			QuestionID:    "q2",
			Message:       "What would you automate first?",
			TotalSections: 2,
		}, nil
	}
	return &agent.Turn{
		Completed: true,
		SessionID: "remote-1",
		Message:   "All done.",
		Analysis: &agent.Analysis{
			MaturityScores:         map[string]float64{"strategy": 3},
			OverallScorePercentage: 62,
		},
	}, nil
}

func (stubAnalyzer) Close() {}

func newTestServer(t *testing.T, repo *stubRepo) *httptest.Server {
	return newTestServerWith(t, repo, stubAnalyzer{})
}

func newTestServerWith(t *testing.T, repo *stubRepo, analyzer agent.Analyzer) *httptest.Server {
	t.Helper()

	sessions := session.NewManager("ai-knowledge", session.Deps{
		Analyzer: analyzer,
		Repo:     repo,
	})
	handler := NewAssessmentHandler(NewHandler(repo, sessions, "http://localhost:3000"))

	r := chi.NewRouter()
	// Stand-in for the identity middleware: every request carries the
	// stub user's identity.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithUserID(req.Context(), repo.user.UserID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getView(t *testing.T, srv *httptest.Server, path string) SessionView {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func postView(t *testing.T, srv *httptest.Server, path, body string) (SessionView, int) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var view SessionView
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatalf("decode view: %v", err)
		}
	}
	return view, resp.StatusCode
}

func TestAssessmentFlowOverHTTP(t *testing.T) {
	repo := newStubRepo(false)
	srv := newTestServer(t, repo)

	view := getView(t, srv, "/api/assessment")
	if view.Status != domain.StatusNotStarted || view.Intro == nil {
		t.Fatalf("fresh state wrong: %+v", view)
	}

	view, code := postView(t, srv, "/api/assessment/start", "")
	if code != http.StatusOK || view.Question == nil {
		t.Fatalf("start failed: code=%d view=%+v", code, view)
	}
	if view.Question.QuestionNumber != 1 {
		t.Errorf("question number = %d, want 1", view.Question.QuestionNumber)
	}

	view, code = postView(t, srv, "/api/assessment/response", `{"answer":"We pilot chat assistants in support."}`)
	if code != http.StatusOK || view.Question == nil {
		t.Fatalf("first answer failed: code=%d view=%+v", code, view)
	}
	if view.Question.QuestionID != "q2" || view.Question.QuestionNumber != 2 {
		t.Errorf("did not advance to q2: %+v", view.Question)
	}

	view, code = postView(t, srv, "/api/assessment/response", `{"answer":"Ticket triage, then drafting replies."}`)
	if code != http.StatusOK {
		t.Fatalf("final answer failed: code=%d", code)
	}
	if view.Status != domain.StatusCompleted || view.Results == nil {
		t.Fatalf("session not completed: %+v", view)
	}
	if view.Results.OverallScore != 62 {
		t.Errorf("overall score = %v, want 62", view.Results.OverallScore)
	}
	if view.Results.QuestionsAnswered != 2 {
		t.Errorf("questions answered = %d, want 2", view.Results.QuestionsAnswered)
	}
}

func TestSubmitValidationOverHTTP(t *testing.T) {
	repo := newStubRepo(false)
	srv := newTestServer(t, repo)

	// Before start.
	_, code := postView(t, srv, "/api/assessment/response", `{"answer":"hello"}`)
	if code != http.StatusConflict {
		t.Errorf("submit before start: code = %d, want 409", code)
	}

	if _, code = postView(t, srv, "/api/assessment/start", ""); code != http.StatusOK {
		t.Fatalf("start failed: %d", code)
	}

	// Empty answer.
	_, code = postView(t, srv, "/api/assessment/response", `{"answer":"   "}`)
	if code != http.StatusBadRequest {
		t.Errorf("empty answer: code = %d, want 400", code)
	}

	// Double start.
	_, code = postView(t, srv, "/api/assessment/start", "")
	if code != http.StatusConflict {
		t.Errorf("double start: code = %d, want 409", code)
	}
}

func TestResultsEndpointsRequireCompletion(t *testing.T) {
	repo := newStubRepo(true)
	srv := newTestServer(t, repo)

	for _, path := range []string{"/api/assessment/results", "/api/assessment/plan"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: code = %d, want 404", path, resp.StatusCode)
		}
	}
}

// failingAnalyzer simulates an unreachable analysis service.
type failingAnalyzer struct{}

func (failingAnalyzer) StartAssessment(context.Context, string, string) (*agent.Question, error) {
	return nil, errors.New("connection refused")
}

func (failingAnalyzer) SubmitResponse(context.Context, string, string, agent.ResponsePayload) (*agent.Turn, error) {
	return nil, errors.New("connection refused")
}

func (failingAnalyzer) Close() {}

func TestUpstreamFailureMapsToRetryable502(t *testing.T) {
	repo := newStubRepo(false)
	srv := newTestServerWith(t, repo, failingAnalyzer{})

	resp, err := http.Post(srv.URL+"/api/assessment/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["retryable"] != true {
		t.Errorf("body = %v, want retryable=true", body)
	}
	if body["error"] == "" {
		t.Error("error message missing")
	}

	// The failure left the session on the intro stage and retryable.
	view := getView(t, srv, "/api/assessment")
	if view.Status != domain.StatusNotStarted {
		t.Errorf("status = %q, want not_started after failed start", view.Status)
	}
}

func TestEffectiveEntitledDevOverride(t *testing.T) {
	user := &domain.User{Entitled: false}

	if effectiveEntitled(user, false) {
		t.Error("non-entitled user treated as entitled")
	}

	t.Setenv("DEV_ENTITLED", "1")
	if effectiveEntitled(user, false) {
		t.Error("override must not apply outside development mode")
	}
	if !effectiveEntitled(user, true) {
		t.Error("override must apply in development mode")
	}

	t.Setenv("DEV_ENTITLED", "")
	if effectiveEntitled(user, true) {
		t.Error("override applied without DEV_ENTITLED=1")
	}
	if !effectiveEntitled(&domain.User{Entitled: true}, false) {
		t.Error("billing entitlement ignored")
	}
}

func TestRetakeReturnsToIntro(t *testing.T) {
	repo := newStubRepo(false)
	srv := newTestServer(t, repo)

	if _, code := postView(t, srv, "/api/assessment/start", ""); code != http.StatusOK {
		t.Fatal("start failed")
	}
	if _, code := postView(t, srv, "/api/assessment/response", `{"answer":"a little"}`); code != http.StatusOK {
		t.Fatal("answer failed")
	}

	view, code := postView(t, srv, "/api/assessment/retake", "")
	if code != http.StatusOK {
		t.Fatalf("retake failed: %d", code)
	}
	if view.Status != domain.StatusNotStarted || view.Intro == nil {
		t.Fatalf("retake did not reset: %+v", view)
	}
}
