// Package session implements the assessment state machine: the
// controller that drives a user's questionnaire against the remote
// analysis service, plus the score guard and learning plan derivation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praxislabs/readiness/internal/agent"
	"github.com/praxislabs/readiness/internal/domain"
	"github.com/praxislabs/readiness/internal/project"
	"github.com/praxislabs/readiness/internal/store"
)

var errMissingAnalysis = errors.New("terminal turn carried no analysis payload")

// Deterministic fallback text for when the service omits the basic
// insight lists.
var (
	fallbackStrengths = []string{
		"Completed the full assessment",
		"Willingness to engage with new AI concepts",
	}
	fallbackGrowthAreas = []string{
		"Build a shared AI vocabulary",
		"Get hands-on exposure to everyday AI tools",
	}
)

const integrationTimeout = 15 * time.Second

// Deps bundles the collaborators injected into a controller.
type Deps struct {
	Analyzer      agent.Analyzer
	Repo          store.Repository
	Projects      project.Integrator
	Events        *Broadcaster
	AutosaveDelay time.Duration
	Logger        *slog.Logger
}

// Controller owns one user's assessment session and is the only thing
// allowed to mutate it. At most one service call is in flight at a
// time; Start, Submit and Retake all check the loading flag first.
type Controller struct {
	// Concurrency note: the loading flag is held across the remote
	// call but the mutex is not. State is only mutated under the
	// mutex, after the call returns.
	mu      sync.Mutex
	loading bool

	sess       *domain.AssessmentSession
	entitled   bool
	projectRef string

	analyzer agent.Analyzer
	repo     store.Repository
	projects project.Integrator
	events   *Broadcaster
	saver    *autosaver
	logger   *slog.Logger
}

// NewController wraps a loaded (or fresh) session. The session is
// normalized on the way in: a completed session missing its learning
// plan gets one regenerated, and an in-progress session missing its
// pending question rebuilds it from the interaction history.
func NewController(sess *domain.AssessmentSession, entitled bool, projectRef string, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = NewBroadcaster()
	}
	if deps.Projects == nil {
		deps.Projects = project.Noop{}
	}

	c := &Controller{
		sess:       sess,
		entitled:   entitled,
		projectRef: projectRef,
		analyzer:   deps.Analyzer,
		repo:       deps.Repo,
		projects:   deps.Projects,
		events:     deps.Events,
		logger:     deps.Logger,
	}
	c.saver = newAutosaver(deps.AutosaveDelay, c.persist)
	c.normalize()
	return c
}

// normalize repairs derived state after a resume.
func (c *Controller) normalize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sess.RebuildPendingQuestion()

	if c.sess.Status == domain.StatusCompleted && c.sess.Results != nil && c.sess.LearningPlan == nil {
		c.sess.LearningPlan = BuildLearningPlan(c.sess.Results, c.entitled)
		c.logger.Info("regenerated missing learning plan on resume",
			"user_id", c.sess.UserID, "entitled", c.entitled)
		c.saver.Schedule()
	}
}

// Start begins the assessment by fetching the first question. On
// failure the session is left untouched and the error is retryable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.sess.Status != domain.StatusNotStarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.loading = true
	userID, kind := c.sess.UserID, c.sess.Kind
	c.mu.Unlock()

	q, err := c.analyzer.StartAssessment(ctx, userID, kind)
	if err != nil {
		c.clearLoading()
		return &RetryableError{Op: "start assessment", Err: err}
	}

	c.mu.Lock()
	now := time.Now()
	c.sess.Status = domain.StatusInProgress
	c.sess.Responses = []domain.QuestionResponse{}
	c.sess.CurrentQuestionIndex = 0
	c.sess.RemoteSessionID = q.SessionID
	c.sess.CurrentQuestion = &domain.PendingQuestion{
		QuestionID: ensureQuestionID(q.QuestionID),
		Text:       q.Text,
		Context:    q.Context,
		Rationale:  q.Rationale,
		AgentName:  q.AgentName,
	}
	c.sess.RecordTurn(domain.InteractionTurn{
		Kind:       domain.TurnQuestion,
		QuestionID: c.sess.CurrentQuestion.QuestionID,
		Text:       q.Text,
		AgentName:  q.AgentName,
		Context:    q.Context,
		Rationale:  q.Rationale,
	})
	c.sess.UpdatedAt = now
	c.loading = false
	ev := c.eventLocked()
	c.mu.Unlock()

	c.saver.Schedule()
	c.events.Publish(ev)
	return nil
}

// Submit sends the answer to the pending question. A non-terminal
// reply advances to the next question; a terminal reply computes the
// results, derives the learning plan, persists, and kicks off the
// best-effort project integration. On network failure no state moves.
func (c *Controller) Submit(ctx context.Context, text string) error {
	answer := strings.TrimSpace(text)
	if answer == "" {
		return ErrEmptyAnswer
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.sess.Status != domain.StatusInProgress || c.sess.CurrentQuestion == nil {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	pending := *c.sess.CurrentQuestion
	payload := agent.ResponsePayload{
		QuestionID: pending.QuestionID,
		Answer:     answer,
		SessionContext: agent.SessionContext{
			SessionID: c.sess.RemoteSessionID,
			History:   contextHistory(c.sess.Responses),
		},
	}
	userID, kind := c.sess.UserID, c.sess.Kind
	c.loading = true
	c.mu.Unlock()

	turn, err := c.analyzer.SubmitResponse(ctx, userID, kind, payload)
	if err != nil {
		c.clearLoading()
		return &RetryableError{Op: "submit response", Err: err}
	}
	if turn.Completed && turn.Analysis == nil {
		// The completed flag is the sole terminal signal, but a
		// terminal turn with no payload cannot produce results.
		c.clearLoading()
		return &RetryableError{Op: "submit response", Err: errMissingAnalysis}
	}

	if !turn.Completed {
		c.advance(pending, answer, turn)
		return nil
	}
	c.complete(pending, answer, turn)
	return nil
}

// advance applies a non-terminal turn.
func (c *Controller) advance(pending domain.PendingQuestion, answer string, turn *agent.Turn) {
	c.mu.Lock()
	c.sess.RecordAnswer(pending, answer)
	qid := ensureQuestionID(turn.QuestionID)
	c.sess.CurrentQuestion = &domain.PendingQuestion{
		QuestionID: qid,
		Text:       turn.Message,
		Context:    turn.Context,
		Rationale:  turn.Rationale,
		AgentName:  turn.AgentName,
	}
	c.sess.RecordTurn(domain.InteractionTurn{
		Kind:       domain.TurnQuestion,
		QuestionID: qid,
		Text:       turn.Message,
		AgentName:  turn.AgentName,
		Context:    turn.Context,
		Rationale:  turn.Rationale,
	})
	if turn.TotalSections > 0 {
		c.sess.TotalSections = turn.TotalSections
	}
	if turn.SessionID != "" {
		c.sess.RemoteSessionID = turn.SessionID
	}
	c.sess.UpdatedAt = time.Now()
	c.loading = false
	ev := c.eventLocked()
	c.mu.Unlock()

	c.saver.Schedule()
	c.events.Publish(ev)
}

// complete applies the terminal turn.
func (c *Controller) complete(pending domain.PendingQuestion, answer string, turn *agent.Turn) {
	c.mu.Lock()
	c.sess.RecordAnswer(pending, answer)
	c.sess.RecordTurn(domain.InteractionTurn{
		Kind: domain.TurnCompletion,
		Text: turn.Message,
	})

	results := c.buildResultsLocked(turn.Analysis)
	c.sess.Results = results
	c.sess.LearningPlan = BuildLearningPlan(results, c.entitled)
	c.sess.Status = domain.StatusCompleted
	c.sess.CurrentQuestion = nil
	if turn.TotalSections > 0 {
		c.sess.TotalSections = turn.TotalSections
	}
	c.sess.UpdatedAt = time.Now()
	c.loading = false
	snapshot := c.projectSnapshotLocked()
	kind := c.sess.Kind
	ev := c.eventLocked()
	c.mu.Unlock()

	c.saver.FlushAsync()
	c.events.Publish(ev)
	go c.integrate(kind, snapshot)
}

// buildResultsLocked turns the upstream analysis into validated
// results. The upstream score passes through the guard and the
// maturity level is always recomputed from the validated score.
func (c *Controller) buildResultsLocked(analysis *agent.Analysis) *domain.AssessmentResults {
	raw := analysis.OverallScorePercentage
	validated, corrected := ValidateScore(raw, c.sess.Responses)
	if corrected {
		c.logger.Warn("implausible upstream score corrected",
			"user_id", c.sess.UserID,
			"raw_score", raw,
			"validated_score", validated,
		)
	}

	level := domain.MaturityLevelForScore(validated)
	if analysis.MaturityLevel != nil && *analysis.MaturityLevel != level {
		c.logger.Debug("upstream maturity level disagrees with validated score",
			"upstream", *analysis.MaturityLevel, "recomputed", level)
	}

	scores := make(map[string]float64, len(analysis.MaturityScores))
	for k, v := range analysis.MaturityScores {
		scores[k] = v
	}

	return &domain.AssessmentResults{
		OverallScore:            validated,
		MaturityScores:          scores,
		MaturityLevel:           level,
		QuestionsAnswered:       len(c.sess.Responses),
		BasicInsights:           buildBasicInsights(analysis),
		OverallReadinessLevel:   analysis.OverallReadinessLevel,
		ConceptAnalysis:         analysis.ConceptAnalysis,
		LearningPath:            analysis.LearningPath,
		BusinessRecommendations: analysis.BusinessRecommendations,
		AgentMetadata:           analysis.AgentMetadata,
		CompletedAt:             time.Now(),
	}
}

// Retake discards the session and returns to NotStarted. The prior
// completed record is not deleted server-side.
func (c *Controller) Retake() error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.sess.Reset()
	ev := c.eventLocked()
	c.mu.Unlock()

	c.saver.FlushAsync()
	c.events.Publish(ev)
	return nil
}

// Snapshot returns a copy of the session for presenters. Slices are
// cloned; results and plan pointers are replaced wholesale on write
// and safe to share.
func (c *Controller) Snapshot() domain.AssessmentSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := *c.sess
	snap.Responses = append([]domain.QuestionResponse(nil), c.sess.Responses...)
	snap.InteractionHistory = append([]domain.InteractionTurn(nil), c.sess.InteractionHistory...)
	if c.sess.CurrentQuestion != nil {
		q := *c.sess.CurrentQuestion
		snap.CurrentQuestion = &q
	}
	return snap
}

// Loading reports whether a service call is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Entitled reports the current entitlement tier.
func (c *Controller) Entitled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entitled
}

// Flush forces a synchronous persistence write, used on shutdown.
func (c *Controller) Flush(ctx context.Context) error {
	c.saver.Stop()
	return c.persist(ctx)
}

func (c *Controller) clearLoading() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

func (c *Controller) eventLocked() Event {
	return Event{
		UserID:        c.sess.UserID,
		Kind:          c.sess.Kind,
		Status:        c.sess.Status,
		QuestionIndex: c.sess.CurrentQuestionIndex,
		TotalSections: c.sess.TotalSections,
		Loading:       c.loading,
		Completed:     c.sess.Status == domain.StatusCompleted,
	}
}

// persist writes the current session state. Called from the autosaver
// off the request path; errors are the caller's to log.
func (c *Controller) persist(ctx context.Context) error {
	snap := c.Snapshot()
	return c.repo.SaveSession(ctx, &snap)
}

func (c *Controller) projectSnapshotLocked() project.ResultsSnapshot {
	r := c.sess.Results
	return project.ResultsSnapshot{
		UserID:            c.sess.UserID,
		Kind:              c.sess.Kind,
		OverallScore:      r.OverallScore,
		MaturityLevel:     r.MaturityLevel,
		MaturityScores:    r.MaturityScores,
		QuestionsAnswered: r.QuestionsAnswered,
		BasicInsights:     r.BasicInsights,
		CompletedAt:       r.CompletedAt,
	}
}

// integrate pushes completed results to the project service. The two
// calls are independent failure domains: the second is attempted even
// when the first fails, and neither failure touches the session.
func (c *Controller) integrate(kind string, snapshot project.ResultsSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	if err := c.projects.AddAssessmentToProject(ctx, c.projectRef, kind, snapshot); err != nil {
		c.logger.Warn("failed to add assessment to project",
			"project_id", c.projectRef, "user_id", snapshot.UserID, "error", err)
	}
	items, err := c.projects.GenerateActionItemsFromAssessment(ctx, c.projectRef, kind, snapshot)
	if err != nil {
		c.logger.Warn("failed to generate project action items",
			"project_id", c.projectRef, "user_id", snapshot.UserID, "error", err)
		return
	}
	if len(items) > 0 {
		c.logger.Info("project action items generated",
			"project_id", c.projectRef, "count", len(items))
	}
}

func buildBasicInsights(analysis *agent.Analysis) domain.BasicInsights {
	insights := domain.BasicInsights{
		Strengths:   append([]string(nil), fallbackStrengths...),
		GrowthAreas: append([]string(nil), fallbackGrowthAreas...),
	}
	if ca := analysis.ConceptAnalysis; ca != nil {
		if len(ca.Strengths) > 0 {
			insights.Strengths = append([]string(nil), ca.Strengths...)
		}
		if len(ca.KnowledgeGaps) > 0 {
			insights.GrowthAreas = append([]string(nil), ca.KnowledgeGaps...)
		}
	}
	return insights
}

func contextHistory(responses []domain.QuestionResponse) []agent.ContextEntry {
	history := make([]agent.ContextEntry, 0, len(responses))
	for _, r := range responses {
		history = append(history, agent.ContextEntry{Question: r.Question, Answer: r.Answer})
	}
	return history
}

func ensureQuestionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
