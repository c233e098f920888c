package api

import (
	"github.com/praxislabs/readiness/internal/domain"
)

// Presenters are pure functions from session state to the JSON view
// models the page renders. They never reach into the store or the
// analysis service.

// StepState is the display state of one progress stage.
type StepState string

const (
	StepComplete StepState = "complete"
	StepActive   StepState = "active"
	StepUpcoming StepState = "upcoming"
)

// StepView is one stage of the four-step progress indicator.
type StepView struct {
	Label string    `json:"label"`
	State StepState `json:"state"`
}

// StepIndicatorView is the four-stage progress display.
type StepIndicatorView struct {
	Stages  []StepView `json:"stages"`
	Current int        `json:"current"`
}

var stepLabels = [4]string{"Intro", "Questions", "Results", "Learning Plan"}

// StepIndicator maps session status (plus the presentation-only
// viewing-plan flag) onto the progress display.
func StepIndicator(status domain.SessionStatus, viewingPlan bool) StepIndicatorView {
	current := 0
	switch status {
	case domain.StatusInProgress:
		current = 1
	case domain.StatusCompleted:
		current = 2
		if viewingPlan {
			current = 3
		}
	}

	view := StepIndicatorView{Current: current}
	for i, label := range stepLabels {
		state := StepUpcoming
		switch {
		case i < current:
			state = StepComplete
		case i == current:
			state = StepActive
		}
		view.Stages = append(view.Stages, StepView{Label: label, State: state})
	}
	return view
}

// IntroView is shown before the assessment starts.
type IntroView struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
	CanStart    bool   `json:"can_start"`
}

// QuestionView renders the pending question with any agent provenance
// the service attached. The draft answer lives in the page; the server
// only flags whether the submit control should be disabled.
type QuestionView struct {
	QuestionID     string `json:"question_id"`
	Text           string `json:"text"`
	Context        string `json:"context,omitempty"`
	Rationale      string `json:"rationale,omitempty"`
	AgentName      string `json:"agent_name,omitempty"`
	QuestionNumber int    `json:"question_number"`
	TotalSections  int    `json:"total_sections,omitempty"`
	SubmitDisabled bool   `json:"submit_disabled"`
}

// ResultsView renders completed results. The richer fields are gated
// behind entitlement; the basic tier is always present.
type ResultsView struct {
	OverallScore      float64              `json:"overall_score"`
	MaturityLevel     int                  `json:"maturity_level"`
	MaturityScores    map[string]float64   `json:"maturity_scores"`
	QuestionsAnswered int                  `json:"questions_answered"`
	BasicInsights     domain.BasicInsights `json:"basic_insights"`
	Entitled          bool                 `json:"entitled"`

	// Entitlement-gated.
	OverallReadinessLevel   string                  `json:"overall_readiness_level,omitempty"`
	ConceptAnalysis         *domain.ConceptAnalysis `json:"concept_analysis,omitempty"`
	BusinessRecommendations []string                `json:"business_recommendations,omitempty"`
	AgentsUsed              []string                `json:"agents_used,omitempty"`
}

// PlanView renders the learning plan. The detailed tier is already
// gated by the plan builder; the view just carries it through.
type PlanView struct {
	BasicRecommendations []string             `json:"basic_recommendations"`
	DetailedPlan         *domain.DetailedPlan `json:"detailed_plan,omitempty"`
	Entitled             bool                 `json:"entitled"`
}

// SessionView is the composite state the page re-renders from.
type SessionView struct {
	Status        domain.SessionStatus `json:"status"`
	Loading       bool                 `json:"loading"`
	StepIndicator StepIndicatorView    `json:"step_indicator"`
	Intro         *IntroView           `json:"intro,omitempty"`
	Question      *QuestionView        `json:"question,omitempty"`
	Results       *ResultsView         `json:"results,omitempty"`
	Plan          *PlanView            `json:"plan,omitempty"`
}

// BuildSessionView assembles the composite view for the current state.
func BuildSessionView(snap domain.AssessmentSession, loading, entitled, viewingPlan bool) SessionView {
	view := SessionView{
		Status:        snap.Status,
		Loading:       loading,
		StepIndicator: StepIndicator(snap.Status, viewingPlan),
	}

	switch snap.Status {
	case domain.StatusNotStarted:
		view.Intro = buildIntroView(loading)
	case domain.StatusInProgress:
		view.Question = buildQuestionView(snap, loading)
	case domain.StatusCompleted:
		view.Results = buildResultsView(snap.Results, entitled)
		if viewingPlan {
			view.Plan = buildPlanView(snap.LearningPlan, entitled)
		}
	}
	return view
}

func buildIntroView(loading bool) *IntroView {
	return &IntroView{
		Headline:    "How ready is your organization for AI?",
		Description: "Answer a short series of questions and our analysis agents will map your knowledge maturity and where to focus next.",
		CanStart:    !loading,
	}
}

func buildQuestionView(snap domain.AssessmentSession, loading bool) *QuestionView {
	q := snap.CurrentQuestion
	if q == nil {
		return nil
	}
	return &QuestionView{
		QuestionID:     q.QuestionID,
		Text:           q.Text,
		Context:        q.Context,
		Rationale:      q.Rationale,
		AgentName:      q.AgentName,
		QuestionNumber: snap.CurrentQuestionIndex + 1,
		TotalSections:  snap.TotalSections,
		SubmitDisabled: loading,
	}
}

func buildResultsView(r *domain.AssessmentResults, entitled bool) *ResultsView {
	if r == nil {
		return nil
	}
	view := &ResultsView{
		OverallScore:      r.OverallScore,
		MaturityLevel:     r.MaturityLevel,
		MaturityScores:    r.MaturityScores,
		QuestionsAnswered: r.QuestionsAnswered,
		BasicInsights:     r.BasicInsights,
		Entitled:          entitled,
	}
	if entitled {
		view.OverallReadinessLevel = r.OverallReadinessLevel
		view.ConceptAnalysis = r.ConceptAnalysis
		view.BusinessRecommendations = r.BusinessRecommendations
		if r.AgentMetadata != nil {
			view.AgentsUsed = r.AgentMetadata.AgentsUsed
		}
	}
	return view
}

func buildPlanView(plan *domain.LearningPlan, entitled bool) *PlanView {
	if plan == nil {
		return nil
	}
	return &PlanView{
		BasicRecommendations: plan.BasicRecommendations,
		DetailedPlan:         plan.DetailedPlan,
		Entitled:             entitled,
	}
}
