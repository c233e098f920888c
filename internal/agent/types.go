// Package agent implements the client for the remote multi-agent
// analysis service that scores assessments.
package agent

import (
	"github.com/praxislabs/readiness/internal/domain"
)

// Question is a single question issued by the analysis service.
// Context, Rationale and AgentName are provenance the service may or
// may not attach.
type Question struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Context    string `json:"context,omitempty"`
	Rationale  string `json:"rationale,omitempty"`
	AgentName  string `json:"agent_name,omitempty"`
	SessionID  string `json:"session_id"`
}

// ContextEntry is one prior question/answer pair sent back to the
// service so it can keep its own conversation state.
type ContextEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SessionContext accompanies every submitted answer.
type SessionContext struct {
	SessionID string         `json:"session_id,omitempty"`
	History   []ContextEntry `json:"history"`
}

// ResponsePayload is the body of a submitted answer.
type ResponsePayload struct {
	QuestionID     string         `json:"question_id"`
	Answer         string         `json:"answer"`
	SessionContext SessionContext `json:"session_context"`
}

// Analysis is the terminal payload. Everything beyond the score map is
// optional; the service frequently omits the richer fields, so every
// consumer must treat them as such.
type Analysis struct {
	MaturityScores          map[string]float64      `json:"maturity_scores"`
	OverallScorePercentage  float64                 `json:"overall_score_percentage"`
	MaturityLevel           *int                    `json:"maturity_level,omitempty"`
	OverallReadinessLevel   string                  `json:"overall_readiness_level,omitempty"`
	ConceptAnalysis         *domain.ConceptAnalysis `json:"concept_analysis,omitempty"`
	LearningPath            *domain.LearningPath    `json:"learning_path,omitempty"`
	BusinessRecommendations []string                `json:"business_recommendations,omitempty"`
	AgentMetadata           *domain.AgentMetadata   `json:"agent_metadata,omitempty"`
}

// Turn is the service's reply to a submitted answer. Completed is the
// sole terminal signal: when false, Message carries the next question
// text; when true, Analysis carries the outcome.
type Turn struct {
	Completed     bool      `json:"completed"`
	SessionID     string    `json:"session_id"`
	TotalSections int       `json:"total_sections,omitempty"`
	Message       string    `json:"message"`
	QuestionID    string    `json:"question_id,omitempty"`
	Context       string    `json:"context,omitempty"`
	Rationale     string    `json:"rationale,omitempty"`
	AgentName     string    `json:"agent_name,omitempty"`
	Analysis      *Analysis `json:"analysis,omitempty"`
}
