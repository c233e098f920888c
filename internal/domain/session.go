// Package domain contains core domain types for the readiness assessment engine.
package domain

import (
	"time"
)

// SessionStatus describes where a session is in its lifecycle.
type SessionStatus string

const (
	// StatusNotStarted means the user has not begun the questionnaire.
	StatusNotStarted SessionStatus = "not_started"
	// StatusInProgress means at least one question has been issued and the
	// terminal turn has not arrived yet.
	StatusInProgress SessionStatus = "in_progress"
	// StatusCompleted means the analysis service sent its terminal turn.
	StatusCompleted SessionStatus = "completed"
)

// QuestionResponse is one answered question. Insertion order is the
// question sequence and is never reordered.
type QuestionResponse struct {
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"response"`
	Timestamp  time.Time `json:"timestamp"`
}

// TurnKind classifies a recorded service turn.
type TurnKind string

const (
	// TurnQuestion is a question issued by the analysis service.
	TurnQuestion TurnKind = "question"
	// TurnCompletion is the terminal turn carrying the analysis payload.
	TurnCompletion TurnKind = "completion"
)

// InteractionTurn is a raw service turn kept for resume and audit.
// It is never used for scoring.
type InteractionTurn struct {
	Kind       TurnKind  `json:"kind"`
	QuestionID string    `json:"question_id,omitempty"`
	Text       string    `json:"text"`
	AgentName  string    `json:"agent_name,omitempty"`
	Context    string    `json:"context,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PendingQuestion is the question currently awaiting an answer.
type PendingQuestion struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Context    string `json:"context,omitempty"`
	Rationale  string `json:"rationale,omitempty"`
	AgentName  string `json:"agent_name,omitempty"`
}

// AssessmentSession is the aggregate root for one user's assessment.
// It is mutated only by the session controller.
type AssessmentSession struct {
	UserID               string             `json:"user_id"`
	Kind                 string             `json:"kind"`
	RemoteSessionID      string             `json:"remote_session_id,omitempty"`
	Status               SessionStatus      `json:"status"`
	Responses            []QuestionResponse `json:"responses"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	InteractionHistory   []InteractionTurn  `json:"interaction_history"`
	CurrentQuestion      *PendingQuestion   `json:"current_question,omitempty"`
	TotalSections        int                `json:"total_sections,omitempty"`
	Results              *AssessmentResults `json:"results,omitempty"`
	LearningPlan         *LearningPlan      `json:"learning_plan,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewSession returns a fresh, not-yet-started session.
func NewSession(userID, kind string) *AssessmentSession {
	now := time.Now()
	return &AssessmentSession{
		UserID:    userID,
		Kind:      kind,
		Status:    StatusNotStarted,
		Responses: []QuestionResponse{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordTurn appends a raw service turn to the interaction history.
func (s *AssessmentSession) RecordTurn(turn InteractionTurn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.InteractionHistory = append(s.InteractionHistory, turn)
}

// RecordAnswer appends the answered question and advances the index.
// The caller must have checked that a question is pending.
func (s *AssessmentSession) RecordAnswer(q PendingQuestion, answer string) {
	s.Responses = append(s.Responses, QuestionResponse{
		QuestionID: q.QuestionID,
		Question:   q.Text,
		Answer:     answer,
		Timestamp:  time.Now(),
	})
	s.CurrentQuestionIndex = len(s.Responses)
}

// Reset clears the session back to a not-started state. The prior
// completed record, if any, is not deleted server-side.
func (s *AssessmentSession) Reset() {
	s.Status = StatusNotStarted
	s.Responses = []QuestionResponse{}
	s.CurrentQuestionIndex = 0
	s.InteractionHistory = nil
	s.CurrentQuestion = nil
	s.RemoteSessionID = ""
	s.TotalSections = 0
	s.Results = nil
	s.LearningPlan = nil
	s.UpdatedAt = time.Now()
}

// RebuildPendingQuestion restores CurrentQuestion from the interaction
// history after a resume, when the persisted copy predates the field.
func (s *AssessmentSession) RebuildPendingQuestion() {
	if s.Status != StatusInProgress || s.CurrentQuestion != nil {
		return
	}
	for i := len(s.InteractionHistory) - 1; i >= 0; i-- {
		t := s.InteractionHistory[i]
		if t.Kind == TurnQuestion {
			s.CurrentQuestion = &PendingQuestion{
				QuestionID: t.QuestionID,
				Text:       t.Text,
				Context:    t.Context,
				Rationale:  t.Rationale,
				AgentName:  t.AgentName,
			}
			return
		}
	}
}
