package domain

import (
	"testing"
)

func TestMaturityLevelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  int
	}{
		{0, 1},
		{1, 1},
		{20, 1},
		{20.5, 2},
		{36, 2},
		{40, 2},
		{59, 3},
		{61, 4},
		{80, 4},
		{81, 5},
		{100, 5},
		{120, 5},
		{-5, 1},
	}
	for _, tc := range cases {
		if got := MaturityLevelForScore(tc.score); got != tc.want {
			t.Errorf("MaturityLevelForScore(%v) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestRecordAnswerKeepsIndexAligned(t *testing.T) {
	s := NewSession("u1", "ai-knowledge")
	s.Status = StatusInProgress

	for i, q := range []PendingQuestion{
		{QuestionID: "q1", Text: "What is a model?"},
		{QuestionID: "q2", Text: "What is fine-tuning?"},
		{QuestionID: "q3", Text: "Where would you apply AI first?"},
	} {
		s.RecordAnswer(q, "an answer")
		if s.CurrentQuestionIndex != i+1 {
			t.Fatalf("after answer %d: index = %d, want %d", i+1, s.CurrentQuestionIndex, i+1)
		}
		if s.CurrentQuestionIndex != len(s.Responses) {
			t.Fatalf("index %d out of step with %d responses", s.CurrentQuestionIndex, len(s.Responses))
		}
	}
}

func TestResetClearsDerivedState(t *testing.T) {
	s := NewSession("u1", "ai-knowledge")
	s.Status = StatusCompleted
	s.Responses = []QuestionResponse{{QuestionID: "q1", Question: "x", Answer: "y"}}
	s.CurrentQuestionIndex = 1
	s.Results = &AssessmentResults{OverallScore: 50}
	s.LearningPlan = &LearningPlan{}
	s.RemoteSessionID = "remote-1"

	s.Reset()

	if s.Status != StatusNotStarted {
		t.Errorf("status = %q, want %q", s.Status, StatusNotStarted)
	}
	if len(s.Responses) != 0 || s.CurrentQuestionIndex != 0 {
		t.Errorf("responses/index not cleared: %d/%d", len(s.Responses), s.CurrentQuestionIndex)
	}
	if s.Results != nil || s.LearningPlan != nil {
		t.Error("results/learning plan not cleared")
	}
	if s.RemoteSessionID != "" {
		t.Error("remote session id not cleared")
	}
}

func TestRebuildPendingQuestion(t *testing.T) {
	s := NewSession("u1", "ai-knowledge")
	s.Status = StatusInProgress
	s.RecordTurn(InteractionTurn{Kind: TurnQuestion, QuestionID: "q1", Text: "first"})
	s.RecordTurn(InteractionTurn{Kind: TurnQuestion, QuestionID: "q2", Text: "second", AgentName: "strategy-agent"})

	s.RebuildPendingQuestion()

	if s.CurrentQuestion == nil {
		t.Fatal("pending question not rebuilt")
	}
	if s.CurrentQuestion.QuestionID != "q2" || s.CurrentQuestion.AgentName != "strategy-agent" {
		t.Errorf("rebuilt wrong turn: %+v", s.CurrentQuestion)
	}
}
