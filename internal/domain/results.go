package domain

import (
	"math"
	"time"
)

// BasicInsights is the always-present summary tier of the results.
type BasicInsights struct {
	Strengths   []string `json:"strengths"`
	GrowthAreas []string `json:"growth_areas"`
}

// ConceptAnalysis is optional richer output from the analysis service.
type ConceptAnalysis struct {
	Strengths        []string `json:"strengths,omitempty"`
	KnowledgeGaps    []string `json:"knowledge_gaps,omitempty"`
	DetectedConcepts []string `json:"detected_concepts,omitempty"`
}

// AgentMetadata records which upstream agents produced the analysis.
type AgentMetadata struct {
	AgentsUsed []string `json:"agents_used,omitempty"`
}

// AssessmentResults is the completed-session outcome. Every field past
// the basic tier is optional; the service does not always send them.
type AssessmentResults struct {
	OverallScore            float64            `json:"overall_score"`
	MaturityScores          map[string]float64 `json:"maturity_scores"`
	MaturityLevel           int                `json:"maturity_level"`
	QuestionsAnswered       int                `json:"questions_answered"`
	BasicInsights           BasicInsights      `json:"basic_insights"`
	OverallReadinessLevel   string             `json:"overall_readiness_level,omitempty"`
	ConceptAnalysis         *ConceptAnalysis   `json:"concept_analysis,omitempty"`
	LearningPath            *LearningPath      `json:"learning_path,omitempty"`
	BusinessRecommendations []string           `json:"business_recommendations,omitempty"`
	AgentMetadata           *AgentMetadata     `json:"agent_metadata,omitempty"`
	CompletedAt             time.Time          `json:"completed_at"`
}

// MaturityLevelForScore maps a validated percentage score to the 1-5
// maturity band: ceil(score/20), clamped to [1,5]. The upstream level
// is never trusted verbatim.
func MaturityLevelForScore(score float64) int {
	level := int(math.Ceil(score / 20))
	if level < 1 {
		return 1
	}
	if level > 5 {
		return 5
	}
	return level
}
