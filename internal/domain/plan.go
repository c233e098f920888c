package domain

import (
	"time"
)

// PlanPhase is one phase of a structured learning path.
type PlanPhase struct {
	Title      string   `json:"title"`
	Duration   string   `json:"duration"`
	Focus      string   `json:"focus"`
	Objectives []string `json:"objectives,omitempty"`
	Resources  []string `json:"resources,omitempty"`
}

// LearningPath is the phased path the analysis service may attach to
// its terminal payload.
type LearningPath struct {
	Phases []PlanPhase `json:"phases"`
}

// DetailedPlan is the entitlement-gated tier of the learning plan.
type DetailedPlan struct {
	Phases []PlanPhase `json:"phases"`
}

// LearningPlan is derived output, never authoritative. It can be
// regenerated deterministically from the results at any time.
type LearningPlan struct {
	BasicRecommendations []string      `json:"basic_recommendations"`
	DetailedPlan         *DetailedPlan `json:"detailed_plan,omitempty"`
	GeneratedAt          time.Time     `json:"generated_at"`
}
