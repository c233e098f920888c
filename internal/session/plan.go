package session

import (
	"time"

	"github.com/praxislabs/readiness/internal/domain"
)

// basicRecommendations is the fixed, non-personalized tier. Every
// completed assessment gets exactly these four, entitled or not.
var basicRecommendations = []string{
	"Review the foundations guide to ground the core AI vocabulary.",
	"Identify one recurring task in your work that a language model could draft for you.",
	"Run a small, low-stakes pilot before committing budget to any AI tooling.",
	"Schedule a follow-up assessment in 90 days to measure your progress.",
}

// defaultPhase substitutes for a missing or malformed upstream learning
// path so the premium surface is never empty for an entitled user.
var defaultPhase = domain.PlanPhase{
	Title:    "Foundations",
	Duration: "4 weeks",
	Focus:    "Core AI concepts and terminology",
	Objectives: []string{
		"Understand what large language models can and cannot do",
		"Map your highest-value automation opportunities",
	},
	Resources: []string{
		"AI readiness starter guide",
		"Prompt-writing worksheet",
	},
}

// BuildLearningPlan derives the tiered plan from completed results.
// The detailed tier appears only for entitled users; when entitled but
// the service sent no usable phased path, a deterministic default
// phase is substituted.
func BuildLearningPlan(results *domain.AssessmentResults, entitled bool) *domain.LearningPlan {
	plan := &domain.LearningPlan{
		BasicRecommendations: append([]string(nil), basicRecommendations...),
		GeneratedAt:          time.Now(),
	}
	if !entitled {
		return plan
	}

	phases := upstreamPhases(results)
	if len(phases) == 0 {
		phases = []domain.PlanPhase{defaultPhase}
	}
	plan.DetailedPlan = &domain.DetailedPlan{Phases: phases}
	return plan
}

// upstreamPhases extracts usable phases from the service's learning
// path, skipping malformed entries.
func upstreamPhases(results *domain.AssessmentResults) []domain.PlanPhase {
	if results == nil || results.LearningPath == nil {
		return nil
	}
	var phases []domain.PlanPhase
	for _, p := range results.LearningPath.Phases {
		if p.Title == "" {
			continue
		}
		phases = append(phases, p)
	}
	return phases
}
