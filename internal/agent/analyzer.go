package agent

import (
	"context"
)

// Analyzer defines the interface to the multi-agent analysis service.
// This interface is implemented by the HTTP client.
type Analyzer interface {
	// StartAssessment opens a remote session and returns the first question.
	StartAssessment(ctx context.Context, userID, kind string) (*Question, error)

	// SubmitResponse sends one answer and returns the next turn. The
	// returned Turn's Completed flag is the only terminal signal.
	SubmitResponse(ctx context.Context, userID, kind string, payload ResponsePayload) (*Turn, error)

	// Close releases resources.
	Close()
}

// Ensure Client implements Analyzer.
var _ Analyzer = (*Client)(nil)
