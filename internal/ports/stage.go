// Package ports defines the interfaces that form the contract between the
// pipeline and the infrastructure layer. These interfaces enable dependency
// inversion and make the pipeline testable without live services.
package ports

import (
	"context"

	"github.com/seismiq/quakeagent/internal/domain"
)

// Stage is one processing step of the conversation pipeline.
// Stages are stateless: each reads the shared record and returns a patch
// describing its contribution. The orchestrator merges the patch before
// invoking the next stage, so no stage ever mutates the record directly.
type Stage interface {
	// Name returns a unique identifier for this stage, used for logging,
	// transition routing, and metrics labels.
	Name() string

	// Run reads the current record and computes this stage's patch.
	// A zero patch is a valid result and means the stage had nothing to
	// contribute (for example when a required upstream artifact is absent).
	// Errors should be returned rather than panicking; the orchestrator
	// converts them into a terminal user-visible message.
	Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error)
}
