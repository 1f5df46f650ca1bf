package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

// Executor rebuilds the final query model from the normalised fields,
// validates it, calls the catalog, and normalizes the response. No
// completion service involved. Failures become user-visible messages, not
// errors: the run always flows on to the terminal state, with the
// downstream stages short-circuiting on the missing result.
type Executor struct {
	catalog  ports.CatalogSource
	defaults domain.Defaults
	logger   zerolog.Logger
	now      func() time.Time
}

// NewExecutor creates the catalog execution stage.
func NewExecutor(catalog ports.CatalogSource, defaults domain.Defaults, logger zerolog.Logger, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{catalog: catalog, defaults: defaults, logger: logger, now: now}
}

func (e *Executor) Name() string { return "executor" }

// Run expands, validates, and executes the query, recording the full URL
// and retrieval timestamp for provenance before the call is made.
func (e *Executor) Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error) {
	var userFields domain.QueryModel
	if state.NormalisedQuery != nil {
		userFields = *state.NormalisedQuery
	}
	queryType := state.QueryType
	if queryType == "" {
		queryType = domain.QueryTypeQuery
	}

	// The expansion must mirror the normaliser's exactly; the stored
	// sparse fields are the only source of truth across retries.
	model, _ := e.defaults.ExpandQuery(userFields, queryType, e.now())

	if validation := domain.ValidateQuery(model); !validation.Valid {
		e.logger.Warn().Str("message", validation.Message).Msg("query validation failed")
		return domain.Patch{
			Messages: []domain.Message{{
				Role:    domain.RoleAssistant,
				Content: "Could not build query: " + validation.Message,
			}},
		}, nil
	}

	params := model.ToAPIParams()
	apiCallURL := e.catalog.RequestURL(queryType, params)
	retrievedAtUTC := e.now().UTC().Format("2006-01-02T15:04:05Z")

	body, err := e.catalog.Fetch(ctx, queryType, params)
	if err != nil {
		var execErr *domain.ExecutionError
		content := "Unexpected error: " + err.Error()
		if errors.As(err, &execErr) {
			content = fmt.Sprintf("API error (%d): %s", execErr.StatusCode, execErr.Body)
		}
		e.logger.Error().Err(err).Str("url", apiCallURL).Msg("catalog call failed")
		return domain.Patch{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: content}},
		}, nil
	}

	parsed := domain.ParseAPIResponse(body, queryType)

	e.logger.Info().
		Str("url", apiCallURL).
		Str("result_type", string(parsed.Kind)).
		Msg("catalog call executed")

	return domain.Patch{
		ParsedResult:   &parsed,
		RetrievedAtUTC: domain.Ptr(retrievedAtUTC),
		APICallURL:     domain.Ptr(apiCallURL),
		Messages: []domain.Message{{
			Role:    domain.RoleAssistant,
			Content: "Executed: " + apiCallURL,
		}},
	}, nil
}
