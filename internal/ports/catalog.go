package ports

import (
	"context"
	"net/url"

	"github.com/seismiq/quakeagent/internal/domain"
)

// CatalogSource is the boundary to the external earthquake catalog.
type CatalogSource interface {
	// RequestURL returns the full request URL for the given endpoint and
	// parameters, exactly as Fetch would send it. The executor records it
	// for provenance before the call is made.
	RequestURL(queryType domain.QueryType, params url.Values) string

	// Fetch executes the catalog request and returns the raw response
	// body. A no-content response yields a nil body and no error; any
	// non-success status is returned as a *domain.ExecutionError.
	Fetch(ctx context.Context, queryType domain.QueryType, params url.Values) ([]byte, error)
}
