package usecase

import (
	"context"
	"errors"

	"github.com/i2y/apollo-mcp/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound = errors.New("tool not found")
)

// ToolCatalog is the read-only set of tools the server exposes.
type ToolCatalog interface {
	// List returns every tool in declaration order.
	List(ctx context.Context) ([]domain.Operation, error)

	// FindByName returns the tool registered under name, or ErrToolNotFound.
	FindByName(ctx context.Context, name string) (*domain.Operation, error)
}

// ApolloClient performs the upstream Apollo.io calls, one method per tool.
// Every method validates its argument record before touching the network.
type ApolloClient interface {
	PeopleEnrichment(ctx context.Context, args domain.PersonEnrichmentArgs) (any, error)
	BulkPeopleEnrichment(ctx context.Context, args domain.BulkPeopleEnrichmentArgs) (any, error)
	OrganizationEnrichment(ctx context.Context, args domain.OrganizationEnrichmentArgs) (any, error)
	PeopleSearch(ctx context.Context, args domain.PeopleSearchArgs) (any, error)
	OrganizationSearch(ctx context.Context, args domain.OrganizationSearchArgs) (any, error)
	OrganizationJobPostings(ctx context.Context, args domain.JobPostingsArgs) (any, error)
	PersonEmail(ctx context.Context, args domain.PersonEmailArgs) ([]string, error)
	EmployeesOfCompany(ctx context.Context, args domain.EmployeesOfCompanyArgs) ([]any, error)
}
