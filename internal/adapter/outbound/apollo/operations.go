package apollo

import (
	"context"
	"fmt"
	"net/url"

	"github.com/i2y/apollo-mcp/internal/domain"
)

func newRequest(name domain.OperationName) request {
	op := domain.MustOperation(name)
	return request{op: op.Name, binding: op.Binding}
}

// PeopleEnrichment matches one person and returns the upstream record.
func (c *Client) PeopleEnrichment(ctx context.Context, args domain.PersonEnrichmentArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	req := newRequest(domain.OpPeopleEnrichment)
	req.body = args
	return c.call(ctx, req)
}

// BulkPeopleEnrichment matches up to domain.MaxBulkDetails people in one request.
func (c *Client) BulkPeopleEnrichment(ctx context.Context, args domain.BulkPeopleEnrichmentArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	req := newRequest(domain.OpBulkPeopleEnrichment)
	req.body = args
	return c.call(ctx, req)
}

// OrganizationEnrichment looks up one company by domain.
func (c *Client) OrganizationEnrichment(ctx context.Context, args domain.OrganizationEnrichmentArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	req := newRequest(domain.OpOrganizationEnrichment)
	req.query = url.Values{"domain": {args.Domain}}
	return c.call(ctx, req)
}

// PeopleSearch runs a people search with every filter in the query string.
func (c *Client) PeopleSearch(ctx context.Context, args domain.PeopleSearchArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	q, err := args.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to encode search filters: %w", err)
	}
	req := newRequest(domain.OpPeopleSearch)
	req.query = q
	return c.call(ctx, req)
}

// OrganizationSearch runs an organization search with every filter in the
// query string. Employee ranges are expected in the "min,max" form already.
func (c *Client) OrganizationSearch(ctx context.Context, args domain.OrganizationSearchArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	q, err := args.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to encode search filters: %w", err)
	}
	req := newRequest(domain.OpOrganizationSearch)
	req.query = q
	return c.call(ctx, req)
}

// OrganizationJobPostings returns the job postings of one organization.
func (c *Client) OrganizationJobPostings(ctx context.Context, args domain.JobPostingsArgs) (any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	req := newRequest(domain.OpOrganizationJobPostings)
	req.path = req.binding.ResolvePath(args.OrganizationID)
	return c.call(ctx, req)
}
