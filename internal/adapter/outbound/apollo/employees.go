package apollo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/i2y/apollo-mcp/internal/domain"
)

// searchLimit is the page size of both steps of EmployeesOfCompany.
const searchLimit = 100

// opCompanySearch labels the first step of EmployeesOfCompany in spans and logs.
const opCompanySearch = domain.OpEmployeesOfCompany + ".company_search"

type companySearchRequest struct {
	QOrganizationName string `json:"q_organization_name"`
	Page              int    `json:"page"`
	Limit             int    `json:"limit"`
}

type companyCandidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LinkedinURL string `json:"linkedin_url"`
	WebsiteURL  string `json:"website_url"`
}

type employeeSearchRequest struct {
	OrganizationIDs      []string `json:"organization_ids"`
	Page                 int      `json:"page"`
	Limit                int      `json:"limit"`
	PersonTitles         []string `json:"person_titles,omitempty"`
	ContactEmailStatusV2 []string `json:"contact_email_status_v2,omitempty"`
}

// EmployeesOfCompany resolves a company by name and returns the first page of
// its people. When several companies share the name, the one whose LinkedIn or
// website URL matches the caller's wins; otherwise the first result is used.
func (c *Client) EmployeesOfCompany(ctx context.Context, args domain.EmployeesOfCompanyArgs) ([]any, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	log := c.logger.With(slog.String("company", args.Company))

	// --- 1. Find candidate organizations --- //
	companies := request{
		op:      opCompanySearch,
		binding: domain.LegacyCompanySearch,
		body:    companySearchRequest{QOrganizationName: args.Company, Page: 1, Limit: searchLimit},
	}
	data, err := c.do(ctx, companies)
	if err != nil {
		return nil, err
	}
	var found struct {
		Organizations []companyCandidate `json:"organizations"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &found); err != nil {
			return nil, fmt.Errorf("failed to decode company search: %w", err)
		}
	}
	if len(found.Organizations) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoOrganizations, args.Company)
	}

	// --- 2. Pick one --- //
	chosen := pickCompany(found.Organizations, args.LinkedinURL, args.WebsiteURL)
	if chosen.ID == "" {
		return nil, ErrNoCompanyID
	}
	log.Debug("Resolved company", slog.String("organization_id", chosen.ID), slog.Int("candidates", len(found.Organizations)))

	// --- 3. Search its people --- //
	people := newRequest(domain.OpEmployeesOfCompany)
	people.body = employeeSearchRequest{
		OrganizationIDs:      []string{chosen.ID},
		Page:                 1,
		Limit:                searchLimit,
		PersonTitles:         domain.SplitCSV(args.PersonSeniorities),
		ContactEmailStatusV2: domain.SplitCSV(args.ContactEmailStatus),
	}
	data, err = c.do(ctx, people)
	if err != nil {
		return nil, err
	}
	var result struct {
		People []any `json:"people"`
	}
	if len(data) > 0 {
		if err := unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to decode people search: %w", err)
		}
	}
	if result.People == nil {
		return []any{}, nil
	}
	return result.People, nil
}

// pickCompany returns the first candidate whose LinkedIn URL or website matches
// the caller's, or the first candidate when none does. candidates is non-empty.
func pickCompany(candidates []companyCandidate, linkedinURL, websiteURL string) companyCandidate {
	if linkedinURL == "" && websiteURL == "" {
		return candidates[0]
	}
	for _, cand := range candidates {
		if domain.SameURL(cand.LinkedinURL, linkedinURL) || domain.SameURL(cand.WebsiteURL, websiteURL) {
			return cand
		}
	}
	return candidates[0]
}
