package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/go-querystring/query"
)

// ErrInvalidArgument marks a tool call rejected before any upstream request.
var ErrInvalidArgument = errors.New("invalid argument")

// MaxBulkDetails is the upstream limit of records per bulk enrichment request.
const MaxBulkDetails = 10

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Range is a numeric min/max filter. Either bound may be omitted.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// EncodeValues implements query.Encoder, writing key[min] and key[max] for the
// bounds that are set. Whole numbers render without an exponent.
func (r Range) EncodeValues(key string, v *url.Values) error {
	if r.Min != nil {
		v.Add(key+"[min]", strconv.FormatFloat(*r.Min, 'f', -1, 64))
	}
	if r.Max != nil {
		v.Add(key+"[max]", strconv.FormatFloat(*r.Max, 'f', -1, 64))
	}
	return nil
}

// PersonDetails identifies one person to match.
type PersonDetails struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	HashedEmail      string `json:"hashed_email,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
	ID               string `json:"id,omitempty"`
	LinkedinURL      string `json:"linkedin_url,omitempty"`
}

func (d PersonDetails) empty() bool {
	return d == PersonDetails{}
}

// RevealOptions control credit-consuming reveals on enrichment calls.
type RevealOptions struct {
	RevealPersonalEmails bool   `json:"reveal_personal_emails,omitempty"`
	RevealPhoneNumber    bool   `json:"reveal_phone_number,omitempty"`
	WebhookURL           string `json:"webhook_url,omitempty"`
}

func (o RevealOptions) validate() error {
	if o.RevealPhoneNumber && o.WebhookURL == "" {
		return invalidf("webhook_url is required when reveal_phone_number is true")
	}
	return nil
}

// PersonEnrichmentArgs are the arguments of people_enrichment.
type PersonEnrichmentArgs struct {
	PersonDetails
	RevealOptions
}

func (a PersonEnrichmentArgs) Validate() error {
	if a.PersonDetails.empty() {
		return invalidf("at least one identifying field is required")
	}
	return a.RevealOptions.validate()
}

// BulkPeopleEnrichmentArgs are the arguments of bulk_people_enrichment.
type BulkPeopleEnrichmentArgs struct {
	Details []PersonDetails `json:"details"`
	RevealOptions
}

func (a BulkPeopleEnrichmentArgs) Validate() error {
	switch n := len(a.Details); {
	case n == 0:
		return invalidf("details must contain at least one person")
	case n > MaxBulkDetails:
		return invalidf("details must contain at most %d people, got %d", MaxBulkDetails, n)
	}
	for i, d := range a.Details {
		if d.empty() {
			return invalidf("details[%d] has no identifying field", i)
		}
	}
	return a.RevealOptions.validate()
}

// OrganizationEnrichmentArgs are the arguments of organization_enrichment.
type OrganizationEnrichmentArgs struct {
	Domain string `json:"domain"`
}

func (a OrganizationEnrichmentArgs) Validate() error {
	if a.Domain == "" {
		return invalidf("domain is required")
	}
	return nil
}

// PeopleSearchArgs are the arguments of people_search.
type PeopleSearchArgs struct {
	QKeywords                         string   `json:"q_keywords,omitempty" url:"q_keywords,omitempty"`
	PersonTitles                      []string `json:"person_titles,omitempty" url:"person_titles,omitempty,brackets"`
	IncludeSimilarTitles              *bool    `json:"include_similar_titles,omitempty" url:"include_similar_titles,omitempty"`
	PersonLocations                   []string `json:"person_locations,omitempty" url:"person_locations,omitempty,brackets"`
	PersonSeniorities                 []string `json:"person_seniorities,omitempty" url:"person_seniorities,omitempty,brackets"`
	OrganizationLocations             []string `json:"organization_locations,omitempty" url:"organization_locations,omitempty,brackets"`
	QOrganizationDomainsList          []string `json:"q_organization_domains_list,omitempty" url:"q_organization_domains_list,omitempty,brackets"`
	ContactEmailStatus                []string `json:"contact_email_status,omitempty" url:"contact_email_status,omitempty,brackets"`
	OrganizationIDs                   []string `json:"organization_ids,omitempty" url:"organization_ids,omitempty,brackets"`
	OrganizationNumEmployeesRanges    []string `json:"organization_num_employees_ranges,omitempty" url:"organization_num_employees_ranges,omitempty,brackets"`
	RevenueRange                      *Range   `json:"revenue_range,omitempty" url:"revenue_range,omitempty"`
	CurrentlyUsingAnyOfTechnologyUIDs []string `json:"currently_using_any_of_technology_uids,omitempty" url:"currently_using_any_of_technology_uids,omitempty,brackets"`
	Page                              *int     `json:"page,omitempty" url:"page,omitempty"`
	PerPage                           *int     `json:"per_page,omitempty" url:"per_page,omitempty"`
}

func (a PeopleSearchArgs) Validate() error { return validatePaging(a.Page, a.PerPage) }

// Query encodes the filters as the bracket-style query string of the search
// endpoints. Unset filters are omitted.
func (a PeopleSearchArgs) Query() (url.Values, error) {
	return query.Values(a)
}

// OrganizationSearchArgs are the arguments of organization_search.
type OrganizationSearchArgs struct {
	QOrganizationName                 string   `json:"q_organization_name,omitempty" url:"q_organization_name,omitempty"`
	OrganizationNumEmployeesRanges    []string `json:"organization_num_employees_ranges,omitempty" url:"organization_num_employees_ranges,omitempty,brackets"`
	OrganizationLocations             []string `json:"organization_locations,omitempty" url:"organization_locations,omitempty,brackets"`
	OrganizationNotLocations          []string `json:"organization_not_locations,omitempty" url:"organization_not_locations,omitempty,brackets"`
	RevenueRange                      *Range   `json:"revenue_range,omitempty" url:"revenue_range,omitempty"`
	CurrentlyUsingAnyOfTechnologyUIDs []string `json:"currently_using_any_of_technology_uids,omitempty" url:"currently_using_any_of_technology_uids,omitempty,brackets"`
	QOrganizationKeywordTags          []string `json:"q_organization_keyword_tags,omitempty" url:"q_organization_keyword_tags,omitempty,brackets"`
	OrganizationIDs                   []string `json:"organization_ids,omitempty" url:"organization_ids,omitempty,brackets"`
	Page                              *int     `json:"page,omitempty" url:"page,omitempty"`
	PerPage                           *int     `json:"per_page,omitempty" url:"per_page,omitempty"`
}

func (a OrganizationSearchArgs) Validate() error { return validatePaging(a.Page, a.PerPage) }

// Query encodes the filters as the bracket-style query string of the search
// endpoints. Unset filters are omitted.
func (a OrganizationSearchArgs) Query() (url.Values, error) {
	return query.Values(a)
}

// JobPostingsArgs are the arguments of organization_job_postings.
type JobPostingsArgs struct {
	OrganizationID string `json:"organization_id"`
}

func (a JobPostingsArgs) Validate() error {
	if a.OrganizationID == "" {
		return invalidf("organization_id is required")
	}
	return nil
}

// PersonEmailArgs are the arguments of get_person_email.
type PersonEmailArgs struct {
	ApolloID string `json:"apollo_id"`
}

func (a PersonEmailArgs) Validate() error {
	if a.ApolloID == "" {
		return invalidf("apollo_id is required")
	}
	return nil
}

// EmployeesOfCompanyArgs are the arguments of employees_of_company.
type EmployeesOfCompanyArgs struct {
	Company            string `json:"company"`
	WebsiteURL         string `json:"website_url,omitempty"`
	LinkedinURL        string `json:"linkedin_url,omitempty"`
	PersonSeniorities  string `json:"person_seniorities,omitempty"`
	ContactEmailStatus string `json:"contact_email_status,omitempty"`
}

func (a EmployeesOfCompanyArgs) Validate() error {
	if a.Company == "" {
		return invalidf("company name is required")
	}
	return nil
}

func validatePaging(page, perPage *int) error {
	if page != nil && *page < 1 {
		return invalidf("page must be at least 1")
	}
	if perPage != nil && (*perPage < 1 || *perPage > 100) {
		return invalidf("per_page must be between 1 and 100")
	}
	return nil
}
