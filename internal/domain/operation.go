package domain

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Host identifies which Apollo.io base URL an endpoint lives on.
type Host string

const (
	// HostAPI is the versioned public API (https://api.apollo.io/api/v1).
	HostAPI Host = "api"
	// HostLegacy is the unversioned v1 API (https://api.apollo.io/v1).
	HostLegacy Host = "legacy"
	// HostApp is the web application API (https://app.apollo.io/api/v1).
	HostApp Host = "app"
)

// Encoding describes how an operation's arguments travel to the upstream API.
type Encoding string

const (
	EncodingJSONBody Encoding = "json_body" // arguments marshalled as the request body
	EncodingQuery    Encoding = "query"     // arguments flattened into the query string, empty body
	EncodingPath     Encoding = "path"      // single identifier substituted into the path
)

// Binding ties an operation to one upstream HTTP endpoint.
type Binding struct {
	Host     Host
	Method   string
	Path     string // may contain one {id} placeholder
	Encoding Encoding
}

// ResolvePath substitutes the escaped id into the {id} placeholder of the path.
func (b Binding) ResolvePath(id string) string {
	return strings.Replace(b.Path, "{id}", url.PathEscape(id), 1)
}

// Operation is a tool descriptor: a unique name, the schema of the arguments it
// accepts and the upstream endpoint it is bound to.
// Operations are built once at package init and never modified afterwards.
type Operation struct {
	// Name is the tool identifier exposed to MCP clients.
	Name OperationName
	// Title is a short human readable label used in tool annotations.
	Title string
	// Description explains to the model when the tool should be used.
	Description string
	// InputSchema documents and validates the accepted argument bag.
	InputSchema *openapi3.Schema
	// Binding is the upstream endpoint the operation calls. For the compound
	// employees_of_company operation it is the final people search.
	Binding Binding
	// ReadOnly reports whether the call leaves upstream account state untouched.
	// Enrichment and email reveal consume credits, so they are not read-only.
	ReadOnly bool
}

// OperationName is the tag of the closed set of supported operations.
type OperationName string

const (
	OpPeopleEnrichment        OperationName = "people_enrichment"
	OpBulkPeopleEnrichment    OperationName = "bulk_people_enrichment"
	OpOrganizationEnrichment  OperationName = "organization_enrichment"
	OpPeopleSearch            OperationName = "people_search"
	OpOrganizationSearch      OperationName = "organization_search"
	OpOrganizationJobPostings OperationName = "organization_job_postings"
	OpGetPersonEmail          OperationName = "get_person_email"
	OpEmployeesOfCompany      OperationName = "employees_of_company"
)

// LegacyCompanySearch is the first step of employees_of_company. It is not a
// tool on its own.
var LegacyCompanySearch = Binding{Host: HostLegacy, Method: http.MethodPost, Path: "/mixed_companies/search", Encoding: EncodingJSONBody}

var operations = []Operation{
	{
		Name:  OpPeopleEnrichment,
		Title: "Enrich person",
		Description: "Use the People Enrichment endpoint to enrich data for 1 person. " +
			"Provide as much identifying information as possible (name, email, domain, LinkedIn URL or Apollo id).",
		InputSchema: personEnrichmentSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodPost, Path: "/people/match", Encoding: EncodingJSONBody},
	},
	{
		Name:  OpBulkPeopleEnrichment,
		Title: "Enrich people in bulk",
		Description: "Use the Bulk People Enrichment endpoint to enrich data for up to 10 people with a single call. " +
			"Revealing phone numbers requires a webhook_url; Apollo delivers them asynchronously.",
		InputSchema: bulkPeopleEnrichmentSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodPost, Path: "/people/bulk_match", Encoding: EncodingJSONBody},
	},
	{
		Name:        OpOrganizationEnrichment,
		Title:       "Enrich organization",
		Description: "Use the Organization Enrichment endpoint to enrich data for 1 company, identified by its domain.",
		InputSchema: organizationEnrichmentSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodGet, Path: "/organizations/enrich", Encoding: EncodingQuery},
	},
	{
		Name:  OpPeopleSearch,
		Title: "Search people",
		Description: "Use the People Search endpoint to find people. Filters combine; arrays match any of their values. " +
			"Results are paginated (page, per_page).",
		InputSchema: peopleSearchSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodPost, Path: "/mixed_people/search", Encoding: EncodingQuery},
		ReadOnly:    true,
	},
	{
		Name:  OpOrganizationSearch,
		Title: "Search organizations",
		Description: "Use the Organization Search endpoint to find organizations. Employee ranges accept \"min,max\" or \"min-max\". " +
			"Results are paginated (page, per_page).",
		InputSchema: organizationSearchSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodPost, Path: "/mixed_companies/search", Encoding: EncodingQuery},
		ReadOnly:    true,
	},
	{
		Name:        OpOrganizationJobPostings,
		Title:       "Organization job postings",
		Description: "Use the Organization Job Postings endpoint to find job postings for a specific organization.",
		InputSchema: jobPostingsSchema(),
		Binding:     Binding{Host: HostAPI, Method: http.MethodGet, Path: "/organizations/{id}/job_postings", Encoding: EncodingPath},
		ReadOnly:    true,
	},
	{
		Name:        OpGetPersonEmail,
		Title:       "Get person email",
		Description: "Get the email addresses of a person using their Apollo id. Reveals contact data and may consume credits.",
		InputSchema: personEmailSchema(),
		Binding:     Binding{Host: HostApp, Method: http.MethodPost, Path: "/mixed_people/add_to_my_prospects", Encoding: EncodingJSONBody},
	},
	{
		Name:  OpEmployeesOfCompany,
		Title: "Employees of company",
		Description: "Find employees of a company by name. Supplying website_url or linkedin_url picks the right company " +
			"when several share the name; otherwise the first search result is used.",
		InputSchema: employeesOfCompanySchema(),
		Binding:     Binding{Host: HostLegacy, Method: http.MethodPost, Path: "/mixed_people/search", Encoding: EncodingJSONBody},
		ReadOnly:    true,
	},
}

var operationIndex = func() map[OperationName]int {
	idx := make(map[OperationName]int, len(operations))
	for i, op := range operations {
		if _, dup := idx[op.Name]; dup {
			panic(fmt.Sprintf("duplicate operation %q", op.Name))
		}
		idx[op.Name] = i
	}
	return idx
}()

// Operations returns the descriptors of every supported operation in
// declaration order. The returned slice is a copy.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// LookupOperation returns the descriptor registered under name.
func LookupOperation(name OperationName) (Operation, bool) {
	i, ok := operationIndex[name]
	if !ok {
		return Operation{}, false
	}
	return operations[i], true
}

// MustOperation is LookupOperation for names known at compile time.
func MustOperation(name OperationName) Operation {
	op, ok := LookupOperation(name)
	if !ok {
		panic(fmt.Sprintf("unknown operation %q", name))
	}
	return op
}
