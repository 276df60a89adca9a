package domain

import "github.com/getkin/kin-openapi/openapi3"

// Input schemas for the tool catalog. They are serialized into the tools/list
// response and used to validate argument bags before they are decoded.

func stringProp(description string) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	s.Description = description
	return s
}

func stringListProp(description string) *openapi3.Schema {
	s := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	s.Description = description
	return s
}

func boolProp(description string) *openapi3.Schema {
	s := openapi3.NewBoolSchema()
	s.Description = description
	return s
}

func pageProps(s *openapi3.Schema) *openapi3.Schema {
	page := openapi3.NewIntegerSchema().WithMin(1)
	page.Description = "Page number to retrieve, starting at 1."
	perPage := openapi3.NewIntegerSchema().WithMin(1).WithMax(100)
	perPage.Description = "Number of results per page (max 100)."
	return s.WithProperty("page", page).WithProperty("per_page", perPage)
}

func rangeProp(description string) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("min", openapi3.NewFloat64Schema()).
		WithProperty("max", openapi3.NewFloat64Schema())
	s.Description = description
	return s
}

// personMatchProps are the identifying fields shared by single and bulk enrichment.
func personMatchProps(s *openapi3.Schema) *openapi3.Schema {
	return s.
		WithProperty("first_name", stringProp("The person's first name.")).
		WithProperty("last_name", stringProp("The person's last name.")).
		WithProperty("name", stringProp("The person's full name.")).
		WithProperty("email", stringProp("The person's email address.")).
		WithProperty("hashed_email", stringProp("MD5 or SHA-256 hash of the person's email address.")).
		WithProperty("organization_name", stringProp("Name of the person's current employer.")).
		WithProperty("domain", stringProp("Domain of the person's current employer, without www.")).
		WithProperty("id", stringProp("Apollo id of the person.")).
		WithProperty("linkedin_url", stringProp("URL of the person's LinkedIn profile."))
}

func revealProps(s *openapi3.Schema) *openapi3.Schema {
	return s.
		WithProperty("reveal_personal_emails", boolProp("Reveal personal emails. Consumes credits.")).
		WithProperty("reveal_phone_number", boolProp("Reveal phone numbers. Requires webhook_url; consumes credits.")).
		WithProperty("webhook_url", stringProp("Webhook Apollo calls with revealed phone numbers."))
}

func personEnrichmentSchema() *openapi3.Schema {
	return revealProps(personMatchProps(openapi3.NewObjectSchema()))
}

func bulkPeopleEnrichmentSchema() *openapi3.Schema {
	details := openapi3.NewArraySchema().
		WithItems(personMatchProps(openapi3.NewObjectSchema())).
		WithMinItems(1).
		WithMaxItems(MaxBulkDetails)
	details.Description = "People to enrich, at most 10."
	return revealProps(openapi3.NewObjectSchema().WithProperty("details", details)).
		WithRequired([]string{"details"})
}

func organizationEnrichmentSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("domain", stringProp("Domain of the company to enrich, e.g. apollo.io (no www. or @).")).
		WithRequired([]string{"domain"})
}

func peopleSearchSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("q_keywords", stringProp("Free-text keywords.")).
		WithProperty("person_titles", stringListProp("Job titles held by the people, e.g. [\"sales manager\"].")).
		WithProperty("include_similar_titles", boolProp("Also match titles similar to person_titles.")).
		WithProperty("person_locations", stringListProp("Locations where the people live.")).
		WithProperty("person_seniorities", stringListProp("Seniority levels: owner, founder, c_suite, partner, vp, head, director, manager, senior, entry, intern.")).
		WithProperty("organization_locations", stringListProp("Headquarters locations of the people's employers.")).
		WithProperty("q_organization_domains_list", stringListProp("Domains of the people's employers.")).
		WithProperty("contact_email_status", stringListProp("Email statuses: verified, unverified, likely to engage, unavailable.")).
		WithProperty("organization_ids", stringListProp("Apollo ids of the people's employers.")).
		WithProperty("organization_num_employees_ranges", stringListProp("Employer headcount ranges, e.g. [\"1,10\", \"250,500\"].")).
		WithProperty("revenue_range", rangeProp("Employer revenue range (min, max).")).
		WithProperty("currently_using_any_of_technology_uids", stringListProp("Technologies used by the employer, e.g. [\"salesforce\"]."))
	return pageProps(s)
}

func organizationSearchSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("q_organization_name", stringProp("Organization name (partial matches allowed).")).
		WithProperty("organization_num_employees_ranges", stringListProp("Headcount ranges as \"min,max\" or \"min-max\", e.g. [\"1,10\", \"11-50\"].")).
		WithProperty("organization_locations", stringListProp("Headquarters locations to include.")).
		WithProperty("organization_not_locations", stringListProp("Headquarters locations to exclude.")).
		WithProperty("revenue_range", rangeProp("Revenue range (min, max).")).
		WithProperty("currently_using_any_of_technology_uids", stringListProp("Technologies the organization uses.")).
		WithProperty("q_organization_keyword_tags", stringListProp("Industry or keyword tags.")).
		WithProperty("organization_ids", stringListProp("Apollo ids of organizations."))
	return pageProps(s)
}

func jobPostingsSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("organization_id", stringProp("Apollo id of the organization.")).
		WithRequired([]string{"organization_id"})
}

func personEmailSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("apollo_id", stringProp("Apollo id of the person.")).
		WithRequired([]string{"apollo_id"})
}

func employeesOfCompanySchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("company", stringProp("Company name.")).
		WithProperty("website_url", stringProp("Company website, used to pick the right company.")).
		WithProperty("linkedin_url", stringProp("Company LinkedIn URL, used to pick the right company.")).
		WithProperty("person_seniorities", stringProp("Comma-separated seniority titles, e.g. \"director,vp\".")).
		WithProperty("contact_email_status", stringProp("Comma-separated email statuses, e.g. \"verified,likely to engage\".")).
		WithRequired([]string{"company"})
}
