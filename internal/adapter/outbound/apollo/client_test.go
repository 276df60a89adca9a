package apollo_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apollo-mcp/internal/adapter/outbound/apollo"
	"github.com/i2y/apollo-mcp/internal/domain"
)

const testAPIKey = "test-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *apollo.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client, err := apollo.New(server.Client(), apollo.Config{
		APIKey:        testAPIKey,
		BaseURL:       server.URL + "/api/v1",
		LegacyBaseURL: server.URL + "/v1",
		AppBaseURL:    server.URL + "/app/api/v1",
	}, logger)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intPtr(v int) *int { return &v }

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := apollo.New(nil, apollo.Config{}, nil)
	assert.ErrorIs(t, err, apollo.ErrMissingAPIKey)
}

func TestClient_Headers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		writeJSON(w, http.StatusOK, map[string]any{"organization": map[string]any{"name": "Apollo"}})
	})

	got, err := client.OrganizationEnrichment(context.Background(), domain.OrganizationEnrichmentArgs{Domain: "apollo.io"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"organization": map[string]any{"name": "Apollo"}}, got)
}

func TestClient_Operations(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *apollo.Client) (any, error)
		wantPath  string
		wantVerb  string
		wantQuery url.Values
		wantBody  map[string]any
	}{
		{
			name: "people enrichment posts JSON body",
			call: func(c *apollo.Client) (any, error) {
				return c.PeopleEnrichment(context.Background(), domain.PersonEnrichmentArgs{
					PersonDetails: domain.PersonDetails{FirstName: "Tim", LastName: "Zheng", Domain: "apollo.io"},
				})
			},
			wantVerb: http.MethodPost,
			wantPath: "/api/v1/people/match",
			wantBody: map[string]any{"first_name": "Tim", "last_name": "Zheng", "domain": "apollo.io"},
		},
		{
			name: "bulk enrichment posts details",
			call: func(c *apollo.Client) (any, error) {
				return c.BulkPeopleEnrichment(context.Background(), domain.BulkPeopleEnrichmentArgs{
					Details: []domain.PersonDetails{{Email: "a@example.com"}, {ID: "p2"}},
				})
			},
			wantVerb: http.MethodPost,
			wantPath: "/api/v1/people/bulk_match",
			wantBody: map[string]any{"details": []any{
				map[string]any{"email": "a@example.com"},
				map[string]any{"id": "p2"},
			}},
		},
		{
			name: "organization enrichment uses query",
			call: func(c *apollo.Client) (any, error) {
				return c.OrganizationEnrichment(context.Background(), domain.OrganizationEnrichmentArgs{Domain: "apollo.io"})
			},
			wantVerb:  http.MethodGet,
			wantPath:  "/api/v1/organizations/enrich",
			wantQuery: url.Values{"domain": {"apollo.io"}},
		},
		{
			name: "people search flattens filters",
			call: func(c *apollo.Client) (any, error) {
				return c.PeopleSearch(context.Background(), domain.PeopleSearchArgs{
					PersonTitles: []string{"cto", "vp engineering"},
					Page:         intPtr(2),
				})
			},
			wantVerb:  http.MethodPost,
			wantPath:  "/api/v1/mixed_people/search",
			wantQuery: url.Values{"person_titles[]": {"cto", "vp engineering"}, "page": {"2"}},
		},
		{
			name: "organization search flattens ranges",
			call: func(c *apollo.Client) (any, error) {
				minRevenue := 1000.0
				return c.OrganizationSearch(context.Background(), domain.OrganizationSearchArgs{
					OrganizationNumEmployeesRanges: []string{"11,50"},
					RevenueRange:                   &domain.Range{Min: &minRevenue},
				})
			},
			wantVerb: http.MethodPost,
			wantPath: "/api/v1/mixed_companies/search",
			wantQuery: url.Values{
				"organization_num_employees_ranges[]": {"11,50"},
				"revenue_range[min]":                  {"1000"},
			},
		},
		{
			name: "job postings resolve path",
			call: func(c *apollo.Client) (any, error) {
				return c.OrganizationJobPostings(context.Background(), domain.JobPostingsArgs{OrganizationID: "org 1"})
			},
			wantVerb: http.MethodGet,
			wantPath: "/api/v1/organizations/org 1/job_postings",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(tc.wantVerb, r.Method)
				assert.Equal(tc.wantPath, r.URL.Path)
				if tc.wantQuery != nil {
					assert.Equal(tc.wantQuery, r.URL.Query())
				} else {
					assert.Empty(r.URL.RawQuery)
				}

				body, err := io.ReadAll(r.Body)
				assert.NoError(err)
				if tc.wantBody != nil {
					var got map[string]any
					assert.NoError(json.Unmarshal(body, &got))
					assert.Equal(tc.wantBody, got)
				} else {
					assert.Empty(body)
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			})

			got, err := tc.call(client)
			require.NoError(err)
			assert.Equal(map[string]any{"ok": true}, got)
		})
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "error field", status: http.StatusUnauthorized, body: `{"error":"Invalid access credentials."}`, wantStatus: 401, wantMsg: "Invalid access credentials."},
		{name: "message field", status: http.StatusUnprocessableEntity, body: `{"message":"bad domain"}`, wantStatus: 422, wantMsg: "bad domain"},
		{name: "raw body", status: http.StatusBadGateway, body: "upstream down", wantStatus: 502, wantMsg: "upstream down"},
		{name: "empty body", status: http.StatusTooManyRequests, body: "", wantStatus: 429, wantMsg: "429 Too Many Requests"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.OrganizationEnrichment(context.Background(), domain.OrganizationEnrichmentArgs{Domain: "apollo.io"})
			require.Error(t, err)

			var apiErr *apollo.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tc.wantMsg, apiErr.Message)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := apollo.New(nil, apollo.Config{APIKey: testAPIKey, BaseURL: baseURL}, nil)
	require.NoError(t, err)

	_, err = client.OrganizationEnrichment(context.Background(), domain.OrganizationEnrichmentArgs{Domain: "apollo.io"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request execution failed")
}

func TestClient_ValidationSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx := context.Background()

	_, err := client.OrganizationJobPostings(ctx, domain.JobPostingsArgs{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = client.PersonEmail(ctx, domain.PersonEmailArgs{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = client.EmployeesOfCompany(ctx, domain.EmployeesOfCompanyArgs{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = client.PeopleEnrichment(ctx, domain.PersonEnrichmentArgs{
		PersonDetails: domain.PersonDetails{Email: "a@example.com"},
		RevealOptions: domain.RevealOptions{RevealPhoneNumber: true},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.Zero(t, calls.Load())
}

func TestClient_EmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	got, err := client.OrganizationJobPostings(context.Background(), domain.JobPostingsArgs{OrganizationID: "1"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_PersonEmail(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/app/api/v1/mixed_people/add_to_my_prospects", r.URL.Path)

		var body map[string]any
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		assert.Equal([]any{"p-1"}, body["entity_ids"])
		assert.Equal(true, body["skip_fetching_people"])
		assert.Equal("Access email", body["cta_name"])
		assert.Contains(body, "cacheKey")
		assert.NotContains(body, "api_key")

		writeJSON(w, http.StatusOK, map[string]any{
			"contacts": []any{
				map[string]any{"email": "tim@apollo.io", "name": "Tim"},
				map[string]any{"email": nil},
				map[string]any{"email": ""},
				map[string]any{"email": "tim.z@apollo.io"},
			},
			"other": "discarded",
		})
	})

	got, err := client.PersonEmail(context.Background(), domain.PersonEmailArgs{ApolloID: "p-1"})
	require.NoError(err)
	assert.Equal([]string{"tim@apollo.io", "tim.z@apollo.io"}, got)
}

func TestClient_PersonEmail_NoContacts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"people": []any{}})
	})

	got, err := client.PersonEmail(context.Background(), domain.PersonEmailArgs{ApolloID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestClient_KeepsUpstreamValues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"phone_id":12345678901234567891,"url":"https://x.com/?a=1&b=<2>"}`)
	})

	got, err := client.OrganizationEnrichment(context.Background(), domain.OrganizationEnrichmentArgs{Domain: "x.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"phone_id": json.Number("12345678901234567891"),
		"url":      "https://x.com/?a=1&b=<2>",
	}, got)
}
