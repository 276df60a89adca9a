package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/i2y/apollo-mcp/internal/domain"
)

// emailQuery keeps the non-empty email of every returned contact.
var emailQuery = mustCompile(`[(.contacts? // [])[]? | .email? | select(type == "string" and . != "")]`)

func mustCompile(src string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("parse jq query %q: %v", src, err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("compile jq query %q: %v", src, err))
	}
	return code
}

type addToProspectsRequest struct {
	EntityIDs          []string `json:"entity_ids"`
	AnalyticsContext   string   `json:"analytics_context"`
	SkipFetchingPeople bool     `json:"skip_fetching_people"`
	CTAName            string   `json:"cta_name"`
	CacheKey           int64    `json:"cacheKey"`
}

// PersonEmail reveals a person's contact record and returns only its email
// addresses. The upstream call may consume credits.
func (c *Client) PersonEmail(ctx context.Context, args domain.PersonEmailArgs) ([]string, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	req := newRequest(domain.OpGetPersonEmail)
	req.body = addToProspectsRequest{
		EntityIDs:          []string{args.ApolloID},
		AnalyticsContext:   "Searcher: Individual Add Button",
		SkipFetchingPeople: true,
		CTAName:            "Access email",
		CacheKey:           time.Now().UnixMilli(),
	}

	data, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var payload any
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return extractEmails(ctx, payload)
}

func extractEmails(ctx context.Context, payload any) ([]string, error) {
	emails := []string{}
	if payload == nil {
		return emails, nil
	}

	iter := emailQuery.RunWithContext(ctx, payload)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("failed to extract emails: %w", err)
		}
		items, _ := v.([]any)
		for _, item := range items {
			if s, ok := item.(string); ok {
				emails = append(emails, s)
			}
		}
	}
	return emails, nil
}
