package mcpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apollo-mcp/internal/adapter/inbound/mcpserver"
	"github.com/i2y/apollo-mcp/internal/adapter/outbound/apollo"
	"github.com/i2y/apollo-mcp/internal/adapter/outbound/catalog"
	"github.com/i2y/apollo-mcp/internal/usecase"
	"github.com/i2y/apollo-mcp/pkg/shared/mcpjsonrpc"
)

type rpcEnvelope struct {
	ID     json.RawMessage   `json:"id"`
	Result json.RawMessage   `json:"result"`
	Error  *mcpjsonrpc.Error `json:"error"`
}

type listedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Annotations struct {
		Title         string `json:"title"`
		ReadOnlyHint  *bool  `json:"readOnlyHint"`
		OpenWorldHint *bool  `json:"openWorldHint"`
	} `json:"annotations"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestServer wires the full stack against a fake Apollo upstream.
func newTestServer(t *testing.T, upstream http.HandlerFunc) *mcpserver.Server {
	t.Helper()
	api := httptest.NewServer(upstream)
	t.Cleanup(api.Close)

	logger := testLogger()
	client, err := apollo.New(api.Client(), apollo.Config{
		APIKey:        "test-key",
		BaseURL:       api.URL + "/api/v1",
		LegacyBaseURL: api.URL + "/v1",
		AppBaseURL:    api.URL + "/app/api/v1",
	}, logger)
	require.NoError(t, err)

	cat := catalog.New(logger)
	dispatcher, err := usecase.NewDispatcher(cat, client, nil, logger)
	require.NoError(t, err)

	srv, err := mcpserver.New(context.Background(), mcpserver.Info{Name: "apollo-mcp", Version: "test"},
		usecase.NewServeToolsUseCase(cat, logger), dispatcher.Call, logger)
	require.NoError(t, err)
	return srv
}

func roundTrip(t *testing.T, srv *mcpserver.Server, msg string) rpcEnvelope {
	t.Helper()
	resp := srv.HandleMessage(context.Background(), json.RawMessage(msg))
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var env rpcEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func callTool(t *testing.T, srv *mcpserver.Server, name string, args map[string]any) rpcEnvelope {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	return roundTrip(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":`+string(params)+`}`)
}

func decodeToolResult(t *testing.T, env rpcEnvelope) toolResult {
	t.Helper()
	require.Nil(t, env.Error)
	var res toolResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	require.Len(t, res.Content, 1)
	return res
}

func TestServer_ListTools(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call %s", r.URL.Path)
	})
	assert.Equal(8, srv.ToolCount())

	env := roundTrip(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	require.Nil(env.Error)

	var result struct {
		Tools []listedTool `json:"tools"`
	}
	require.NoError(json.Unmarshal(env.Result, &result))
	require.Len(result.Tools, 8)

	names := make([]string, 0, len(result.Tools))
	byName := map[string]listedTool{}
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		byName[tool.Name] = tool
		assert.NotEmpty(tool.Description, tool.Name)
		assert.Equal("object", tool.InputSchema["type"], tool.Name)
		assert.NotEmpty(tool.Annotations.Title, tool.Name)
		if assert.NotNil(tool.Annotations.OpenWorldHint, tool.Name) {
			assert.True(*tool.Annotations.OpenWorldHint)
		}
	}
	sort.Strings(names)
	assert.Equal([]string{
		"bulk_people_enrichment",
		"employees_of_company",
		"get_person_email",
		"organization_enrichment",
		"organization_job_postings",
		"organization_search",
		"people_enrichment",
		"people_search",
	}, names)

	search := byName["people_search"]
	if assert.NotNil(search.Annotations.ReadOnlyHint) {
		assert.True(*search.Annotations.ReadOnlyHint)
	}
	props, ok := search.InputSchema["properties"].(map[string]any)
	require.True(ok)
	assert.Contains(props, "person_titles")
	assert.Contains(props, "revenue_range")

	employees := byName["employees_of_company"]
	assert.Equal([]any{"company"}, employees.InputSchema["required"])
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call %s", r.URL.Path)
	})

	env := callTool(t, srv, "no_such_tool", map[string]any{})
	require.NotNil(t, env.Error)
	assert.Equal(t, mcpjsonrpc.CodeMethodNotFound, env.Error.Code)
	assert.Contains(t, env.Error.Message, "no_such_tool")
	assert.JSONEq(t, `2`, string(env.ID))
}

func TestServer_CallTool(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/organizations/enrich":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"organization":{"name":"Apollo","id":"org-1"}}`)
		case "/api/v1/organizations/org-1/job_postings":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Invalid access credentials."}`)
		default:
			t.Errorf("unexpected upstream call %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	t.Run("success is pretty printed", func(t *testing.T) {
		res := decodeToolResult(t, callTool(t, srv, "organization_enrichment", map[string]any{"domain": "apollo.io"}))
		assert.False(t, res.IsError)
		assert.Equal(t, "text", res.Content[0].Type)
		assert.Equal(t, "{\n  \"organization\": {\n    \"id\": \"org-1\",\n    \"name\": \"Apollo\"\n  }\n}", res.Content[0].Text)
	})

	t.Run("upstream failure is an error result", func(t *testing.T) {
		res := decodeToolResult(t, callTool(t, srv, "organization_job_postings", map[string]any{"organization_id": "org-1"}))
		assert.True(t, res.IsError)
		assert.Equal(t, "Apollo.io API error: HTTP 401: Invalid access credentials.", res.Content[0].Text)
	})

	t.Run("validation failure is an error result", func(t *testing.T) {
		res := decodeToolResult(t, callTool(t, srv, "get_person_email", map[string]any{}))
		assert.True(t, res.IsError)
		assert.True(t, strings.HasPrefix(res.Content[0].Text, "Apollo.io API error: invalid argument"))
	})
}

func TestServer_ServeStdio(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"organization":{"name":"Apollo"}}`)
	})

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"missing","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"organization_enrichment","arguments":{"domain":"apollo.io"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	}, "\n"))
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.ServeStdio(ctx, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	byID := map[string]rpcEnvelope{}
	for _, line := range lines {
		var env rpcEnvelope
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		byID[string(env.ID)] = env
	}

	assert.Nil(t, byID["1"].Error)
	require.NotNil(t, byID["2"].Error)
	assert.Equal(t, mcpjsonrpc.CodeMethodNotFound, byID["2"].Error.Code)
	res := decodeToolResult(t, byID["3"])
	assert.False(t, res.IsError)
}

func TestServer_ServeStdio_ContextCancel(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeStdio(ctx, pr, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStdio did not return after cancellation")
	}
}

func TestServer_CallTool_KeepsUpstreamJSON(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"phone_id":12345678901234567891,"url":"https://x.com/?a=1&b=<2>"}`)
	})

	res := decodeToolResult(t, callTool(t, srv, "organization_enrichment", map[string]any{"domain": "x.com"}))
	assert.False(t, res.IsError)
	assert.Equal(t, "{\n  \"phone_id\": 12345678901234567891,\n  \"url\": \"https://x.com/?a=1&b=<2>\"\n}", res.Content[0].Text)
}

func TestServer_ServeStdio_OversizedLine(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"organization":{"name":"Apollo"}}`)
	})
	srv.SetMaxLineBytes(1024)

	oversized := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"organization_enrichment","arguments":{"domain":"` +
		strings.Repeat("a", 100_000) + `"}}}`
	in := strings.NewReader(strings.Join([]string{
		oversized,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"organization_enrichment","arguments":{"domain":"apollo.io"}}}`,
	}, "\n"))
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.ServeStdio(ctx, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	byID := map[string]rpcEnvelope{}
	for _, line := range lines {
		var env rpcEnvelope
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		byID[string(env.ID)] = env
	}

	require.NotNil(t, byID["null"].Error)
	assert.Equal(t, mcpjsonrpc.CodeParseError, byID["null"].Error.Code)
	res := decodeToolResult(t, byID["2"])
	assert.False(t, res.IsError)
}
