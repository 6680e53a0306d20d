package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/claim-agent/config"
	"github.com/fabfab/claim-agent/decision"
	"github.com/fabfab/claim-agent/pipeline"
)

type stubRunner struct {
	got  pipeline.Request
	resp *pipeline.Response
	err  error
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	s.got = req
	return s.resp, s.err
}

func newTestServer(runner Runner) *Server {
	return New(config.ServerConfig{MaxBodyBytes: 1 << 20, RequestTimeout: time.Second}, runner, nil)
}

func doRequest(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubRunner{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())
}

func TestOpenAPI(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubRunner{}), http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/run:")
}

func TestRunSuccess(t *testing.T) {
	amount := 25000.0
	meta := pipeline.Meta{
		RequestID:      "abc",
		ChunksIndexed:  4,
		TopK:           4,
		Model:          "m",
		DecisionSource: decision.SourceModel,
		Timestamp:      "2026-10-17T08:00:00Z",
	}
	input := pipeline.Input{
		Query:     "knee surgery",
		Documents: json.RawMessage(`"https://example.com/policy.pdf"`),
	}
	runner := &stubRunner{resp: &pipeline.Response{
		Meta:  meta,
		Input: input,
		Results: decision.Result{
			Decision:      decision.Approved,
			Amount:        &amount,
			Justification: []decision.Justification{{Clause: "covered", Source: "https://example.com/policy.pdf", ChunkIndex: 2, Similarity: 0.8}},
			Explanation:   "ok",
		},
	}}

	body := `{"documents": "https://example.com/policy.pdf", "query": "knee surgery", "extra": true}`
	rec := doRequest(t, newTestServer(runner), http.MethodPost, "/run", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "knee surgery", runner.got.Query)
	require.Len(t, runner.got.Documents, 1)
	assert.Equal(t, "https://example.com/policy.pdf", runner.got.Documents[0].URL)
	assert.JSONEq(t, `"https://example.com/policy.pdf"`, string(runner.got.RawDocuments))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	results := out["results"].(map[string]any)
	assert.Equal(t, "approved", results["decision"])
	assert.Equal(t, 25000.0, results["amount"])
	gotMeta := out["meta"].(map[string]any)
	assert.Equal(t, 4.0, gotMeta["chunks_indexed"])
	assert.Equal(t, "model", gotMeta["decision_source"])
}

func TestRunNullAmountIsSerialized(t *testing.T) {
	runner := &stubRunner{resp: &pipeline.Response{Results: decision.Result{Decision: decision.Maybe, Justification: []decision.Justification{}}}}
	rec := doRequest(t, newTestServer(runner), http.MethodPost, "/run", `{"documents": ["https://x/a.pdf"], "query": "q"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Results map[string]json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "null", string(out.Results["amount"]))
}

func TestRunUnencodableResultIsNotEmptySuccess(t *testing.T) {
	runner := &stubRunner{resp: &pipeline.Response{Results: decision.Result{
		Decision:      decision.Approved,
		Justification: []decision.Justification{{Clause: "x", Source: "policy.pdf", ChunkIndex: 4, Similarity: math.NaN()}},
	}}}

	rec := doRequest(t, newTestServer(runner), http.MethodPost, "/run", `{"documents": ["https://x/policy.pdf"], "query": "q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec), "encode response")
}

func TestRunValidation(t *testing.T) {
	cases := map[string]string{
		"missing query":     `{"documents": "https://x/a.pdf"}`,
		"blank query":       `{"documents": "https://x/a.pdf", "query": "  "}`,
		"missing documents": `{"query": "knee"}`,
		"empty documents":   `{"documents": [], "query": "knee"}`,
		"bad document":      `{"documents": [42], "query": "knee"}`,
		"not json":          `documents=x`,
		"trailing data":     `{"documents": "https://x/a.pdf", "query": "q"} {}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &stubRunner{}
			rec := doRequest(t, newTestServer(runner), http.MethodPost, "/run", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
			assert.Empty(t, runner.got.Query, "runner must not be called")
		})
	}
}

func TestRunBodyTooLarge(t *testing.T) {
	srv := New(config.ServerConfig{MaxBodyBytes: 64}, &stubRunner{}, nil)
	body := fmt.Sprintf(`{"documents": "https://x/a.pdf", "query": %q}`, strings.Repeat("q", 200))
	rec := doRequest(t, srv, http.MethodPost, "/run", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRunErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &pipeline.ValidationError{Field: "query", Message: "is required"}, http.StatusBadRequest},
		{"no content", pipeline.ErrNoContent, http.StatusUnprocessableEntity},
		{"provider", &pipeline.ProviderError{Stage: pipeline.StageEmbedding, Err: errors.New("503")}, http.StatusBadGateway},
		{"provider timeout", &pipeline.ProviderError{Stage: pipeline.StageGeneration, Err: fmt.Errorf("llm generate: %w", context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, newTestServer(&stubRunner{err: tc.err}), http.MethodPost, "/run", `{"documents": "https://x/a.pdf", "query": "q"}`)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.err.Error(), decodeError(t, rec))
		})
	}
}

func TestRunRejectsWrongMethod(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubRunner{}), http.MethodGet, "/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
