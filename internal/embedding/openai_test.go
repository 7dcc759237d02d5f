package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOpenAITestServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Dimensions != 3 {
			t.Errorf("dimensions = %d, want 3", req.Dimensions)
		}
		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		// Reverse order to check the client sorts by index.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Object: "embedding", Index: j, Embedding: []float64{float64(j), 0.5, -1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv := newOpenAITestServer(t, http.StatusOK)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	got, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if len(v) != 3 || v[0] != float32(i) {
			t.Errorf("embedding %d = %v", i, v)
		}
	}
	one, err := e.Embed(context.Background(), "solo")
	if err != nil || len(one) != 3 {
		t.Errorf("Embed = %v, %v", one, err)
	}
}

func TestOpenAIEmbedder_Error(t *testing.T) {
	srv := newOpenAITestServer(t, http.StatusBadRequest)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 3}); err == nil {
		t.Error("expected missing api key error")
	}
	if _, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Error("expected dimensions error")
	}
}
