package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

func TestGenerate_NonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream *bool  `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "2013-02-07?", req.Prompt)
		require.NotNil(t, req.Stream)
		assert.False(t, *req.Stream)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":" 2013-02-07 ","done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	reply, err := c.Generate(context.Background(), "2013-02-07?")
	require.NoError(t, err)
	assert.Equal(t, "2013-02-07", reply)
}

func TestGenerate_EmptyAndErrors(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llama3","response":"","done":true}`))
	}))
	defer empty.Close()

	c, err := NewClient(Config{BaseURL: empty.URL}, nil)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrEmptyReply)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama3\" not found"}`))
	}))
	defer failing.Close()

	c, err = NewClient(Config{BaseURL: failing.URL}, nil)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
