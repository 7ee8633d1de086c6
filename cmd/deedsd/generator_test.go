package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

func TestBuildGenerator_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "llama3", "response": "[]", "done": true})
	}))
	defer srv.Close()

	cfg := &common.Config{LLM: common.LLMConfig{Provider: "ollama", BaseURL: srv.URL, Model: "llama3", Timeout: time.Second}}
	gen, cleanup, err := buildGenerator(context.Background(), cfg, nil)
	defer cleanup()
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestBuildGenerator_UnknownProvider(t *testing.T) {
	_, cleanup, err := buildGenerator(context.Background(), &common.Config{LLM: common.LLMConfig{Provider: "claude"}}, nil)
	defer cleanup()
	require.Error(t, err)
}
