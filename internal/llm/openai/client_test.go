package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url, Model: "test-model"}, zap.NewNop())
}

func TestGenerate_ReturnsFirstChoice(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "  [{\"docNo\":\"1234/2013\"}]\n")
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Generate(context.Background(), "extract this")
	require.NoError(t, err)
	assert.Equal(t, `[{"docNo":"1234/2013"}]`, reply)
}

func TestGenerate_EmptyReply(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrEmptyReply)
}

func TestGenerate_APIError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}
