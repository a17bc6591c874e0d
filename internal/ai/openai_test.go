package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
)

// chatServer answers every chat completion with content.
func chatServer(t *testing.T, content string, prompts *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if prompts != nil && len(req.Messages) > 0 {
			*prompts = append(*prompts, req.Messages[len(req.Messages)-1].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

var lines = []string{
	"2024-01-01 10:00:00 [ERROR] disk full contact ops@example.com",
	"  at storage.write",
	"2024-01-01 10:00:01 [INFO] recovered",
}

func TestDraftFormat(t *testing.T) {
	var prompts []string
	srv := chatServer(t, `{"name":"bracket","pattern":"^(\\S+ \\S+) \\[(\\w+)\\] (.*)$","groups":{"timestamp":1,"level":2,"message":3}}`, &prompts)
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL+"/v1", "test", 5*time.Second)
	def, err := c.DraftFormat(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, "bracket", def.Name)
	assert.Equal(t, lines[0], def.Sample)
	assert.Equal(t, 2, def.Groups.Level)

	require.Len(t, prompts, 1)
	assert.NotContains(t, prompts[0], "ops@example.com")
}

func TestDraftFormatRejectsInvalid(t *testing.T) {
	srv := chatServer(t, `{"name":"x","pattern":"^(\\S+) (.*)$","groups":{"level":1,"message":1}}`, nil)
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL+"/v1", "test", 5*time.Second).DraftFormat(context.Background(), lines)
	assert.True(t, apperr.IsValidation(err), "shared group index: %v", err)
}

func TestDraftFormatRejectsNonMatching(t *testing.T) {
	srv := chatServer(t, "```json\n{\"name\":\"x\",\"pattern\":\"^(\\\\d+) (\\\\w+) (.*)$\",\"groups\":{\"level\":2,\"message\":3}}\n```", nil)
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL+"/v1", "test", 5*time.Second).DraftFormat(context.Background(), lines)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "does not match sample"), err.Error())
}

func TestDisabled(t *testing.T) {
	_, err := NewOpenAIClient("", "", "m", 0).DraftFormat(context.Background(), lines)
	assert.True(t, errors.Is(err, ErrDisabled))
}
