// Package ai drafts format definitions from sample lines with an
// OpenAI-compatible chat endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	altai "github.com/sashabaranov/go-openai"

	"logscope/internal/formats"
	"logscope/internal/model"
	"logscope/internal/util"
	"logscope/internal/util/logx"
)

var ErrDisabled = errors.New("openai disabled")

const maxPromptLines = 50

type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
}

func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIClient{apiKey: apiKey, baseURL: baseURL, model: model, timeout: timeout}
}

func (c *OpenAIClient) Enabled() bool { return c != nil && c.apiKey != "" }

type draftResponse struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Groups  struct {
		Timestamp int `json:"timestamp"`
		Level     int `json:"level"`
		Message   int `json:"message"`
		TraceID   int `json:"traceId"`
		Logger    int `json:"logger"`
	} `json:"groups"`
}

// DraftFormat asks the model for a definition covering lines. The draft is
// returned only when it validates and extracts fields from the first line.
func (c *OpenAIClient) DraftFormat(ctx context.Context, lines []string) (model.LogFormatDefinition, error) {
	if !c.Enabled() {
		return model.LogFormatDefinition{}, ErrDisabled
	}
	sample := firstLine(lines)
	if sample == "" {
		return model.LogFormatDefinition{}, errors.New("no sample lines")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.call(ctx, buildPrompt(lines))
	if err != nil {
		return model.LogFormatDefinition{}, fmt.Errorf("draft format: %w", err)
	}
	var out draftResponse
	if err := json.Unmarshal([]byte(stripFences(resp)), &out); err != nil {
		return model.LogFormatDefinition{}, fmt.Errorf("draft format: decode response: %w", err)
	}
	def := model.LogFormatDefinition{
		Name:    strings.TrimSpace(out.Name),
		Pattern: out.Pattern,
		Sample:  sample,
		Groups: model.GroupRoles{
			Timestamp: out.Groups.Timestamp,
			Level:     out.Groups.Level,
			Message:   out.Groups.Message,
			TraceID:   out.Groups.TraceID,
			Logger:    out.Groups.Logger,
		},
	}
	if def.Name == "" {
		def.Name = "ai-draft"
	}
	if err := formats.Validate(def); err != nil {
		return def, err
	}
	if res := formats.Test(def, sample); !res.OK {
		return def, fmt.Errorf("draft does not match sample: %s", res.Reason)
	}
	logx.Infof("ai: drafted format %q", def.Name)
	return def, nil
}

func (c *OpenAIClient) call(ctx context.Context, prompt string) (string, error) {
	cfg := altai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cli := altai.NewClientWithConfig(cfg)
	resp, err := cli.CreateChatCompletion(ctx, altai.ChatCompletionRequest{
		Model: c.model,
		Messages: []altai.ChatCompletionMessage{
			{Role: altai.ChatMessageRoleSystem, Content: "You write Go RE2 regular expressions for log lines and return ONLY strict JSON following the specified contract. No prose, no code fences."},
			{Role: altai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: &altai.ChatCompletionResponseFormat{Type: altai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(lines []string) string {
	var b strings.Builder
	b.WriteString("Write one anchored regular expression matching the first line of each log record below. ")
	b.WriteString("Continuation lines indented with spaces or tabs (stack traces) must not match. ")
	b.WriteString(`Return ONLY JSON: {"name": string, "pattern": string, "groups": {"timestamp": int, "level": int, "message": int, "traceId": int, "logger": int}}. `)
	b.WriteString("Group values are 1-based capture group numbers, 0 when absent. level and message are required; no two roles may share a group.\n")
	b.WriteString("Lines:\n")
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString(util.RedactPII(l))
		b.WriteByte('\n')
		n++
		if n >= maxPromptLines {
			break
		}
	}
	return b.String()
}

func firstLine(lines []string) string {
	for _, l := range lines {
		if s := strings.TrimRight(l, "\r"); strings.TrimSpace(s) != "" && !strings.HasPrefix(s, " ") && !strings.HasPrefix(s, "\t") {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
