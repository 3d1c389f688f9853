// Package llm implements the text stages on an OpenAI-compatible
// chat/completions endpoint. Every reply is requested as a JSON object and
// validated against a schema before it is decoded.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"blog-job-service/internal/stage"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger

	topicSchema *jsonschema.Schema
	draftSchema *jsonschema.Schema
	evalSchema  *jsonschema.Schema
	querySchema *jsonschema.Schema
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "llm").Str("model", cfg.Model).Logger(),
	}

	var err error
	if c.topicSchema, err = compileSchema("topic.json", topicSchema); err != nil {
		return nil, err
	}
	if c.draftSchema, err = compileSchema("draft.json", draftSchema); err != nil {
		return nil, err
	}
	if c.evalSchema, err = compileSchema("evaluation.json", evaluationSchema); err != nil {
		return nil, err
	}
	if c.querySchema, err = compileSchema("query.json", querySchema); err != nil {
		return nil, err
	}
	return c, nil
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model          string         `json:"model"`
	Messages       []chatMsg      `json:"messages"`
	Temperature    float32        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// completeJSON sends one system+user exchange and decodes the schema-checked reply into out.
func (c *Client) completeJSON(ctx context.Context, op, system, user string, schema *jsonschema.Schema, out any) error {
	start := time.Now()

	body, err := json.Marshal(chatReq{
		Model:          c.cfg.Model,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]any{"type": "json_object"},
		Messages: []chatMsg{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("llm: %s", msg)
	}

	var decoded chatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode llm response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return errors.New("llm: empty response")
	}

	content := []byte(strings.TrimSpace(decoded.Choices[0].Message.Content))
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("llm %s: %w: reply is not json: %w", op, stage.ErrMalformedReply, err)
	}
	if err := schema.Validate(doc); err != nil {
		c.log.Warn().Str("op", op).Err(err).Int("reply_bytes", len(content)).Msg("llm reply failed schema")
		return fmt.Errorf("llm %s: %w: reply does not match schema: %w", op, stage.ErrMalformedReply, err)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("llm %s: %w: unmarshal: %w", op, stage.ErrMalformedReply, err)
	}

	c.log.Debug().Str("op", op).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("llm call ok")
	return nil
}

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}
