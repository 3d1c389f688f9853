package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"blog-job-service/internal/stage"
)

const (
	topicSchema = `{
  "type": "object",
  "properties": {"title": {"type": "string"}},
  "required": ["title"]
}`
	draftSchema = `{
  "type": "object",
  "properties": {"content": {"type": "string"}},
  "required": ["content"]
}`
	evaluationSchema = `{
  "type": "object",
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 10},
    "review": {"type": "string"}
  },
  "required": ["score", "review"]
}`
	querySchema = `{
  "type": "object",
  "properties": {"query": {"type": "string"}},
  "required": ["query"]
}`
)

// excerpt keeps prompts bounded for long drafts. It cuts at most n bytes
// and never splits a rune.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *Client) SelectTopic(ctx context.Context, idea string) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	system := "You are an editor choosing blog post titles. Reply with JSON: {\"title\": string}."
	user := "Pick one specific, engaging blog post title for this idea:\n" + idea
	if err := c.completeJSON(ctx, "select_topic", system, user, c.topicSchema, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Title), nil
}

func (c *Client) Draft(ctx context.Context, title, tone string) (stage.Draft, error) {
	var out struct {
		Content string `json:"content"`
	}
	system := "You are a professional blog writer. Write in markdown. Reply with JSON: {\"content\": string}."
	user := fmt.Sprintf("Write a complete blog post of at least 600 words.\nTitle: %s\nTone: %s", title, tone)
	if err := c.completeJSON(ctx, "draft", system, user, c.draftSchema, &out); err != nil {
		return stage.Draft{}, err
	}
	content := strings.TrimSpace(out.Content)
	return stage.Draft{Content: content, WordCount: stage.CountWords(content)}, nil
}

func (c *Client) Evaluate(ctx context.Context, content, tone string) (stage.Evaluation, error) {
	var out stage.Evaluation
	system := "You are a strict content reviewer. Score the post from 0 to 10 and explain what to improve. " +
		"Reply with JSON: {\"score\": number, \"review\": string}."
	user := fmt.Sprintf("Expected tone: %s\n\nPost:\n%s", tone, excerpt(content, 12000))
	if err := c.completeJSON(ctx, "evaluate", system, user, c.evalSchema, &out); err != nil {
		return stage.Evaluation{}, err
	}
	return out, nil
}

func (c *Client) Rewrite(ctx context.Context, draft, review, tone, title string) (stage.Draft, error) {
	var out struct {
		Content string `json:"content"`
	}
	system := "You are a senior editor. Rewrite the post addressing every point of the review. " +
		"Keep the title, write at least 600 words in markdown. Reply with JSON: {\"content\": string}."
	user := fmt.Sprintf("Title: %s\nTone: %s\n\nReview:\n%s\n\nCurrent draft:\n%s", title, tone, review, excerpt(draft, 12000))
	if err := c.completeJSON(ctx, "rewrite", system, user, c.draftSchema, &out); err != nil {
		return stage.Draft{}, err
	}
	content := strings.TrimSpace(out.Content)
	return stage.Draft{Content: content, WordCount: stage.CountWords(content)}, nil
}

func (c *Client) ImageQuery(ctx context.Context, title, content string) (string, error) {
	var out struct {
		Query string `json:"query"`
	}
	system := "You pick stock photo search keywords. Reply with JSON: {\"query\": string} of 2-5 words."
	user := fmt.Sprintf("Title: %s\n\nPost excerpt:\n%s", title, excerpt(content, 2000))
	if err := c.completeJSON(ctx, "image_query", system, user, c.querySchema, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Query), nil
}
