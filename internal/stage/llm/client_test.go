package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"blog-job-service/internal/stage"
	"blog-job-service/internal/stage/llm"
)

// replyWith serves a chat/completions response whose message content is body.
func replyWith(t *testing.T, body string, check func(r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if check != nil {
			check(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": body}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *llm.Client {
	t.Helper()
	c, err := llm.NewClient(llm.Config{BaseURL: url, APIKey: "k", Model: "test-model"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestClient_SelectTopic(t *testing.T) {
	srv := replyWith(t, `{"title":"  Ten Ways AI Helps Clinics  "}`, func(r *http.Request, payload map[string]any) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("authorization = %q", got)
		}
		if payload["model"] != "test-model" {
			t.Errorf("model = %v", payload["model"])
		}
		rf, _ := payload["response_format"].(map[string]any)
		if rf["type"] != "json_object" {
			t.Errorf("response_format = %v", payload["response_format"])
		}
	})

	title, err := newClient(t, srv.URL).SelectTopic(context.Background(), "AI in healthcare")
	if err != nil {
		t.Fatalf("select topic: %v", err)
	}
	if title != "Ten Ways AI Helps Clinics" {
		t.Fatalf("title = %q", title)
	}
}

func TestClient_DraftCountsWords(t *testing.T) {
	srv := replyWith(t, `{"content":"one two three four five"}`, nil)

	d, err := newClient(t, srv.URL).Draft(context.Background(), "T", "Casual")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if d.WordCount != 5 || d.Content != "one two three four five" {
		t.Fatalf("unexpected draft: %+v", d)
	}
}

func TestClient_EvaluateRejectsOutOfRangeScore(t *testing.T) {
	srv := replyWith(t, `{"score": 14, "review": "great"}`, nil)

	_, err := newClient(t, srv.URL).Evaluate(context.Background(), "content", "tone")
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
	if !errors.Is(err, stage.ErrMalformedReply) {
		t.Fatalf("schema error must be ErrMalformedReply, got %v", err)
	}
}

func TestClient_EvaluateRejectsStringScore(t *testing.T) {
	srv := replyWith(t, `{"score": "eight", "review": "great"}`, nil)

	_, err := newClient(t, srv.URL).Evaluate(context.Background(), "content", "tone")
	if !errors.Is(err, stage.ErrMalformedReply) {
		t.Fatalf("expected ErrMalformedReply for non-numeric score, got %v", err)
	}
}

func TestClient_NonJSONReply(t *testing.T) {
	srv := replyWith(t, `Sure! Here is your title: Foo`, nil)

	_, err := newClient(t, srv.URL).SelectTopic(context.Background(), "x")
	if !errors.Is(err, stage.ErrMalformedReply) {
		t.Fatalf("expected ErrMalformedReply for non-json reply, got %v", err)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).ImageQuery(context.Background(), "T", "body")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if errors.Is(err, stage.ErrMalformedReply) {
		t.Fatalf("upstream errors stay retryable: %v", err)
	}
}

func TestClient_ImageQueryExcerptKeepsRunesWhole(t *testing.T) {
	// 3-byte runes never line up with the excerpt cut
	content := strings.Repeat("日本語", 1000)
	var user string
	srv := replyWith(t, `{"query":"japan"}`, func(r *http.Request, payload map[string]any) {
		msgs, _ := payload["messages"].([]any)
		if len(msgs) == 2 {
			m, _ := msgs[1].(map[string]any)
			user, _ = m["content"].(string)
		}
	})

	if _, err := newClient(t, srv.URL).ImageQuery(context.Background(), "T", content); err != nil {
		t.Fatalf("image query: %v", err)
	}
	if user == "" {
		t.Fatalf("user message not captured")
	}
	if strings.ContainsRune(user, utf8.RuneError) || !utf8.ValidString(user) {
		t.Fatalf("excerpt split a rune: ...%q", user[len(user)-12:])
	}
	if !strings.HasSuffix(user, "日") && !strings.HasSuffix(user, "本") && !strings.HasSuffix(user, "語") {
		t.Fatalf("excerpt lost its tail: ...%q", user[len(user)-12:])
	}
}
