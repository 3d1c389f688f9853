package stub_test

import (
	"context"
	"testing"
	"unicode/utf8"

	"blog-job-service/internal/stage"
	"blog-job-service/internal/stage/stub"
)

func TestProviders_FullRunPassesThresholds(t *testing.T) {
	ctx := context.Background()
	p := stub.New().Bundle()

	title, err := p.Topics.SelectTopic(ctx, "home composting")
	if err != nil || title == "" {
		t.Fatalf("topic: %q %v", title, err)
	}
	d, err := p.Drafter.Draft(ctx, title, "Friendly")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if d.WordCount < 500 || d.WordCount != stage.CountWords(d.Content) {
		t.Fatalf("draft word count %d (counted %d)", d.WordCount, stage.CountWords(d.Content))
	}
	ev, _ := p.Evaluator.Evaluate(ctx, d.Content, "Friendly")
	if ev.Score < 8 {
		t.Fatalf("score %v", ev.Score)
	}
	q, _ := p.Images.ImageQuery(ctx, title, d.Content)
	imgs, _ := p.Images.SearchImages(ctx, q)
	if len(imgs) == 0 {
		t.Fatalf("expected images for query %q", q)
	}
}

func TestProviders_RewriteReachesTarget(t *testing.T) {
	p := &stub.Providers{Words: 120, Score: 6}
	d, _ := p.Rewrite(context.Background(), "short", "expand", "Casual", "T")
	if d.WordCount < 500 {
		t.Fatalf("rewrite produced %d words", d.WordCount)
	}
}

func TestProviders_TitleCapitalisesMultibyteIdea(t *testing.T) {
	title, err := stub.New().SelectTopic(context.Background(), "  éclairs at home ")
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	if title != "A Practical Guide to Éclairs at home" {
		t.Fatalf("title = %q", title)
	}
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid utf-8: %q", title)
	}
}
