// Package stub provides deterministic offline stage providers for local runs
// without model or image credentials.
package stub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"blog-job-service/internal/stage"
)

// Providers writes a long, fixed-structure post so every job completes
// without a rewrite.
type Providers struct {
	// Words is the approximate draft length. Defaults to 650.
	Words int
	// Score is the evaluation result. Defaults to 8.5.
	Score float64
}

func New() *Providers { return &Providers{Words: 650, Score: 8.5} }

// Bundle exposes p as all five stage collaborators.
func (p *Providers) Bundle() stage.Providers {
	return stage.Providers{
		Topics:    p,
		Drafter:   p,
		Evaluator: p,
		Rewriter:  p,
		Images:    p,
	}
}

func (p *Providers) SelectTopic(_ context.Context, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", nil
	}
	first, size := utf8.DecodeRuneInString(idea)
	return "A Practical Guide to " + string(unicode.ToUpper(first)) + idea[size:], nil
}

func (p *Providers) Draft(_ context.Context, title, tone string) (stage.Draft, error) {
	return p.write(title, tone, p.Words), nil
}

func (p *Providers) Evaluate(_ context.Context, content, _ string) (stage.Evaluation, error) {
	review := "Clear structure and consistent tone."
	if stage.CountWords(content) < 500 {
		review = "Too short; expand each section with examples."
	}
	return stage.Evaluation{Score: p.Score, Review: review}, nil
}

func (p *Providers) Rewrite(_ context.Context, _, _, tone, title string) (stage.Draft, error) {
	n := p.Words
	if n < 600 {
		n = 600
	}
	return p.write(title, tone, n), nil
}

func (p *Providers) ImageQuery(_ context.Context, title, _ string) (string, error) {
	words := strings.Fields(strings.ToLower(title))
	if len(words) > 4 {
		words = words[len(words)-4:]
	}
	return strings.Join(words, " "), nil
}

func (p *Providers) SearchImages(_ context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q := url.QueryEscape(query)
	return []string{
		"https://images.example.com/" + q + "/1.jpg",
		"https://images.example.com/" + q + "/2.jpg",
		"https://images.example.com/" + q + "/3.jpg",
	}, nil
}

func (p *Providers) write(title, tone string, words int) stage.Draft {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	sentence := fmt.Sprintf("This %s section walks through one more point about the topic.", strings.ToLower(tone))
	per := stage.CountWords(sentence)
	for written, i := 0, 0; written < words; i++ {
		if i%5 == 0 {
			fmt.Fprintf(&b, "\n## Part %d\n\n", i/5+1)
			written += 3
		}
		b.WriteString(sentence)
		b.WriteByte(' ')
		written += per
	}
	content := strings.TrimSpace(b.String())
	return stage.Draft{Content: content, WordCount: stage.CountWords(content)}
}
