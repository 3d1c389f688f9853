// Package stage declares the content-generation capabilities the pipeline
// calls. Implementations live in the subpackages.
package stage

import (
	"context"
	"errors"
	"strings"
)

// ErrMalformedReply marks provider output that arrived but could not be
// used. Calls failing with it are not retried.
var ErrMalformedReply = errors.New("malformed provider reply")

type Draft struct {
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

type Evaluation struct {
	Score  float64 `json:"score"`
	Review string  `json:"review"`
}

type TopicSelector interface {
	SelectTopic(ctx context.Context, idea string) (string, error)
}

type Drafter interface {
	Draft(ctx context.Context, title, tone string) (Draft, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, content, tone string) (Evaluation, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, draft, review, tone, title string) (Draft, error)
}

type QueryDeriver interface {
	ImageQuery(ctx context.Context, title, content string) (string, error)
}

type ImageSearcher interface {
	SearchImages(ctx context.Context, query string) ([]string, error)
}

// ImageFinder derives a search query from the post and resolves it to image URLs.
type ImageFinder interface {
	QueryDeriver
	ImageSearcher
}

type imageFinder struct {
	QueryDeriver
	ImageSearcher
}

// CombineImages pairs a query deriver with a search backend.
func CombineImages(q QueryDeriver, s ImageSearcher) ImageFinder {
	return imageFinder{QueryDeriver: q, ImageSearcher: s}
}

// Providers bundles the five collaborators the orchestrator depends on.
type Providers struct {
	Topics    TopicSelector
	Drafter   Drafter
	Evaluator Evaluator
	Rewriter  Rewriter
	Images    ImageFinder
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
