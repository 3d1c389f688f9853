package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CLEANUP_MAX_AGE", "")
	t.Setenv("STAGE_TIMEOUT", "")

	c := fromEnv()
	if c.Store.Driver != "postgres" || c.Queue.Backend != "redis" || c.Queue.Workers != 4 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Cleanup.MaxAge != 24*time.Hour || c.Cleanup.Strategy != "status" {
		t.Fatalf("unexpected cleanup defaults: %+v", c.Cleanup)
	}
	if c.Pipeline.MinDraftWords != 100 || c.Pipeline.TargetWords != 500 || c.Pipeline.MinScore != 8 || c.Pipeline.StageRetries != 0 {
		t.Fatalf("unexpected pipeline defaults: %+v", c.Pipeline)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("QUEUE_BACKEND", "inline")
	t.Setenv("CLEANUP_MAX_AGE", "2h")
	t.Setenv("STAGE_TIMEOUT", "not-a-duration")
	t.Setenv("MIN_SCORE", "7.5")
	t.Setenv("STAGE_PROVIDER", "stub")

	c := fromEnv()
	if c.Store.Driver != "sqlite" || c.Queue.Backend != "inline" {
		t.Fatalf("unexpected store/queue: %+v %+v", c.Store, c.Queue)
	}
	if c.Cleanup.MaxAge != 2*time.Hour {
		t.Fatalf("max age = %v", c.Cleanup.MaxAge)
	}
	if c.Pipeline.StageTimeout != 2*time.Minute {
		t.Fatalf("bad duration must fall back to default, got %v", c.Pipeline.StageTimeout)
	}
	if c.Pipeline.MinScore != 7.5 {
		t.Fatalf("min score = %v", c.Pipeline.MinScore)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_CollectsProblems(t *testing.T) {
	c := fromEnv()
	c.Store.Driver = "postgres"
	c.Store.PostgresDSN = ""
	c.Cleanup.Strategy = "weekly"
	c.Provider.Kind = "stub"

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"POSTGRES_DSN", "CLEANUP_STRATEGY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://app:secret@db:5432/blog?sslmode=disable": "postgres://app:xxxxx@db:5432/blog?sslmode=disable",
		"app:secret@tcp(db:3306)/blog?parseTime=true":        "app:xxxxx@tcp(db:3306)/blog?parseTime=true",
		"blog-jobs.db": "blog-jobs.db",
	}
	for in, want := range cases {
		if got := RedactDSN(in); got != want {
			t.Fatalf("RedactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
