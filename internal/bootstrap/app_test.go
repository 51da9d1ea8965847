package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/llm/llmtest"
	"github.com/jlorenzo681/documind/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "test",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		ReportDir:       t.TempDir(),
		LLMProvider:     "openai",
		Retriever:       "keyword",
	}
}

func TestBuildInMemory(t *testing.T) {
	app, err := BuildWith(context.Background(), testConfig(t), Options{LLM: &llmtest.Fake{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	if app.DB != nil {
		t.Fatalf("expected no database without DATABASE_URL")
	}
	if app.Queue != nil {
		t.Fatalf("expected in-process execution without SQS_QUEUE_URL")
	}
	if app.Runner == nil || app.Sweeper == nil || app.Orchestrator == nil {
		t.Fatalf("expected runner, sweeper and orchestrator to be built")
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /live, got %d", rec.Code)
	}
}

func TestBuildFallsBackToPlaceholderInDev(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	if _, ok := app.LLM.(llm.PlaceholderClient); !ok {
		t.Fatalf("expected placeholder client, got %T", app.LLM)
	}
}

func TestBuildRequiresDatabaseInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := BuildWith(context.Background(), cfg, Options{LLM: &llmtest.Fake{}}); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRequiresAPIKeyInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, _, _, err := buildLLM(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without an API key in production")
	}
}

func TestBuildS3RequiresBucket(t *testing.T) {
	cfg := testConfig(t)
	cfg.ObjectStoreType = "s3"
	if _, err := buildStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without S3 bucket")
	}
}

func TestIsDevLike(t *testing.T) {
	for env, want := range map[string]bool{"dev": true, "LOCAL": true, "test": true, "staging": false, "production": false} {
		if got := isDevLike(env); got != want {
			t.Fatalf("isDevLike(%q) = %v, want %v", env, got, want)
		}
	}
}
