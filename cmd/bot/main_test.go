package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bunnybrand/My-botinok/cmd/bot/config"
	"github.com/bunnybrand/My-botinok/internal/observability"
	"github.com/bunnybrand/My-botinok/internal/realtime"
)

func TestRunRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("CRYPTO_PAY_API_TOKEN", "tok")

	if err := run(context.Background()); err == nil {
		t.Fatalf("expected error when BOT_TOKEN is empty")
	}
}

func TestRunRequiresGatewayToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CRYPTO_PAY_API_TOKEN", "")

	if err := run(context.Background()); err == nil {
		t.Fatalf("expected error when CRYPTO_PAY_API_TOKEN is empty")
	}
}

func TestBuildStorage_InMemoryFallback(t *testing.T) {
	store, cat, cleanup := buildStorage(context.Background(), config.StorageConfig{}, config.ShopConfig{}, t.Logf)
	defer cleanup()

	if store == nil || cat == nil {
		t.Fatalf("expected in-memory fallbacks, got store=%v catalog=%v", store, cat)
	}
	games, err := cat.Games(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) == 0 {
		t.Fatalf("expected seeded sample catalog")
	}
}

func TestObservabilityServerRoutes(t *testing.T) {
	hub := realtime.NewHub(t.Logf)
	srv := observabilityServer(":0", observability.NewMetrics(), hub)

	for _, path := range []string{"/metrics", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}
