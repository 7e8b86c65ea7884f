package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/careplus/appointment-agent/internal/calendly"
	appconfig "github.com/careplus/appointment-agent/internal/config"
	"github.com/careplus/appointment-agent/internal/conversation"
	"github.com/careplus/appointment-agent/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, chatMetrics, webhookMetrics := setupMetrics()
	if handler == nil || chatMetrics == nil || webhookMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	chatMetrics.ObserveMessage("greeting", "ok")
	webhookMetrics.ObserveInbound("invitee.created", "processed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "careplus_chat_messages_total") {
		t.Fatalf("expected chat counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "careplus_webhooks_inbound_total") {
		t.Fatalf("expected webhook counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildProviderFallsBackToMock(t *testing.T) {
	logger := logging.New("error")

	provider := buildProvider(&appconfig.Config{UseMockProvider: true}, logger)
	if _, ok := provider.(*calendly.MockProvider); !ok {
		t.Fatalf("expected mock provider, got %T", provider)
	}

	provider = buildProvider(&appconfig.Config{CalendlyToken: ""}, logger)
	if _, ok := provider.(*calendly.MockProvider); !ok {
		t.Fatalf("expected mock provider without token, got %T", provider)
	}

	provider = buildProvider(&appconfig.Config{
		CalendlyToken:   "tok",
		CalendlyBaseURL: "https://api.calendly.com",
		ProviderTimeout: time.Second,
	}, logger)
	if _, ok := provider.(*calendly.Client); !ok {
		t.Fatalf("expected real client with token, got %T", provider)
	}
}

func TestBuildSessionStoreDefaultsToMemory(t *testing.T) {
	logger := logging.New("error")
	store := buildSessionStore(&appconfig.Config{SessionBackend: "memory", SessionTTL: time.Hour}, logger)
	if _, ok := store.(*conversation.InMemorySessionStore); !ok {
		t.Fatalf("expected in-memory store, got %T", store)
	}
}

func TestBuildLLMWithoutKeyReturnsNil(t *testing.T) {
	logger := logging.New("error")

	if llm := buildLLM(context.Background(), &appconfig.Config{LLMProvider: "none"}, logger); llm != nil {
		t.Fatalf("expected nil llm for provider none")
	}
	if llm := buildLLM(context.Background(), &appconfig.Config{LLMProvider: "auto"}, logger); llm != nil {
		t.Fatalf("expected nil llm without api key")
	}
}
