package telegram

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"callbridge/internal/dedup"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const testToken = "123456:test-token"

func newWebhookRouter(t *testing.T, f *fixture, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	wh := NewWebhook(testToken, secret, dedup.NewMemoryRepo(), f.handler, log)

	r := gin.New()
	r.POST("/webhook/:token", wh.Handle)
	return r
}

func postUpdate(t *testing.T, r *gin.Engine, token, secret string, upd tgbotapi.Update) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+token, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(secretTokenHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_RejectsWrongToken(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(t, f, "")

	w := postUpdate(t, r, "wrong-token", "", groupMessage(aliceID, aliceChat, "hi"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestWebhook_EnforcesSecretHeader(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(t, f, "hook-secret")

	if w := postUpdate(t, r, testToken, "", groupMessage(aliceID, aliceChat, "hi")); w.Code != http.StatusForbidden {
		t.Fatalf("missing secret: status %d, want 403", w.Code)
	}
	if w := postUpdate(t, r, testToken, "hook-secret", groupMessage(aliceID, aliceChat, "hi")); w.Code != http.StatusOK {
		t.Fatalf("valid secret: status %d, want 200", w.Code)
	}
}

func TestWebhook_RejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(t, f, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+testToken, bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestWebhook_DropsDuplicateUpdates(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(t, f, "")

	upd := groupMessage(3, -300, "/register C3333")
	upd.UpdateID = 42

	if w := postUpdate(t, r, testToken, "", upd); w.Code != http.StatusOK {
		t.Fatalf("first delivery: status %d", w.Code)
	}
	if w := postUpdate(t, r, testToken, "", upd); w.Code != http.StatusOK {
		t.Fatalf("redelivery: status %d", w.Code)
	}

	if got := f.api.sentTo(-300); len(got) != 1 {
		t.Fatalf("duplicate update processed: %d replies", len(got))
	}
}
