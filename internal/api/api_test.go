package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saboresdadori/bakerybot/internal/flow"
	"github.com/saboresdadori/bakerybot/internal/models"
	"github.com/saboresdadori/bakerybot/internal/store"
)

// fakeGateway records sends and can be told to fail.
type fakeGateway struct {
	sent     []sentMessage
	failNext int // number of SendText calls to fail
}

type sentMessage struct {
	Number string
	Text   string
}

func (g *fakeGateway) SendText(ctx context.Context, number, text string) error {
	if g.failNext > 0 {
		g.failNext--
		return errors.New("gateway unavailable")
	}
	g.sent = append(g.sent, sentMessage{Number: number, Text: text})
	return nil
}

func (g *fakeGateway) ConnectionState(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"instance":{"state":"open"}}`), nil
}

func (g *fakeGateway) ConfigureWebhook(ctx context.Context, url string) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeGateway, store.Store) {
	t.Helper()
	st, err := store.NewJSONFileStore(store.WithJSONPath(filepath.Join(t.TempDir(), "orcamentos.json")))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gateway := &fakeGateway{}
	sessions := flow.NewInMemorySessionStore(0)
	srv := NewServer(gateway, flow.NewRouter(sessions), sessions, st, "dori")
	return srv, gateway, st
}

func textEvent(sender, text string) []byte {
	data, _ := json.Marshal(models.WebhookEvent{
		Event: "messages.upsert",
		Data: &models.EventData{
			Key:     &models.MessageKey{RemoteJID: sender},
			Message: &models.MessageContent{Conversation: text},
		},
	})
	return data
}

func TestWebhookHandler_AcknowledgesImmediately(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(textEvent("5511999999999@s.whatsapp.net", "oi")))
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok ack, got %+v", resp)
	}
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestProcessEvent_TextMessageGetsReply(t *testing.T) {
	srv, gateway, _ := newTestServer(t)

	srv.processEvent(textEvent("5511999999999@s.whatsapp.net", "oi"))

	if len(gateway.sent) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(gateway.sent))
	}
	if gateway.sent[0].Number != "5511999999999@s.whatsapp.net" {
		t.Errorf("unexpected recipient %q", gateway.sent[0].Number)
	}
	if gateway.sent[0].Text != flow.ReplyMenu {
		t.Errorf("expected menu reply")
	}
}

func TestProcessEvent_ExtendedTextMessage(t *testing.T) {
	srv, gateway, _ := newTestServer(t)

	data, _ := json.Marshal(models.WebhookEvent{
		Data: &models.EventData{
			Key:     &models.MessageKey{RemoteJID: "5511999999999@s.whatsapp.net"},
			Message: &models.MessageContent{ExtendedTextMessage: &models.ExtendedTextMessage{Text: "2"}},
		},
	})
	srv.processEvent(data)

	if len(gateway.sent) != 1 || gateway.sent[0].Text != flow.ReplyQuote {
		t.Fatalf("expected quote-intake reply, got %+v", gateway.sent)
	}
}

func TestProcessEvent_ImageMessageSavesQuote(t *testing.T) {
	srv, gateway, st := newTestServer(t)
	sender := "5511999999999@s.whatsapp.net"

	// Enter the quote flow, then send an image with a short caption.
	srv.processEvent(textEvent(sender, "2"))
	data, _ := json.Marshal(models.WebhookEvent{
		Data: &models.EventData{
			Key:     &models.MessageKey{RemoteJID: sender},
			Message: &models.MessageContent{ImageMessage: &models.ImageMessage{Caption: "referencia"}},
		},
	})
	srv.processEvent(data)

	if len(gateway.sent) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(gateway.sent))
	}
	if gateway.sent[1].Text != flow.ReplyQuoteReceived {
		t.Errorf("expected quote confirmation reply")
	}

	quotes, err := st.ListQuotes("")
	if err != nil {
		t.Fatalf("ListQuotes failed: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 saved quote, got %d", len(quotes))
	}
	if !quotes[0].HasImage {
		t.Errorf("expected temImagem=true")
	}
	if quotes[0].Message != "referencia" {
		t.Errorf("expected caption as quote message, got %q", quotes[0].Message)
	}
}

func TestProcessEvent_ImageWithoutCaptionUsesPlaceholder(t *testing.T) {
	srv, gateway, st := newTestServer(t)
	sender := "5511999999999@s.whatsapp.net"

	srv.processEvent(textEvent(sender, "2"))
	data, _ := json.Marshal(models.WebhookEvent{
		Data: &models.EventData{
			Key:     &models.MessageKey{RemoteJID: sender},
			Message: &models.MessageContent{ImageMessage: &models.ImageMessage{}},
		},
	})
	srv.processEvent(data)

	if len(gateway.sent) != 2 || gateway.sent[1].Text != flow.ReplyQuoteReceived {
		t.Fatalf("expected quote confirmation, got %+v", gateway.sent)
	}
	quotes, _ := st.ListQuotes("")
	if len(quotes) != 1 || quotes[0].Message != "[Imagem enviada]" {
		t.Fatalf("expected placeholder message, got %+v", quotes)
	}
}

func TestProcessEvent_DropsUnsupportedShapes(t *testing.T) {
	srv, gateway, _ := newTestServer(t)

	unsupported := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"data":{}}`),
		[]byte(`{"data":{"key":{"remoteJid":""},"message":{"conversation":"oi"}}}`),
		[]byte(`{"data":{"key":{"remoteJid":"5511999999999@s.whatsapp.net"},"message":{}}}`),
	}
	for _, body := range unsupported {
		srv.processEvent(body)
	}

	if len(gateway.sent) != 0 {
		t.Errorf("expected no replies for unsupported events, got %d", len(gateway.sent))
	}
}

func TestProcessEvent_SendFailureTriggersFallback(t *testing.T) {
	srv, gateway, _ := newTestServer(t)
	gateway.failNext = 1

	srv.processEvent(textEvent("5511999999999@s.whatsapp.net", "oi"))

	if len(gateway.sent) != 1 {
		t.Fatalf("expected fallback notice, got %d messages", len(gateway.sent))
	}
	if gateway.sent[0].Text != ReplyDeliveryError {
		t.Errorf("expected delivery-error notice, got %q", gateway.sent[0].Text)
	}
}

func TestProcessEvent_StorageFailureStillReplies(t *testing.T) {
	st, err := store.NewJSONFileStore(store.WithJSONPath(filepath.Join(t.TempDir(), "orcamentos.json")))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gateway := &fakeGateway{}
	sessions := flow.NewInMemorySessionStore(0)
	srv := NewServer(gateway, flow.NewRouter(sessions), sessions, failingStore{st}, "dori")
	sender := "5511999999999@s.whatsapp.net"

	srv.processEvent(textEvent(sender, "2"))
	srv.processEvent(textEvent(sender, "Produto: torta de morango para sexta, entrega em casa"))

	// The quote write failed, but the conversational reply still goes out.
	if len(gateway.sent) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(gateway.sent))
	}
	if gateway.sent[1].Text != flow.ReplyQuoteReceived {
		t.Errorf("expected confirmation reply despite storage failure")
	}
}

// failingStore wraps a Store and fails every write.
type failingStore struct {
	store.Store
}

func (failingStore) AddQuote(number, message string, hasImage bool) (models.Quote, error) {
	return models.Quote{}, fmt.Errorf("disk full")
}

func TestRootHandler_Status(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.rootHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "online" {
		t.Errorf("expected online status, got %v", body["status"])
	}
	if body["instance"] != "dori" {
		t.Errorf("expected instance name, got %v", body["instance"])
	}
}

func TestStatusHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.statusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"open"`) {
		t.Errorf("expected connection state in body, got %s", rec.Body.String())
	}
}

func TestQuotesEndpoints(t *testing.T) {
	srv, _, st := newTestServer(t)
	mux := srv.routes()

	q, err := st.AddQuote("5511999999999@s.whatsapp.net", "Produto: bolo de cenoura, 2kg", false)
	if err != nil {
		t.Fatalf("AddQuote failed: %v", err)
	}

	// List all quotes.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /quotes: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bolo de cenoura") {
		t.Errorf("expected quote in listing")
	}

	// Update its status.
	payload := bytes.NewBufferString(`{"status":"em_andamento"}`)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/quotes/%d/status", q.ID), payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /quotes/{id}/status: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Filtered listing sees it.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes?status=em_andamento", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /quotes?status=: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "em_andamento") {
		t.Errorf("expected filtered quote in listing")
	}

	// Stats reflect the update.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /quotes/stats: expected 200, got %d", rec.Code)
	}
	var statsResp struct {
		Result models.QuoteStats `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &statsResp); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if statsResp.Result.Total != 1 || statsResp.Result.InProgress != 1 {
		t.Errorf("unexpected stats %+v", statsResp.Result)
	}
}

func TestQuotesEndpoints_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mux := srv.routes()

	// Unknown id.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quotes/42/status", bytes.NewBufferString(`{"status":"concluido"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown quote, got %d", rec.Code)
	}

	// Invalid id.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quotes/abc/status", bytes.NewBufferString(`{"status":"concluido"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", rec.Code)
	}

	// Invalid status value.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quotes/42/status", bytes.NewBufferString(`{"status":"pendente"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", rec.Code)
	}

	// Invalid status filter.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes?status=pendente", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid filter, got %d", rec.Code)
	}
}

func TestRootHandler_PostAliasesWebhook(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(textEvent("5511999999999@s.whatsapp.net", "oi")))
	rec := httptest.NewRecorder()
	srv.rootHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 ack from root alias, got %d", rec.Code)
	}
}
