// Package api provides HTTP handlers for the bakery bot endpoints.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/saboresdadori/bakerybot/internal/models"
	"github.com/saboresdadori/bakerybot/internal/store"
)

// ReplyDeliveryError is the best-effort apology sent when the conversational
// reply could not be delivered after retries.
const ReplyDeliveryError = "Desculpe, ocorreu um erro temporário. Por favor, tente novamente em alguns instantes."

// rootHandler serves the service status on GET and aliases the webhook on
// POST, matching how the gateway is sometimes configured with the bare root
// URL.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"status":         "online",
			"service":        "WhatsApp Bot - Sabores da Dori",
			"instance":       s.instance,
			"timestamp":      time.Now().UnixMilli(),
			"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
			"sessions":       s.sessions.Len(),
		})
	case http.MethodPost:
		s.webhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// webhookHandler receives message events from the Evolution API. The gateway
// is acknowledged immediately; routing, persistence and the outbound reply
// run afterwards so slow sends never block the webhook caller.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: webhook received", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.webhookHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	// Acknowledge before processing; the gateway only needs delivery.
	writeJSONResponse(w, http.StatusOK, models.Success(nil))

	go s.processEvent(body)
}

// processEvent unwraps a webhook event envelope and drives one turn of the
// conversation. Malformed or unsupported events are logged and dropped; the
// transport already received its acknowledgment.
func (s *Server) processEvent(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultProcessTimeout)
	defer cancel()

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Warn("Server.processEvent: invalid JSON in webhook event", "error", err)
		return
	}

	msg, ok := unwrapEvent(&event)
	if !ok {
		return
	}
	slog.Info("Server.processEvent: message received", "sender", msg.Sender, "has_image", msg.HasImage)

	result := s.router.Route(ctx, msg)

	if result.SaveQuote {
		if _, err := s.st.AddQuote(msg.Sender, msg.Text, msg.HasImage); err != nil {
			// Storage failure must not block the conversational reply.
			slog.Error("Server.processEvent: failed to save quote", "error", err, "sender", msg.Sender)
		} else {
			slog.Info("Server.processEvent: quote saved", "sender", msg.Sender)
		}
	}

	if err := s.gateway.SendText(ctx, msg.Sender, result.Reply); err != nil {
		slog.Error("Server.processEvent: failed to send reply", "error", err, "sender", msg.Sender)
		if fallbackErr := s.gateway.SendText(ctx, msg.Sender, ReplyDeliveryError); fallbackErr != nil {
			slog.Error("Server.processEvent: failed to send fallback notice", "error", fallbackErr, "sender", msg.Sender)
		}
		return
	}
	slog.Debug("Server.processEvent: reply sent", "sender", msg.Sender)
}

// unwrapEvent extracts (sender, text, has-image) from the event envelope.
// Returns false for any shape the bot does not handle.
func unwrapEvent(event *models.WebhookEvent) (models.IncomingMessage, bool) {
	if event.Data == nil {
		slog.Warn("Server.processEvent: event without message data")
		return models.IncomingMessage{}, false
	}
	key := event.Data.Key
	content := event.Data.Message
	if key == nil || content == nil {
		slog.Warn("Server.processEvent: invalid message structure")
		return models.IncomingMessage{}, false
	}
	if key.RemoteJID == "" {
		slog.Warn("Server.processEvent: missing remoteJid")
		return models.IncomingMessage{}, false
	}

	msg := models.IncomingMessage{Sender: key.RemoteJID}
	switch {
	case content.Conversation != "":
		msg.Text = content.Conversation
	case content.ExtendedTextMessage != nil:
		msg.Text = content.ExtendedTextMessage.Text
	case content.ImageMessage != nil:
		msg.Text = content.ImageMessage.Caption
		if msg.Text == "" {
			msg.Text = "[Imagem enviada]"
		}
		msg.HasImage = true
	default:
		slog.Warn("Server.processEvent: unsupported message shape", "sender", key.RemoteJID)
		return models.IncomingMessage{}, false
	}
	return msg, true
}

// statusHandler reports the gateway instance connection state (GET /status).
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statusHandler: processing status request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultProcessTimeout)
	defer cancel()

	state, err := s.gateway.ConnectionState(ctx)
	if err != nil {
		slog.Error("Server.statusHandler: failed to get connection state", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get instance status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"instance": s.instance,
		"status":   json.RawMessage(state),
	}))
}

// configureWebhookHandler registers the webhook URL with the gateway
// (POST /configure-webhook). The URL comes from configuration or, failing
// that, the request body.
func (s *Server) configureWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.configureWebhookHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	webhookURL := s.webhookURL
	if webhookURL == "" {
		var req struct {
			WebhookURL string `json:"webhookUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			webhookURL = req.WebhookURL
		}
	}
	if webhookURL == "" {
		slog.Warn("Server.configureWebhookHandler: no webhook URL configured")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("WEBHOOK_URL not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultProcessTimeout)
	defer cancel()

	if err := s.gateway.ConfigureWebhook(ctx, webhookURL); err != nil {
		slog.Error("Server.configureWebhookHandler: registration failed", "error", err, "url", webhookURL)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to configure webhook"))
		return
	}
	slog.Info("Server.configureWebhookHandler: webhook configured", "url", webhookURL)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Webhook configured successfully", webhookURL))
}

// quotesHandler routes the quote administration endpoints:
//
//	GET  /quotes            list quotes, optional ?status= filter
//	GET  /quotes/stats      aggregate counts
//	POST /quotes/{id}/status update a quote's status
func (s *Server) quotesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.quotesHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/quotes")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		// /quotes
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.listQuotesHandler(w, r)
		return
	}

	if segments[0] == "stats" {
		// /quotes/stats
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.quoteStatsHandler(w, r)
		return
	}

	if len(segments) == 2 && segments[1] == "status" {
		// /quotes/{id}/status
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.updateQuoteStatusHandler(w, r, segments[0])
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown quotes endpoint"))
}

// listQuotesHandler handles GET /quotes.
func (s *Server) listQuotesHandler(w http.ResponseWriter, r *http.Request) {
	status := models.QuoteStatus(r.URL.Query().Get("status"))
	if status != "" && !models.IsValidQuoteStatus(status) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid status filter"))
		return
	}

	quotes, err := s.st.ListQuotes(status)
	if err != nil {
		slog.Error("Server.listQuotesHandler: failed to list quotes", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch quotes"))
		return
	}
	slog.Debug("Server.listQuotesHandler: quotes fetched", "count", len(quotes))
	writeJSONResponse(w, http.StatusOK, models.Success(quotes))
}

// quoteStatsHandler handles GET /quotes/stats.
func (s *Server) quoteStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.st.Stats()
	if err != nil {
		slog.Error("Server.quoteStatsHandler: failed to compute stats", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// updateQuoteStatusHandler handles POST /quotes/{id}/status.
func (s *Server) updateQuoteStatusHandler(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid quote id"))
		return
	}

	var req struct {
		Status models.QuoteStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateQuoteStatusHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if !models.IsValidQuoteStatus(req.Status) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid quote status"))
		return
	}

	switch err := s.st.UpdateQuoteStatus(id, req.Status); err {
	case nil:
		slog.Info("Server.updateQuoteStatusHandler: status updated", "id", id, "status", req.Status)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Quote updated successfully", nil))
	case store.ErrQuoteNotFound:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Quote not found"))
	default:
		slog.Error("Server.updateQuoteStatusHandler: update failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update quote"))
	}
}
