// Package models defines the core data structures for the bakery bot.
//
// It includes types for quote requests, the webhook event envelope received
// from the Evolution API, and the JSON response envelope used by the HTTP API.
package models

import (
	"errors"
	"time"
)

// QuoteStatus represents the follow-up status of a quote request.
type QuoteStatus string

const (
	// QuoteStatusNew indicates a quote request that nobody has picked up yet.
	QuoteStatusNew QuoteStatus = "novo"
	// QuoteStatusInProgress indicates the team is working on the quote.
	QuoteStatusInProgress QuoteStatus = "em_andamento"
	// QuoteStatusDone indicates the quote was answered.
	QuoteStatusDone QuoteStatus = "concluido"
)

// Validation constants shared across modules.
const (
	// MaxMessageLength is the maximum message body length accepted for a
	// quote, matching the WhatsApp text body limit the gateway enforces on
	// outbound sends.
	MaxMessageLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient     = errors.New("recipient cannot be empty")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrInvalidQuoteStatus = errors.New("invalid quote status")
)

// IsValidQuoteStatus checks if the given quote status is supported.
func IsValidQuoteStatus(qs QuoteStatus) bool {
	switch qs {
	case QuoteStatusNew, QuoteStatusInProgress, QuoteStatusDone:
		return true
	default:
		return false
	}
}

// Quote represents a persisted quote request submitted by a customer.
// JSON field names match the layout of the quotes file consumed by the staff
// tooling, so they stay in Portuguese.
type Quote struct {
	ID        int64       `json:"id"` // creation epoch in milliseconds
	Number    string      `json:"numero"`
	Message   string      `json:"mensagem"`
	Timestamp time.Time   `json:"timestamp"`
	Status    QuoteStatus `json:"status"`
	HasImage  bool        `json:"temImagem"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
}

// Validate performs validation on a Quote structure before persistence.
func (q *Quote) Validate() error {
	if q.Number == "" {
		return ErrEmptyRecipient
	}
	if q.Message == "" {
		return ErrEmptyMessage
	}
	if len(q.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !IsValidQuoteStatus(q.Status) {
		return ErrInvalidQuoteStatus
	}
	return nil
}

// QuoteStats aggregates quote counts for the staff dashboard. JSON field
// names stay in Portuguese like the quote records themselves.
type QuoteStats struct {
	Total      int `json:"total"`
	New        int `json:"novos"`
	InProgress int `json:"emAndamento"`
	Done       int `json:"concluidos"`
	WithImage  int `json:"comImagem"`
}

// IncomingMessage is the unwrapped form of a webhook event: everything the
// flow router needs to know about one inbound message.
type IncomingMessage struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	HasImage bool   `json:"has_image"`
}

// WebhookEvent is the event envelope delivered by the Evolution API webhook.
type WebhookEvent struct {
	Event string     `json:"event,omitempty"`
	Data  *EventData `json:"data"`
}

// EventData carries the message key and body inside a webhook event.
type EventData struct {
	Key     *MessageKey     `json:"key"`
	Message *MessageContent `json:"message"`
}

// MessageKey identifies the conversation a message belongs to.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

// MessageContent holds the supported message body shapes. Exactly one of the
// fields is expected to be set; any other shape is dropped by the webhook.
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *ImageMessage        `json:"imageMessage,omitempty"`
}

// ExtendedTextMessage is the body shape used for quoted/linked text messages.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// ImageMessage is the body shape used for images with an optional caption.
type ImageMessage struct {
	Caption string `json:"caption,omitempty"`
	URL     string `json:"url,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
