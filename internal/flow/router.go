// Package flow provides the flow router: the state machine that decides the
// reply for each inbound message.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/saboresdadori/bakerybot/internal/models"
)

// Quote heuristic constants: a message in the quote state counts as a real
// quote when it carries the form label, is long enough to be a description,
// or includes a reference image.
const (
	// QuoteLabel is the normalized label prefix of the suggested quote form.
	QuoteLabel = "produto:"
	// QuoteMinLength is the character count above which a message in the
	// quote state is treated as a quote description. Counted in runes so
	// accented text is not penalized by its UTF-8 encoding.
	QuoteMinLength = 50
)

// Result is the outcome of routing one inbound message: exactly one reply,
// plus a signal to persist the message as a quote request.
type Result struct {
	Reply     string
	SaveQuote bool
}

// Router routes inbound messages through the flow catalog and the sender's
// session state.
type Router struct {
	sessions SessionStore
	matcher  *Matcher
}

// NewRouter creates a Router over the given session store and the default
// flow catalog.
func NewRouter(sessions SessionStore) *Router {
	return &Router{sessions: sessions, matcher: NewMatcher()}
}

// Route processes one inbound message and returns the reply plus the
// quote-persistence signal. Every invocation produces exactly one reply and
// at most one state transition; the router itself performs no I/O beyond the
// session store.
func (r *Router) Route(ctx context.Context, msg models.IncomingMessage) Result {
	normalized := Normalize(msg.Text)
	current := r.sessions.Get(msg.Sender)
	slog.Debug("Router.Route: processing message", "sender", msg.Sender, "state", current, "has_image", msg.HasImage, "length", len(msg.Text))

	// Trigger matching wins over any prior state.
	if f := r.matcher.Match(normalized); f != nil {
		r.sessions.Set(msg.Sender, f.State)
		slog.Info("Router.Route: flow triggered", "sender", msg.Sender, "flow", f.Name)
		return Result{Reply: f.Reply}
	}

	if current == StateQuote {
		isQuote := strings.Contains(normalized, QuoteLabel) ||
			utf8.RuneCountInString(msg.Text) > QuoteMinLength ||
			msg.HasImage
		if isQuote {
			r.sessions.Set(msg.Sender, StateNone)
			slog.Info("Router.Route: quote captured", "sender", msg.Sender, "has_image", msg.HasImage)
			return Result{Reply: ReplyQuoteReceived, SaveQuote: true}
		}
		// Heuristic miss falls through to the generic reply. The state stays
		// ORCAMENTO so the sender can complete the quote on the next message.
	}

	if current == StateAgent {
		// No reset here: the sender stays with the team until a trigger
		// fires or the session idles out.
		slog.Debug("Router.Route: forwarding to agent", "sender", msg.Sender)
		return Result{Reply: ReplyForwarded}
	}

	slog.Debug("Router.Route: message not understood", "sender", msg.Sender)
	return Result{Reply: ReplyNotUnderstood}
}
