// Package api provides the HTTP surface of the bakery bot.
//
// It exposes the Evolution API webhook endpoint that drives the
// conversational flows, service health and instance status endpoints, and a
// small quote administration API for the staff.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/saboresdadori/bakerybot/internal/evolution"
	"github.com/saboresdadori/bakerybot/internal/flow"
	"github.com/saboresdadori/bakerybot/internal/store"
)

// Default configuration constants
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":3000"
	// DefaultProcessTimeout bounds the background processing of one webhook
	// event, including the worst-case retry ceiling of the outbound send.
	DefaultProcessTimeout = 60 * time.Second
)

// Gateway is the subset of the Evolution client the server depends on,
// narrowed for testability.
type Gateway interface {
	SendText(ctx context.Context, number, text string) error
	ConnectionState(ctx context.Context) (json.RawMessage, error)
	ConfigureWebhook(ctx context.Context, url string) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr       string
	WebhookURL string
	SessionTTL time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithWebhookURL sets the public webhook URL registered with the gateway.
func WithWebhookURL(url string) Option {
	return func(o *Opts) {
		o.WebhookURL = url
	}
}

// WithSessionTTL overrides the conversational session idle threshold.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.SessionTTL = ttl
	}
}

// Server wires the webhook endpoint, the flow router, the quote store and
// the gateway client together.
type Server struct {
	gateway    Gateway
	router     *flow.Router
	sessions   *flow.InMemorySessionStore
	st         store.Store
	instance   string
	addr       string
	webhookURL string
	startedAt  time.Time
}

// NewServer creates a Server over the given collaborators.
func NewServer(gateway Gateway, router *flow.Router, sessions *flow.InMemorySessionStore, st store.Store, instance string, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		gateway:    gateway,
		router:     router,
		sessions:   sessions,
		st:         st,
		instance:   instance,
		addr:       addr,
		webhookURL: cfg.WebhookURL,
		startedAt:  time.Now(),
	}
}

// routes registers all handlers on a fresh mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/configure-webhook", s.configureWebhookHandler)
	mux.HandleFunc("/quotes", s.quotesHandler)
	mux.HandleFunc("/quotes/", s.quotesHandler)
	return mux
}

// Serve starts the HTTP server and blocks.
func (s *Server) Serve() error {
	slog.Info("API server listening", "addr", s.addr, "instance", s.instance)
	return http.ListenAndServe(s.addr, s.routes())
}

// Run assembles the gateway client, quote store, session store, router and
// server from the provided module options and starts serving.
func Run(evoOpts []evolution.Option, storeOpts []store.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	client, err := evolution.NewClient(evoOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize Evolution client: %w", err)
	}
	slog.Info("Evolution API client initialized", "instance", client.Instance())

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize quote store: %w", err)
	}
	defer st.Close()
	slog.Info("Quote store initialized")

	sessions := flow.NewInMemorySessionStore(cfg.SessionTTL)
	router := flow.NewRouter(sessions)
	srv := NewServer(client, router, sessions, st, client.Instance(), apiOpts...)

	// Webhook registration is best effort at startup; the endpoint stays
	// available for manual setup via POST /configure-webhook.
	if cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultProcessTimeout)
		err := client.ConfigureWebhook(ctx, cfg.WebhookURL)
		cancel()
		if err != nil {
			slog.Warn("Run: webhook registration failed, continuing", "error", err, "url", cfg.WebhookURL)
		}
	}

	return srv.Serve()
}
