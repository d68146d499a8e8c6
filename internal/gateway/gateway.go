// ABOUTME: HTTP surface of the presence gateway: websocket endpoint, health, stats
// ABOUTME: Owns the server lifecycle; rooms and auth are injected collaborators

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridhouse/presence-gateway/internal/auth"
	"github.com/gridhouse/presence-gateway/internal/catalog"
	"github.com/gridhouse/presence-gateway/internal/config"
	"github.com/gridhouse/presence-gateway/internal/grid"
	"github.com/gridhouse/presence-gateway/internal/room"
)

// Gateway terminates websocket connections and routes each one into its room.
type Gateway struct {
	cfg        *config.Config
	verifier   auth.TokenVerifier
	registry   *room.Registry
	logger     *slog.Logger
	httpServer *http.Server

	upgrader websocket.Upgrader
}

// New wires a gateway over the given catalog reader and token verifier.
func New(cfg *config.Config, reader catalog.Reader, verifier auth.TokenVerifier, logger *slog.Logger) *Gateway {
	rules := grid.Rules{BlockOccupied: cfg.Room.BlockOccupiedCells}
	g := &Gateway{
		cfg:      cfg,
		verifier: verifier,
		registry: room.NewRegistry(reader, rules, logger),
		logger:   logger.With("component", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; identity
			// comes from the join token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Handler returns the gateway's HTTP routes. Exposed separately from Run so
// tests can mount it on httptest servers.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/healthz", g.handleHealthz)
	mux.HandleFunc("/stats", g.handleStats)
	return mux
}

// Run serves until ctx is canceled or the listener fails, then shuts down
// gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("listening", "http_addr", g.cfg.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutting down")
	case serveErr = <-errCh:
		g.logger.Error("http server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		// Graceful drain timed out; force the remaining websockets closed.
		_ = g.httpServer.Close()
	}
	return serveErr
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	newSession(g, conn).run()
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (g *Gateway) handleStats(w http.ResponseWriter, _ *http.Request) {
	rooms, members := g.registry.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"rooms":   rooms,
		"members": members,
	})
}
