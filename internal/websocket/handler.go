package websocket

import (
	"log/slog"
	"net/http"

	"cryptorecs/internal/config"
	apperrors "cryptorecs/internal/errors"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests and attaches the connection to a Hub
type Handler struct {
	hub          *Hub
	cfg          config.WebSocketConfig
	upgrader     websocket.Upgrader
	errorHandler *apperrors.ErrorHandler
	base         *slog.Logger
	logger       *slog.Logger
}

// NewHandler creates the upgrade handler. Requests without an Origin header
// are accepted; otherwise the origin must be listed in allowedOrigins.
// A "*" entry allows any origin.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *Handler {
	h := &Handler{
		hub:          hub,
		cfg:          cfg,
		errorHandler: errorHandler,
		base:         logger,
		logger:       logger.With(slog.String("component", "websocket.handler")),
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			h.logger.WarnContext(r.Context(), "origin_rejected",
				slog.String("origin", origin))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.errorHandler.HandleError(w, r, apperrors.NewWithDetails(status,
				apperrors.ErrWebSocketUpgrade.ErrorCode, apperrors.ErrWebSocketUpgrade.Message, reason.Error()))
		},
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered through its Error callback
		return
	}

	client := NewClient(h.hub, NewConnectionWrapper(conn), middleware.GetReqID(r.Context()), h.cfg, h.base)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
