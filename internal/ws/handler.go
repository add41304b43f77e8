package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-relay/backend/pkg/errors"
	"chat-relay/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler upgrades GET /ws requests and hands the connection to the Relay
type Handler struct {
	relay    *Relay
	settings Settings
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler. An empty origin list, or one
// containing "*", accepts every origin.
func NewHandler(relay *Relay, settings Settings, allowedOrigins []string) *Handler {
	return &Handler{
		relay:    relay,
		settings: settings,
		upgrader: websocket.Upgrader{
			CheckOrigin:      originChecker(allowedOrigins),
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// ServeWS blocks for the life of the connection
func (h *Handler) ServeWS(c *gin.Context) {
	log := logger.FromContext(c)

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}

	err = h.relay.Serve(c.Request.Context(), NewConn(wsConn, h.settings))
	if errors.IsKind(err, errors.KindSetup) {
		log.LogError(err, "Relay setup failed", "remote_addr", c.ClientIP())
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if lo.ContainsBy(allowed, func(o string) bool { return strings.EqualFold(o, origin) }) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
