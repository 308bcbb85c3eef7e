package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"podcastflow/internal/logging"
	"podcastflow/internal/services"
)

const (
	fetchBatch       = 100
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	defaultPollWait  = 25 * time.Second
	maxPollWait      = 60 * time.Second
	maxClientMessage = 4096
)

// Server exposes hub channels to token holders over WebSocket and long-poll.
type Server struct {
	hub      *Hub
	tokens   *TokenIssuer
	logger   *slog.Logger
	upgrader websocket.Upgrader
	pollWait time.Duration
}

// NewServer constructs a subscription server.
func NewServer(hub *Hub, tokens *TokenIssuer, logger *slog.Logger) *Server {
	return &Server{
		hub:    hub,
		tokens: tokens,
		logger: logging.NewComponentLogger(logger, "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pollWait: defaultPollWait,
	}
}

// EventsResponse is the long-poll payload.
type EventsResponse struct {
	Events []Message `json:"events"`
	Next   uint64    `json:"next"`
}

// ServeEvents answers GET ?token=&since=&follow=. With follow set it waits
// up to the poll window for new messages.
func (s *Server) ServeEvents(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	follow := parseBool(r.URL.Query().Get("follow"))

	ctx := r.Context()
	if follow {
		wait := s.pollWait
		if expires := time.Until(claims.ExpiresAt.Time); expires < wait {
			wait = expires
		}
		if wait > maxPollWait {
			wait = maxPollWait
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	messages, next, err := s.hub.Fetch(ctx, claims.Channel, since, fetchBatch, follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: filterAllowed(claims, messages), Next: next})
}

// ServeWebSocket upgrades the request and streams allowed messages until the
// client disconnects or the token expires.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithDeadline(context.Background(), claims.ExpiresAt.Time)
	defer cancel()

	logger := s.logger.With(
		logging.String("channel", claims.Channel),
		logging.String(logging.FieldUserID, claims.Subject),
	)
	logger.Debug("websocket subscriber connected", logging.Int64("since", int64(since)))

	go s.readPump(conn, cancel)
	go s.pingPump(ctx, conn)

	for {
		messages, next, err := s.hub.Fetch(ctx, claims.Channel, since, fetchBatch, true)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired"),
					time.Now().Add(writeWait))
			}
			logger.Debug("websocket subscriber disconnected", logging.Error(err))
			return
		}
		since = next
		for _, msg := range filterAllowed(claims, messages) {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) pingPump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func filterAllowed(claims *Claims, messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if claims.Allows(msg.Channel, msg.Topic) {
			out = append(out, msg)
		}
	}
	return out
}

func parseSince(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "realtime", "parse since", "since must be a non-negative integer", err)
	}
	return value, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": services.Message(err),
		"kind":  services.Kind(err),
	})
}
