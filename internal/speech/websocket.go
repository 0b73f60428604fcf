package speech

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Client message types.
const (
	MsgInterim = "interim"
	MsgFinal   = "final"
	MsgStop    = "stop"
	MsgPing    = "ping"
)

// Server message types.
const (
	MsgReady      = "ready"
	MsgTranscript = "transcript"
	MsgStopped    = "stopped"
	MsgPong       = "pong"
	MsgError      = "error"
)

// ClientMessage is sent by the browser's recognizer.
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerMessage reports the draft after each recognized segment.
type ServerMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Symptoms   string `json:"symptoms,omitempty"`
	Listening  bool   `json:"listening"`
	Error      string `json:"error,omitempty"`
}

// Sessions resolves session keys.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Handler upgrades /ws/speech requests. Listening is on for as long as the
// stream is open; final segments are appended to the draft, interim ones are
// echoed back only.
type Handler struct {
	sessions      Sessions
	conns         *Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a speech WebSocket handler.
func NewHandler(sessions Sessions, conns *Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		conns:         conns,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.SessionKeyFromContext(r.Context())
	slog.Info("Speech connection request", "session_id", key, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", key)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "speech ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", key)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, ok := h.sessions.Get(key)
	if !ok {
		h.send(ctx, ws, ServerMessage{Type: MsgError, Error: "session_not_found"})
		return
	}

	// Registering first means a replaced stream that ends from here on no
	// longer owns the listening flag.
	h.conns.Register(key, ws)
	if err := sess.SetListening(true); err != nil {
		h.conns.Unregister(key, ws)
		h.send(ctx, ws, ServerMessage{Type: MsgError, Error: "not_on_dashboard"})
		return
	}
	defer func() {
		if h.conns.Unregister(key, ws) {
			// The session may have left the dashboard meanwhile.
			_ = sess.SetListening(false)
		}
	}()

	h.send(ctx, ws, ServerMessage{Type: MsgReady, Listening: true})
	h.readLoop(ctx, ws, sess, key)
	slog.Info("Speech stream ended", "session_id", key)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sess *session.Session, key string) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Speech stream closed by client", "session_id", key)
			} else {
				slog.Warn("Speech stream read error", "error", err, "session_id", key)
			}
			return
		}

		switch msg.Type {
		case MsgInterim:
			h.send(ctx, ws, ServerMessage{Type: MsgInterim, Text: msg.Text, Listening: true})
		case MsgFinal:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if err := sess.AppendSpeech(msg.Text); err != nil {
				h.send(ctx, ws, ServerMessage{Type: MsgError, Error: "not_on_dashboard"})
				return
			}
			snap := sess.Snapshot()
			out := ServerMessage{Type: MsgTranscript, Listening: true}
			if snap.Draft != nil {
				out.Transcript = snap.Draft.VoiceTranscript
				out.Symptoms = snap.Draft.Symptoms
			}
			h.send(ctx, ws, out)
		case MsgStop:
			_ = sess.SetListening(false)
			h.send(ctx, ws, ServerMessage{Type: MsgStopped})
			return
		case MsgPing:
			h.send(ctx, ws, ServerMessage{Type: MsgPong, Listening: true})
		default:
			slog.Debug("Ignoring unknown speech message", "type", msg.Type, "session_id", key)
		}
	}
}

func (h *Handler) send(ctx context.Context, ws *websocket.Conn, msg ServerMessage) {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, msg); err != nil {
		slog.Debug("Failed to send speech message", "type", msg.Type, "error", err)
	}
}
