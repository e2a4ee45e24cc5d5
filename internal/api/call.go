package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orpheus/internal/adapters/config"
	"orpheus/internal/adapters/telegram"
	"orpheus/internal/domain/caller"
	"orpheus/internal/domain/session"
	"orpheus/internal/ml/vad"
	"orpheus/internal/realtime"
	"orpheus/pkg/auth"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

const (
	callWriteTimeout = 10 * time.Second
	callPingInterval = 20 * time.Second
	callReadTimeout  = 60 * time.Second

	// Largest accepted caller frame: one second of PCM16 at 24kHz
	// leaves generous headroom.
	callReadLimit = 1 << 20
)

// SessionFactory builds a live session around a fresh call record.
// serverVAD picks upstream turn detection; false means the local VAD
// gate commits turns. Wired in main so the handler stays free of
// storage and upstream deps.
type SessionFactory func(rec *session.CallSession, serverVAD bool) *realtime.Session

// CallHandlerParams wires the inbound call endpoint
type CallHandlerParams struct {
	Auth     *auth.JWTService
	Callers  caller.Repository
	Manager  *realtime.Manager
	Sessions SessionFactory
	Notifier *telegram.Notifier
	Realtime config.RealtimeConfig
	VAD      config.VADConfig
}

// CallHandler serves /v1/call: it authenticates the caller, starts a
// session against the upstream model, and relays audio frames both ways
// over the caller's WebSocket.
type CallHandler struct {
	auth     *auth.JWTService
	callers  caller.Repository
	manager  *realtime.Manager
	sessions SessionFactory
	notifier *telegram.Notifier
	rtCfg    config.RealtimeConfig
	vadCfg   config.VADConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewCallHandler creates the call endpoint handler
func NewCallHandler(p CallHandlerParams) *CallHandler {
	return &CallHandler{
		auth:     p.Auth,
		callers:  p.Callers,
		manager:  p.Manager,
		sessions: p.Sessions,
		notifier: p.Notifier,
		rtCfg:    p.Realtime,
		vadCfg:   p.VAD,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Access is gated by the JWT, not the Origin header;
			// phone gateways don't send one at all.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Get().With("component", "call_handler"),
	}
}

// callControl is the JSON control frame format on the caller socket.
// Audio travels as binary frames; everything else is a control frame.
type callControl struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Warnw("Rejected unauthenticated call", "error", err, "remote", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	profile, err := h.callers.GetByID(r.Context(), claims.CallerID)
	if err != nil {
		if errors.Is(err, errors.ErrCallerNotFound) {
			h.log.Warnw("Rejected unprovisioned caller", "caller_id", claims.CallerID)
			writeJSONError(w, http.StatusForbidden, "unknown caller")
			return
		}
		h.log.Errorw("Failed to load caller profile", "caller_id", claims.CallerID, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "caller lookup failed")
		return
	}

	channel := claims.Channel
	if channel == "" {
		channel = "web"
	}

	detector := h.newDetector()

	rec := session.New(profile.ID, channel, h.rtCfg.Model, h.rtCfg.Voice)
	sess := h.sessions(rec, detector == nil)

	if err := h.manager.Add(sess); err != nil {
		if detector != nil {
			detector.Close()
		}
		if errors.Is(err, errors.ErrSessionLimit) {
			h.log.Warnw("Rejected call at session limit", "caller_id", profile.ID)
			h.alertSessionLimit()
			writeJSONError(w, http.StatusServiceUnavailable, "gateway at capacity, retry shortly")
			return
		}
		writeJSONError(w, http.StatusServiceUnavailable, "cannot accept call")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		h.log.Warnw("WebSocket upgrade failed", "caller_id", profile.ID, "error", err)
		h.manager.Remove(sess.ID())
		if detector != nil {
			detector.Close()
		}
		return
	}

	h.serve(r.Context(), conn, sess, detector)
}

// newDetector loads a VAD model for one call when local turn detection
// is configured. A load failure falls back to upstream turn detection
// rather than refusing the call.
func (h *CallHandler) newDetector() speechDetector {
	if !h.vadCfg.Enabled {
		return nil
	}
	detector, err := vad.NewDetector(h.vadCfg)
	if err != nil {
		h.log.Errorw("VAD unavailable, falling back to server turn detection", "error", err)
		return nil
	}
	return detector
}

// authenticate accepts the JWT from the Authorization header or, for
// browser clients that cannot set headers on WebSocket dials, from the
// token query parameter.
func (h *CallHandler) authenticate(r *http.Request) (*auth.Claims, error) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return h.auth.ValidateToken(token)
}

// serve runs the call until either side hangs up
func (h *CallHandler) serve(ctx context.Context, conn *websocket.Conn, sess *realtime.Session, detector speechDetector) {
	log := h.log.With("call_id", sess.ID().String())
	cw := newCallConn(conn)
	defer h.manager.Remove(sess.ID())

	// Model audio flows back to the caller as binary frames
	sess.OnAudio(func(pcm []byte) {
		if err := cw.writeBinary(pcm); err != nil {
			log.Debugw("Failed to relay audio to caller", "error", err)
		}
	})

	if err := sess.Start(ctx); err != nil {
		log.Errorw("Failed to start session", "error", err)
		if detector != nil {
			detector.Close()
		}
		cw.writeControl(callControl{Type: "call.failed", Reason: "cannot reach speech service"})
		cw.close()
		sess.Fail("upstream connect failed")
		<-sess.Done()
		h.alertIfFailed(sess)
		return
	}

	cw.writeControl(callControl{Type: "call.ready", CallID: sess.ID().String()})
	log.Infow("Call connected")

	// Close the caller socket once the session winds down, which also
	// unblocks the read loop below.
	go func() {
		<-sess.Done()
		snap := sess.Snapshot()
		cw.writeControl(callControl{Type: "call.ended", Reason: snap.EndReason})
		cw.close()
	}()

	go cw.pingLoop(sess.Done())

	h.readLoop(cw, sess, detector, log)

	<-sess.Done()
	h.alertIfFailed(sess)
	log.Infow("Call finished")
}

// readLoop pumps caller frames into the session until the socket dies
// or the call ends
func (h *CallHandler) readLoop(cw *callConn, sess *realtime.Session, detector speechDetector, log *logger.Logger) {
	var gate *vadGate
	if detector != nil {
		gate = newVADGate(detector, sess.CommitAudio)
		defer gate.Close()
	}

	for {
		msgType, data, err := cw.read()
		if err != nil {
			select {
			case <-sess.Done():
				// Session ended first; the socket was closed on purpose
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					sess.End("caller hung up")
				} else {
					log.Debugw("Caller socket read failed", "error", err)
					sess.End("caller connection lost")
				}
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if gate != nil {
				gate.Feed(data)
			}
			if err := sess.AppendAudio(data); err != nil {
				log.Debugw("Failed to forward caller audio", "error", err)
			}

		case websocket.TextMessage:
			var ctrl callControl
			if err := json.Unmarshal(data, &ctrl); err != nil {
				log.Debugw("Ignoring malformed control frame", "error", err)
				continue
			}
			if ctrl.Type == "end" {
				sess.End("caller hung up")
				return
			}
		}
	}
}

func (h *CallHandler) alertSessionLimit() {
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.notifier.SessionLimitReached(ctx, h.manager.ActiveCount()); err != nil {
		h.log.Warnw("Failed to send session limit alert", "error", err)
	}
}

// alertIfFailed raises an operator alert for calls that ended abnormally
func (h *CallHandler) alertIfFailed(sess *realtime.Session) {
	snap := sess.Snapshot()
	if snap.State != session.StateFailed {
		return
	}
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.notifier.CallFailed(ctx, telegram.CallFailedData{
		CallID:    snap.ID,
		CallerID:  snap.CallerID,
		Reason:    snap.EndReason,
		Duration:  snap.Duration(),
		ToolCalls: snap.ToolCalls,
	})
	if err != nil {
		h.log.Warnw("Failed to send call failure alert", "call_id", snap.ID, "error", err)
	}

	if open, ok := sess.UpstreamStats()["circuit_open"].(bool); ok && open {
		if err := h.notifier.UpstreamCircuitOpen(ctx, snap.ID, snap.EndReason); err != nil {
			h.log.Warnw("Failed to send circuit alert", "call_id", snap.ID, "error", err)
		}
	}
}

// callConn serializes writes to one caller socket. gorilla allows a
// single concurrent writer; audio relay, control frames, and pings all
// come from different goroutines.
type callConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newCallConn(conn *websocket.Conn) *callConn {
	conn.SetReadLimit(callReadLimit)
	conn.SetReadDeadline(time.Now().Add(callReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(callReadTimeout))
	})
	return &callConn{conn: conn}
}

func (c *callConn) read() (int, []byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(callReadTimeout))
	return c.conn.ReadMessage()
}

func (c *callConn) writeBinary(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(callWriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *callConn) writeControl(ctrl callControl) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(callWriteTimeout))
	return c.conn.WriteJSON(ctrl)
}

// pingLoop keeps quiet callers alive: pongs extend the read deadline
func (c *callConn) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(callPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(callWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *callConn) close() {
	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	c.conn.Close()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
