package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermStream/internal/protocol"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
	"github.com/GriffinCanCode/TermStream/internal/shared/validation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Input frames are JSON with base64 payloads; allow headroom over the
	// raw input limit.
	maxMessageSize = int64(validation.MaxInputSize) * 2
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS layer
	},
}

// Handler serves the streaming data plane: one WebSocket per subscriber,
// output frames flowing out and input/control frames flowing in.
type Handler struct {
	manager *terminal.Manager
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates the WebSocket handler.
func NewHandler(manager *terminal.Manager, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		manager: manager,
		log:     log.Named("ws"),
		metrics: metrics,
	}
}

// conn wraps one upgraded connection. The write lock serializes the output
// pump, ping loop, and read-side error frames.
type conn struct {
	id string
	ws *websocket.Conn

	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) writeMessage(m *protocol.Message) error {
	data, err := protocol.Marshal(m)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// Stream handles GET /sessions/:id/stream: upgrades the connection,
// attaches a subscriber (scrollback replays first), and pumps until either
// side goes away.
func (h *Handler) Stream(c *gin.Context) {
	sid := id.SessionID(c.Param("id"))
	if _, err := h.manager.Status(sid); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "session_not_found"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub, err := h.manager.Subscribe(sid)
	if err != nil {
		_ = ws.Close()
		return
	}

	cn := &conn{id: uuid.NewString(), ws: ws}
	log := h.log.With(
		zap.String("conn", cn.id),
		zap.String("session", sid.String()),
		zap.String("subscriber", sub.ID.String()),
	)
	log.Info("stream attached")

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		h.writePump(ctx, cn, sid, sub)
		cancel()
	}()
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, cn)
	}()

	// Read pump runs on the request goroutine.
	h.readPump(cn, sid, log)
	cancel()
	sub.Close()
	wg.Wait()
	_ = ws.Close()

	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	log.Info("stream detached", zap.Uint64("dropped", sub.Dropped()))
}

// writePump converts deliveries to wire messages. Exits when the
// subscription closes (session destroyed) or ctx is cancelled (client gone).
func (h *Handler) writePump(ctx context.Context, cn *conn, sid id.SessionID, sub *terminal.Subscription) {
	for {
		d, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, terminal.ErrSubscriptionClosed) {
				_ = cn.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			}
			return
		}

		msg, kind := h.toMessage(sid, d)
		if msg == nil {
			continue
		}
		if err := cn.writeMessage(msg); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("out", kind)
		}
	}
}

// toMessage maps one delivery onto the wire envelope.
func (h *Handler) toMessage(sid id.SessionID, d terminal.Delivery) (*protocol.Message, string) {
	switch {
	case d.Frame != nil:
		return &protocol.Message{
			Type: protocol.TypeOutput,
			Output: &protocol.OutputFrame{
				SessionID: sid.String(),
				Seq:       d.Frame.Seq,
				Payload:   protocol.EncodePayload(d.Frame.Data),
				Replay:    d.Frame.Replay,
				Timestamp: d.Frame.Time,
			},
		}, protocol.TypeOutput

	case d.Gap != nil:
		if h.metrics != nil {
			h.metrics.RecordDroppedFrames(d.Gap.Dropped)
		}
		return &protocol.Message{
			Type: protocol.TypeGap,
			Gap: &protocol.GapMarker{
				SessionID: sid.String(),
				Dropped:   d.Gap.Dropped,
				ResumeSeq: d.Gap.ResumeSeq,
				Timestamp: d.Gap.Time,
			},
		}, protocol.TypeGap

	case d.Event != nil:
		return &protocol.Message{
			Type: protocol.TypeLifecycle,
			Lifecycle: &protocol.LifecycleEvent{
				SessionID: sid.String(),
				Event:     string(d.Event.Kind),
				ExitCode:  d.Event.ExitCode,
				Error:     d.Event.Reason,
				Rows:      d.Event.Rows,
				Cols:      d.Event.Cols,
				Timestamp: d.Event.Time,
			},
		}, protocol.TypeLifecycle
	}
	return nil, ""
}

// readPump accepts input and control frames. Malformed or rejected frames
// produce an error frame on the stream; the connection stays up.
func (h *Handler) readPump(cn *conn, sid id.SessionID, log *zap.Logger) {
	cn.ws.SetReadLimit(maxMessageSize)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			h.sendError(cn, "protocol_error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeInput:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("in", protocol.TypeInput)
			}
			raw, err := msg.Input.Bytes()
			if err != nil {
				h.sendError(cn, "protocol_error", err)
				continue
			}
			if err := h.manager.Write(sid, raw); err != nil {
				h.sendError(cn, "rejected_input", err)
			}

		case protocol.TypeControl:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("in", protocol.TypeControl)
			}
			if err := h.applyControl(sid, msg.Control); err != nil {
				h.sendError(cn, "control_failed", err)
			}

		default:
			h.sendError(cn, "protocol_error",
				&protocol.Error{Field: "type", Reason: "clients may only send input and control frames"})
		}
	}
}

func (h *Handler) applyControl(sid id.SessionID, ctl *protocol.ControlMessage) error {
	var op terminal.ControlOp
	switch ctl.Type {
	case protocol.ControlResize:
		op = terminal.OpResize
	case protocol.ControlPause:
		op = terminal.OpPause
	case protocol.ControlResume:
		op = terminal.OpResume
	case protocol.ControlRestart:
		op = terminal.OpRestart
	case protocol.ControlKill:
		op = terminal.OpKill
	default:
		return &protocol.Error{Field: "control", Reason: "unknown control type: " + ctl.Type}
	}
	return h.manager.Control(sid, terminal.ControlMessage{Op: op, Rows: ctl.Rows, Cols: ctl.Cols})
}

func (h *Handler) sendError(cn *conn, code string, err error) {
	_ = cn.writeMessage(&protocol.Message{
		Type:  protocol.TypeError,
		Error: &protocol.ErrorFrame{Code: code, Message: err.Error()},
	})
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline.
func (h *Handler) pingLoop(ctx context.Context, cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
