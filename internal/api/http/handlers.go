package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/TermStream/internal/domain/profile"
	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/protocol"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
	"github.com/GriffinCanCode/TermStream/internal/shared/validation"
)

// Handler serves the session control plane.
type Handler struct {
	manager  *terminal.Manager
	profiles *profile.Store
	log      *logging.Logger
	started  time.Time
}

// NewHandler creates the REST handler set.
func NewHandler(manager *terminal.Manager, profiles *profile.Store, log *logging.Logger) *Handler {
	if profiles == nil {
		profiles = profile.EmptyStore()
	}
	return &Handler{
		manager:  manager,
		profiles: profiles,
		log:      log.Named("http"),
		started:  time.Now(),
	}
}

// createRequest is the JSON body for session creation. All fields are
// optional; a named profile supplies defaults and explicit fields win.
type createRequest struct {
	Shell   string            `json:"shell"`
	Args    []string          `json:"args"`
	Cwd     string            `json:"cwd"`
	Env     map[string]string `json:"env"`
	Rows    uint16            `json:"rows"`
	Cols    uint16            `json:"cols"`
	Title   string            `json:"title"`
	Profile string            `json:"profile"`
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var body createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, &protocol.Error{Field: "body", Reason: err.Error()})
			return
		}
	}

	req := terminal.CreateRequest{
		Shell:   body.Shell,
		Args:    body.Args,
		Cwd:     body.Cwd,
		Env:     body.Env,
		Rows:    body.Rows,
		Cols:    body.Cols,
		Title:   body.Title,
		Profile: body.Profile,
	}

	if body.Profile != "" {
		preset, ok := h.profiles.Resolve(body.Profile)
		if !ok {
			writeError(c, &protocol.Error{Field: "profile", Reason: "unknown profile: " + body.Profile})
			return
		}
		req = applyProfile(req, preset)
	}

	status, err := h.manager.Create(req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, status)
}

// applyProfile fills unset request fields from a profile. Explicit request
// values always win.
func applyProfile(req terminal.CreateRequest, p profile.Profile) terminal.CreateRequest {
	if req.Shell == "" {
		req.Shell = p.Shell
	}
	if len(req.Args) == 0 {
		req.Args = p.Args
	}
	if req.Cwd == "" {
		req.Cwd = p.Cwd
	}
	if req.Rows == 0 {
		req.Rows = p.Rows
	}
	if req.Cols == 0 {
		req.Cols = p.Cols
	}
	if req.Title == "" {
		req.Title = p.Title
	}
	if len(p.Env) > 0 {
		merged := make(map[string]string, len(p.Env)+len(req.Env))
		for k, v := range p.Env {
			merged[k] = v
		}
		for k, v := range req.Env {
			merged[k] = v
		}
		req.Env = merged
	}
	return req
}

// ListSessions handles GET /sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.manager.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	status, err := h.manager.Status(sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// DestroySession handles DELETE /sessions/:id
func (h *Handler) DestroySession(c *gin.Context) {
	if err := h.manager.Destroy(sessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"destroyed": true})
}

// RestartSession handles POST /sessions/:id/restart
func (h *Handler) RestartSession(c *gin.Context) {
	sid := sessionID(c)
	if err := h.manager.Restart(sid); err != nil {
		writeError(c, err)
		return
	}
	status, err := h.manager.Status(sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// WriteInput handles POST /sessions/:id/input
func (h *Handler) WriteInput(c *gin.Context) {
	var frame protocol.InputFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		writeError(c, &protocol.Error{Field: "body", Reason: err.Error()})
		return
	}

	n, err := h.writeFrame(sessionID(c), &frame)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": n})
}

// batchRequest is the JSON body for batched input.
type batchRequest struct {
	Inputs []protocol.InputFrame `json:"inputs"`
}

// WriteInputBatch handles POST /sessions/:id/input/batch. Frames are written
// in order; the first failure stops the batch and reports how many were
// accepted.
func (h *Handler) WriteInputBatch(c *gin.Context) {
	var body batchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, &protocol.Error{Field: "body", Reason: err.Error()})
		return
	}
	if len(body.Inputs) == 0 {
		writeError(c, &protocol.Error{Field: "inputs", Reason: "batch is empty"})
		return
	}
	if len(body.Inputs) > validation.MaxBatchInputs {
		writeError(c, &terminal.ResourceExhausted{Resource: "batch inputs", Limit: validation.MaxBatchInputs})
		return
	}

	sid := sessionID(c)
	written := 0
	var total int
	for i := range body.Inputs {
		n, err := h.writeFrame(sid, &body.Inputs[i])
		if err != nil {
			status, code := classify(err)
			c.JSON(status, gin.H{
				"error":    err.Error(),
				"code":     code,
				"accepted": written,
			})
			return
		}
		written++
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"accepted": written, "written": total})
}

// writeFrame resolves one input frame and submits it.
func (h *Handler) writeFrame(sid id.SessionID, frame *protocol.InputFrame) (int, error) {
	data, err := frame.Bytes()
	if err != nil {
		return 0, err
	}
	if len(data) > validation.MaxInputSize {
		return 0, &terminal.ResourceExhausted{Resource: "input frame", Limit: validation.MaxInputSize}
	}
	if err := h.manager.Write(sid, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Control handles POST /sessions/:id/control
func (h *Handler) Control(c *gin.Context) {
	var msg protocol.ControlMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, &protocol.Error{Field: "body", Reason: err.Error()})
		return
	}
	if err := msg.Validate(); err != nil {
		writeError(c, err)
		return
	}

	op, ok := controlOp(msg.Type)
	if !ok {
		writeError(c, &protocol.Error{Field: "control", Reason: "unknown control type: " + msg.Type})
		return
	}

	err := h.manager.Control(sessionID(c), terminal.ControlMessage{
		Op:   op,
		Rows: msg.Rows,
		Cols: msg.Cols,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": msg.Type})
}

// resizeRequest is the JSON body for the resize convenience endpoint.
type resizeRequest struct {
	Rows uint16 `json:"rows" binding:"required"`
	Cols uint16 `json:"cols" binding:"required"`
}

// Resize handles POST /sessions/:id/resize
func (h *Handler) Resize(c *gin.Context) {
	var body resizeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, &protocol.Error{Field: "body", Reason: err.Error()})
		return
	}

	err := h.manager.Control(sessionID(c), terminal.ControlMessage{
		Op:   terminal.OpResize,
		Rows: body.Rows,
		Cols: body.Cols,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": body.Rows, "cols": body.Cols})
}

// Scrollback handles GET /sessions/:id/scrollback
func (h *Handler) Scrollback(c *gin.Context) {
	sid := sessionID(c)
	data, err := h.manager.Scrollback(sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sid.String(),
		"payload":    protocol.EncodePayload(data),
		"bytes":      len(data),
	})
}

// Transcript handles GET /sessions/:id/transcript
func (h *Handler) Transcript(c *gin.Context) {
	path, err := h.manager.TranscriptPath(sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, sessionID(c).String()+".log")
}

// ListProfiles handles GET /profiles
func (h *Handler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"profiles": h.profiles.Names(),
		"count":    h.profiles.Len(),
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	stats := h.manager.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": stats.Sessions,
		"by_state": stats.ByState,
		"uptime_s": time.Since(h.started).Seconds(),
	})
}

// Root handles GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "termstream",
		"endpoints": gin.H{
			"sessions": "/sessions",
			"stream":   "/sessions/:id/stream",
			"health":   "/health",
			"metrics":  "/metrics",
		},
	})
}

func sessionID(c *gin.Context) id.SessionID {
	return id.SessionID(c.Param("id"))
}

func controlOp(typ string) (terminal.ControlOp, bool) {
	switch typ {
	case protocol.ControlResize:
		return terminal.OpResize, true
	case protocol.ControlPause:
		return terminal.OpPause, true
	case protocol.ControlResume:
		return terminal.OpResume, true
	case protocol.ControlRestart:
		return terminal.OpRestart, true
	case protocol.ControlKill:
		return terminal.OpKill, true
	default:
		return 0, false
	}
}
