package http

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/protocol"
)

// writeError maps domain errors onto HTTP statuses. Anything untyped is a
// request problem: everything the daemon can fail on internally is typed.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func classify(err error) (int, string) {
	var (
		spawnErr   *terminal.SpawnError
		protoErr   *protocol.Error
		rejected   *terminal.RejectedInput
		exhausted  *terminal.ResourceExhausted
		timeoutErr *terminal.TimeoutError
		ioErr      *terminal.IOError
	)

	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, terminal.ErrManagerClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.As(err, &spawnErr):
		return http.StatusUnprocessableEntity, "spawn_" + string(spawnErr.Reason)
	case errors.As(err, &protoErr):
		return http.StatusBadRequest, "protocol_error"
	case errors.As(err, &rejected):
		return http.StatusConflict, "rejected_input"
	case errors.As(err, &exhausted):
		return http.StatusTooManyRequests, "resource_exhausted"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &ioErr):
		return http.StatusBadGateway, "io_error"
	default:
		return http.StatusBadRequest, "invalid_request"
	}
}
