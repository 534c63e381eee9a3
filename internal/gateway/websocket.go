package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressEvent is one frame on the build progress stream.
type ProgressEvent struct {
	JobID  string             `json:"job_id"`
	Status models.BuildStatus `json:"status"`
	Stage  string             `json:"stage"`
	Error  string             `json:"error,omitempty"`
	Build  *BuildResponse     `json:"build,omitempty"`
}

func progressOf(job *models.BuildJob) ProgressEvent {
	ev := ProgressEvent{JobID: job.ID, Status: job.Status, Stage: job.Stage, Error: job.Error}
	if job.Status.Terminal() {
		resp := newBuildResponse(job)
		ev.Build = &resp
	}
	return ev
}

// StreamBuild handles WebSocket /api/v1/builds/:id/stream
// @Summary Stream build progress
// @Description Sends a frame whenever the job's status or stage changes and closes once it is terminal
// @Tags builds
// @Param id path string true "Job ID"
// @Success 101 "Switching Protocols"
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/builds/{id}/stream [get]
func (h *Handler) StreamBuild(c *gin.Context) {
	ctx, span := handlerTracer.Start(c.Request.Context(), "gateway.stream_build")
	defer span.End()

	jobID := c.Param("id")
	span.SetAttributes(attribute.String("job.id", jobID))

	job, err := h.service.GetBuild(ctx, jobID)
	if err != nil {
		h.writeError(c, err, "Job not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Warn("websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	// Client frames are ignored; reading detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var last ProgressEvent
	sent := false
	for {
		ev := progressOf(job)
		if !sent || ev.Status != last.Status || ev.Stage != last.Stage {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("progress stream write failed", zap.String("job_id", jobID), zap.Error(err))
				return
			}
			last, sent = ev, true
		}
		if job.Status.Terminal() {
			closeStream(conn, websocket.CloseNormalClosure, "build "+string(job.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}

		job, err = h.service.GetBuild(ctx, jobID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				closeStream(conn, websocket.CloseNormalClosure, "build expired")
			} else {
				h.logger.Error("progress stream lookup failed", zap.String("job_id", jobID), zap.Error(err))
				closeStream(conn, websocket.CloseInternalServerErr, "lookup failed")
			}
			return
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
