package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
	"github.com/bizmatters/maker-orchestrator/internal/orchestration"
)

var handlerTracer = otel.Tracer("gateway-handler")

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	service      *orchestration.Service
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewHandler creates a new gateway handler
func NewHandler(service *orchestration.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		logger:       logger.With(zap.String("component", "gateway")),
		pollInterval: 500 * time.Millisecond,
	}
}

// WithPollInterval sets how often the progress stream re-reads the job.
func (h *Handler) WithPollInterval(d time.Duration) *Handler {
	if d > 0 {
		h.pollInterval = d
	}
	return h
}

// CreateSession godoc
// @Summary Start a design session
// @Description Interpret a free-text prompt into a specification and clarification questions
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Prompt"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Router /v1/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	ctx, span := handlerTracer.Start(c.Request.Context(), "gateway.create_session")
	defer span.End()

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.service.CreateSession(ctx, req.Prompt)
	if err != nil {
		span.RecordError(err)
		message := "Unable to create session"
		if errors.Is(err, models.ErrTimeout) {
			message = "Timed out while analysing request"
		}
		h.writeError(c, err, message)
		return
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.String("session.status", string(session.Status)))

	c.JSON(http.StatusCreated, newSessionResponse(session))
}

// GetSession godoc
// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Session not found")
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// SubmitAnswers godoc
// @Summary Answer clarification questions
// @Description Merge answers into the session and re-evaluate the specification
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body AnswersRequest true "Answers keyed by question id"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Router /v1/sessions/{id}/answers [post]
func (h *Handler) SubmitAnswers(c *gin.Context) {
	ctx, span := handlerTracer.Start(c.Request.Context(), "gateway.submit_answers")
	defer span.End()

	var req AnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.service.SubmitAnswers(ctx, c.Param("id"), req.Answers)
	if err != nil {
		span.RecordError(err)
		h.writeError(c, err, "Unable to apply answers")
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// PatchSpecification godoc
// @Summary Edit dimensions directly
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body PatchSpecRequest true "Dimensions in millimetres"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/sessions/{id}/spec [patch]
func (h *Handler) PatchSpecification(c *gin.Context) {
	var req PatchSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.service.PatchSpecification(c.Request.Context(), c.Param("id"), req.DimensionsMM)
	if err != nil {
		h.writeError(c, err, "Unable to update specification")
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

// StartBuild godoc
// @Summary Start a build
// @Description Queue mesh generation, slicing and packaging for a session
// @Tags builds
// @Accept json
// @Produce json
// @Param request body BuildRequest true "Session and machine profile"
// @Success 202 {object} BuildResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /v1/builds [post]
func (h *Handler) StartBuild(c *gin.Context) {
	ctx, span := handlerTracer.Start(c.Request.Context(), "gateway.start_build")
	defer span.End()

	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	job, err := h.service.StartBuild(ctx, req.SessionID, req.MachineProfile)
	if err != nil {
		span.RecordError(err)
		h.writeError(c, err, "Unable to start build")
		return
	}
	span.SetAttributes(attribute.String("job.id", job.ID), attribute.String("job.profile", job.MachineProfile))

	c.JSON(http.StatusAccepted, newBuildResponse(job))
}

// GetBuild godoc
// @Summary Get build status
// @Tags builds
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} BuildResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/builds/{id} [get]
// @Router /v1/builds/{id}/artifacts [get]
func (h *Handler) GetBuild(c *gin.Context) {
	job, err := h.service.GetBuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Job not found")
		return
	}
	c.JSON(http.StatusOK, newBuildResponse(job))
}

// ResolveBuild aborts with 404 when the job named by :id is unknown or
// expired. It runs ahead of the token check so an expired job is purged and
// reported as gone rather than forbidden.
func (h *Handler) ResolveBuild(c *gin.Context) {
	if _, err := h.service.GetBuild(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "Job not found")
		c.Abort()
		return
	}
	c.Next()
}

// DownloadArtifact godoc
// @Summary Download a build artifact
// @Tags builds
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Param filename path string true "model.stl, model.3mf or report.json"
// @Param token query string true "Download token"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/builds/{id}/files/{filename} [get]
func (h *Handler) DownloadArtifact(c *gin.Context) {
	filename := c.Param("filename")
	path, err := h.service.OpenArtifact(c.Request.Context(), c.Param("id"), filename, c.Query("token"))
	if err != nil {
		h.writeError(c, err, "Artifact unavailable")
		return
	}

	if mediaType, ok := mediaTypes[filename]; ok {
		c.Header("Content-Type", mediaType)
	}
	c.FileAttachment(path, filename)
}
