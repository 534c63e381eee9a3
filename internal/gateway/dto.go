package gateway

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// maxPatchValueMM bounds patched dimensions before they reach the enforcer.
const maxPatchValueMM = 1000

var registerOnce sync.Once

// registerValidators adds the custom binding rules to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("machine_profile", func(fl validator.FieldLevel) bool {
			return models.IsMachineProfile(fl.Field().String())
		})
		_ = v.RegisterValidation("dimension_map", validateDimensionMap)
	})
}

func validateDimensionMap(fl validator.FieldLevel) bool {
	dims, ok := fl.Field().Interface().(map[string]float64)
	if !ok {
		return false
	}
	for field, value := range dims {
		if field == "" || math.IsNaN(value) || value <= 0 || value > maxPatchValueMM {
			return false
		}
	}
	return true
}

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	Prompt string `json:"prompt" binding:"required,min=3,max=2000" example:"I want a 2mm deep earring, in the shape of a heart."`
}

// AnswersRequest carries answers keyed by question id
type AnswersRequest struct {
	Answers map[string]any `json:"answers" binding:"required"`
}

// PatchSpecRequest overwrites dimensions directly
type PatchSpecRequest struct {
	DimensionsMM map[string]float64 `json:"dimensions_mm" binding:"required,dimension_map"`
}

// BuildRequest starts a build for a session
type BuildRequest struct {
	SessionID      string `json:"session_id" binding:"required"`
	MachineProfile string `json:"machine_profile" binding:"required,machine_profile" example:"A1_PLA_0.4"`
}

// SessionResponse represents the client-visible session state
type SessionResponse struct {
	SessionID     string                         `json:"session_id"`
	Status        models.SessionStatus           `json:"status"`
	Summary       string                         `json:"summary"`
	Questions     []models.ClarificationQuestion `json:"questions"`
	Specification *models.Specification          `json:"specification"`
	Adjustments   []models.Adjustment            `json:"adjustments"`
	ExpiresAt     time.Time                      `json:"expires_at"`
}

func newSessionResponse(s *models.Session) SessionResponse {
	questions := s.Questions
	if questions == nil {
		questions = []models.ClarificationQuestion{}
	}
	adjustments := s.Adjustments
	if adjustments == nil {
		adjustments = []models.Adjustment{}
	}
	return SessionResponse{
		SessionID:     s.ID,
		Status:        s.Status,
		Summary:       s.Summary,
		Questions:     questions,
		Specification: s.Specification,
		Adjustments:   adjustments,
		ExpiresAt:     s.ExpiresAt,
	}
}

// BuildResponse represents a build job without its storage paths
type BuildResponse struct {
	JobID          string             `json:"job_id"`
	SessionID      string             `json:"session_id"`
	Status         models.BuildStatus `json:"status"`
	Token          string             `json:"token"`
	Stage          string             `json:"stage"`
	Error          string             `json:"error,omitempty"`
	MachineProfile string             `json:"machine_profile"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	MeshURL        string             `json:"mesh_url,omitempty"`
	PackageURL     string             `json:"package_url,omitempty"`
	ReportURL      string             `json:"report_url,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
}

func newBuildResponse(j *models.BuildJob) BuildResponse {
	return BuildResponse{
		JobID:          j.ID,
		SessionID:      j.SessionID,
		Status:         j.Status,
		Token:          j.Token,
		Stage:          j.Stage,
		Error:          j.Error,
		MachineProfile: j.MachineProfile,
		FallbackReason: j.FallbackReason,
		MeshURL:        j.MeshURL,
		PackageURL:     j.PackageURL,
		ReportURL:      j.ReportURL,
		CreatedAt:      j.CreatedAt,
		ExpiresAt:      j.ExpiresAt,
	}
}

// mediaTypes maps artifact filenames to their content types.
var mediaTypes = map[string]string{
	models.FileMesh:    "model/stl",
	models.FilePackage: "application/vnd.ms-package.3dmanufacturing-3dmodel+xml",
	models.FileReport:  "application/json",
}
