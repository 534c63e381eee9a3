package build

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// TokenIssuer signs job-scoped download tokens.
type TokenIssuer interface {
	IssueDownloadToken(jobID string, expiresAt time.Time) (string, error)
}

// NewJob creates a queued job record for sessionID.
func NewJob(sessionID, profile string, retention time.Duration, issuer TokenIssuer, now time.Time) (*models.BuildJob, error) {
	id := uuid.NewString()
	expiresAt := now.Add(retention)
	token, err := issuer.IssueDownloadToken(id, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue download token: %w", err)
	}
	return &models.BuildJob{
		ID:             id,
		SessionID:      sessionID,
		Status:         models.BuildQueued,
		Token:          token,
		Stage:          StageUnderstanding,
		MachineProfile: profile,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
	}, nil
}

// FileURL returns the token-scoped download URL of one artifact.
func FileURL(baseURL, jobID, filename, token string) string {
	return fmt.Sprintf("%s/api/v1/builds/%s/files/%s?token=%s",
		strings.TrimRight(baseURL, "/"), jobID, filename, url.QueryEscape(token))
}

// SetFileURLs fills the artifact URLs of job. The package URL is set only when
// hasPackage is true.
func SetFileURLs(job *models.BuildJob, baseURL string, hasPackage bool) {
	job.MeshURL = FileURL(baseURL, job.ID, models.FileMesh, job.Token)
	job.ReportURL = FileURL(baseURL, job.ID, models.FileReport, job.Token)
	job.PackageURL = ""
	if hasPackage {
		job.PackageURL = FileURL(baseURL, job.ID, models.FilePackage, job.Token)
	}
}
