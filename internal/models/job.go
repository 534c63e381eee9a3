package models

import "time"

// BuildStatus represents the status of a build job
type BuildStatus string

const (
	BuildQueued    BuildStatus = "queued"
	BuildRunning   BuildStatus = "running"
	BuildCompleted BuildStatus = "completed"
	BuildFailed    BuildStatus = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s BuildStatus) Terminal() bool {
	return s == BuildCompleted || s == BuildFailed
}

// Artifact filenames exposed for download.
const (
	FileMesh    = "model.stl"
	FilePackage = "model.3mf"
	FileReport  = "report.json"
)

// BuildJob is the record of one asynchronous build.
type BuildJob struct {
	ID             string      `json:"job_id"`
	SessionID      string      `json:"session_id"`
	Status         BuildStatus `json:"status"`
	Token          string      `json:"token"`
	Stage          string      `json:"stage"`
	Error          string      `json:"error,omitempty"`
	MachineProfile string      `json:"machine_profile"`
	FallbackReason string      `json:"fallback_reason,omitempty"`
	MeshPath       string      `json:"mesh_path,omitempty"`
	PackagePath    string      `json:"package_path,omitempty"`
	ReportPath     string      `json:"report_path,omitempty"`
	MeshURL        string      `json:"mesh_url,omitempty"`
	PackageURL     string      `json:"package_url,omitempty"`
	ReportURL      string      `json:"report_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// Clone returns a copy of the job record.
func (j *BuildJob) Clone() *BuildJob {
	out := *j
	return &out
}

// ArtifactPath returns the on-disk path for one of the fixed artifact filenames.
func (j *BuildJob) ArtifactPath(filename string) (string, bool) {
	switch filename {
	case FileMesh:
		return j.MeshPath, j.MeshPath != ""
	case FilePackage:
		return j.PackagePath, j.PackagePath != ""
	case FileReport:
		return j.ReportPath, j.ReportPath != ""
	}
	return "", false
}
