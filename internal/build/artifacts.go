package build

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

const (
	contentTypesXML = `<?xml version='1.0' encoding='UTF-8'?>
<Types xmlns='http://schemas.openxmlformats.org/package/2006/content-types'>
  <Default Extension='model' ContentType='application/vnd.ms-package.3dmanufacturing-3dmodel+xml'/>
  <Default Extension='rels' ContentType='application/vnd.openxmlformats-package.relationships+xml'/>
</Types>
`
	relsXML = `<?xml version='1.0' encoding='UTF-8'?>
<Relationships xmlns='http://schemas.openxmlformats.org/package/2006/relationships'>
  <Relationship Target='/3D/3dmodel.model' Id='rel0' Type='http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel'/>
</Relationships>
`
	emptyModelXML = `<?xml version='1.0' encoding='UTF-8'?>
<model unit='millimeter' xml:lang='en-GB' xmlns='http://schemas.microsoft.com/3dmanufacturing/core/2015/02'>
  <resources>
    <object id='1' type='model'><mesh><vertices/></mesh></object>
  </resources>
  <build>
    <item objectid='1'/>
  </build>
</model>
`
)

// WritePlaceholderPackage writes a structurally valid 3MF archive with an empty
// model that carries meshPath as Attachments/model.stl.
func WritePlaceholderPackage(outPath, meshPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close package: %w", cerr)
		}
	}()

	archive := zip.NewWriter(f)
	for _, entry := range []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"3D/3dmodel.model", emptyModelXML},
	} {
		w, err := archive.Create(entry.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", entry.name, err)
		}
		if _, err := io.WriteString(w, entry.body); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}

	mesh, err := os.Open(meshPath)
	if err != nil {
		return fmt.Errorf("failed to open mesh: %w", err)
	}
	defer mesh.Close()
	w, err := archive.Create("Attachments/model.stl")
	if err != nil {
		return fmt.Errorf("failed to add mesh attachment: %w", err)
	}
	if _, err := io.Copy(w, mesh); err != nil {
		return fmt.Errorf("failed to write mesh attachment: %w", err)
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to finalise package: %w", err)
	}
	return nil
}

// ValidateMesh checks that path exists and holds at least minBytes bytes.
func ValidateMesh(path string, minBytes int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.New("STL file was not produced")
	}
	if !info.Mode().IsRegular() || info.Size() < minBytes {
		return 0, errors.New("STL file appears invalid: file too small")
	}
	return info.Size(), nil
}

// Report is the structured record written to report.json.
type Report struct {
	JobID          string              `json:"job_id"`
	SessionID      string              `json:"session_id"`
	MachineProfile string              `json:"machine_profile"`
	Status         models.BuildStatus  `json:"status"`
	MeshBytes      int64               `json:"mesh_bytes"`
	Slicing        ReportSlicing       `json:"slicing"`
	Adjustments    []models.Adjustment `json:"adjustments"`
}

// ReportSlicing describes how the package was produced.
type ReportSlicing struct {
	Engine         string  `json:"engine"`
	FallbackReason *string `json:"fallback_reason"`
	Notes          string  `json:"notes"`
}

// EnginePlaceholder names the placeholder package in reports.
const EnginePlaceholder = "fallback_placeholder"

const reportNotes = "If fallback was used, load STL in Bambu Studio for final slicing."

// WriteReport writes report as indented JSON.
func WriteReport(path string, report Report) error {
	if report.Adjustments == nil {
		report.Adjustments = []models.Adjustment{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ArtifactCleaner removes job artifacts from disk.
type ArtifactCleaner struct {
	Root string
}

// Purge deletes the files recorded on job and the job's artifact directory.
// Missing files are not an error.
func (c ArtifactCleaner) Purge(job *models.BuildJob) error {
	var errs []error
	for _, path := range []string{job.MeshPath, job.PackagePath, job.ReportPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if c.Root != "" {
		if _, err := uuid.Parse(job.ID); err == nil {
			if err := os.RemoveAll(filepath.Join(c.Root, job.ID)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if job.MeshPath != "" {
		dir := filepath.Dir(job.MeshPath)
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(dir) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
