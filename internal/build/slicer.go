package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Slicer turns a mesh into a sliced package.
type Slicer interface {
	Slice(ctx context.Context, meshPath, outPath, profile string) (SliceResult, error)
}

// SliceResult describes a successful slicing run.
type SliceResult struct {
	Engine string
	Output string
}

// ProfileFiles are the three settings files a machine profile needs.
type ProfileFiles struct {
	Machine  string `yaml:"machine"`
	Process  string `yaml:"process"`
	Filament string `yaml:"filament"`
}

// ProfileCatalog resolves machine profiles to settings files in a directory.
type ProfileCatalog struct {
	Dir      string
	Profiles map[string]ProfileFiles
}

type catalogFile struct {
	Profiles map[string]ProfileFiles `yaml:"profiles"`
}

// LoadProfileCatalog reads <dir>/profiles.yaml when present. Profiles not
// listed there use the <PRINTER>.machine.json, PLA.process.json and
// PLA.filament.json naming.
func LoadProfileCatalog(dir string) (*ProfileCatalog, error) {
	catalog := &ProfileCatalog{Dir: dir, Profiles: map[string]ProfileFiles{}}

	data, err := os.ReadFile(filepath.Join(dir, "profiles.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return catalog, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile catalog: %w", err)
	}
	for name, files := range file.Profiles {
		catalog.Profiles[name] = files
	}
	return catalog, nil
}

// Resolve returns absolute paths of the settings files for profile, failing
// if any of them is missing.
func (c *ProfileCatalog) Resolve(profile string) (ProfileFiles, error) {
	files, ok := c.Profiles[profile]
	if !ok {
		printer, _, _ := strings.Cut(profile, "_")
		files = ProfileFiles{
			Machine:  printer + ".machine.json",
			Process:  "PLA.process.json",
			Filament: "PLA.filament.json",
		}
	}

	resolved := ProfileFiles{
		Machine:  filepath.Join(c.Dir, files.Machine),
		Process:  filepath.Join(c.Dir, files.Process),
		Filament: filepath.Join(c.Dir, files.Filament),
	}
	for _, path := range []string{resolved.Machine, resolved.Process, resolved.Filament} {
		if _, err := os.Stat(path); err != nil {
			return ProfileFiles{}, fmt.Errorf("missing profile file: %s", path)
		}
	}
	return resolved, nil
}

// BambuSlicer runs the Bambu Studio CLI.
type BambuSlicer struct {
	Binary  string
	Catalog *ProfileCatalog
	Timeout time.Duration
}

const maxSlicerOutput = 2000

// Slice implements Slicer.
func (s *BambuSlicer) Slice(ctx context.Context, meshPath, outPath, profile string) (SliceResult, error) {
	binary := s.Binary
	if binary == "" {
		binary = "bambu-studio"
	}
	exe, err := exec.LookPath(binary)
	if err != nil {
		return SliceResult{}, fmt.Errorf("%s executable not found", binary)
	}
	files, err := s.Catalog.Resolve(profile)
	if err != nil {
		return SliceResult{}, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, exe,
		"--orient",
		"--arrange", "1",
		"--load-settings", files.Machine+";"+files.Process,
		"--load-filaments", files.Filament,
		"--slice", "0",
		"--export-3mf", outPath,
		meshPath,
	)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return SliceResult{}, fmt.Errorf("bambu studio CLI timed out: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return SliceResult{}, errors.New(msg)
		}
		return SliceResult{}, errors.New("bambu studio CLI returned a non-zero exit code")
	}
	if _, err := os.Stat(outPath); err != nil {
		return SliceResult{}, errors.New("bambu studio CLI completed without producing a 3MF file")
	}

	out := stdout.String()
	if len(out) > maxSlicerOutput {
		out = out[len(out)-maxSlicerOutput:]
	}
	return SliceResult{Engine: "bambu-studio", Output: out}, nil
}
