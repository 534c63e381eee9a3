package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

func profileDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"A1.machine.json", "PLA.process.json", "PLA.filament.json"} {
		writeFile(t, filepath.Join(dir, name), "{}")
	}
	return dir
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-slicer")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestProfileCatalog_DefaultNaming(t *testing.T) {
	dir := profileDir(t)
	catalog, err := LoadProfileCatalog(dir)
	require.NoError(t, err)

	files, err := catalog.Resolve(models.ProfileA1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "A1.machine.json"), files.Machine)
	assert.Equal(t, filepath.Join(dir, "PLA.process.json"), files.Process)
	assert.Equal(t, filepath.Join(dir, "PLA.filament.json"), files.Filament)

	_, err = catalog.Resolve(models.ProfileX1)
	assert.ErrorContains(t, err, "X1.machine.json")
}

func TestProfileCatalog_YAML(t *testing.T) {
	dir := profileDir(t)
	writeFile(t, filepath.Join(dir, "x1c.json"), "{}")
	writeFile(t, filepath.Join(dir, "profiles.yaml"), `profiles:
  X1_PLA_0.4:
    machine: x1c.json
    process: PLA.process.json
    filament: PLA.filament.json
`)

	catalog, err := LoadProfileCatalog(dir)
	require.NoError(t, err)
	files, err := catalog.Resolve(models.ProfileX1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x1c.json"), files.Machine)

	writeFile(t, filepath.Join(dir, "profiles.yaml"), "profiles: [")
	_, err = LoadProfileCatalog(dir)
	assert.Error(t, err)
}

func TestBambuSlicer(t *testing.T) {
	dir := profileDir(t)
	catalog, err := LoadProfileCatalog(dir)
	require.NoError(t, err)
	mesh := writeFile(t, filepath.Join(t.TempDir(), models.FileMesh), "solid x")

	t.Run("missing_executable", func(t *testing.T) {
		s := &BambuSlicer{Binary: "definitely-not-installed-slicer", Catalog: catalog}
		_, err := s.Slice(context.Background(), mesh, filepath.Join(t.TempDir(), "out.3mf"), models.ProfileA1)
		assert.ErrorContains(t, err, "executable not found")
	})

	t.Run("missing_profile", func(t *testing.T) {
		s := &BambuSlicer{Binary: fakeBinary(t, "exit 0\n"), Catalog: catalog}
		_, err := s.Slice(context.Background(), mesh, filepath.Join(t.TempDir(), "out.3mf"), models.ProfileP1)
		assert.ErrorContains(t, err, "missing profile file")
	})

	t.Run("non_zero_exit", func(t *testing.T) {
		s := &BambuSlicer{Binary: fakeBinary(t, "echo 'bad settings' >&2\nexit 3\n"), Catalog: catalog}
		_, err := s.Slice(context.Background(), mesh, filepath.Join(t.TempDir(), "out.3mf"), models.ProfileA1)
		assert.EqualError(t, err, "bad settings")
	})

	t.Run("no_output", func(t *testing.T) {
		s := &BambuSlicer{Binary: fakeBinary(t, "exit 0\n"), Catalog: catalog}
		_, err := s.Slice(context.Background(), mesh, filepath.Join(t.TempDir(), "out.3mf"), models.ProfileA1)
		assert.ErrorContains(t, err, "without producing a 3MF")
	})

	t.Run("timeout", func(t *testing.T) {
		s := &BambuSlicer{Binary: fakeBinary(t, "exec sleep 5\n"), Catalog: catalog, Timeout: 50 * time.Millisecond}
		_, err := s.Slice(context.Background(), mesh, filepath.Join(t.TempDir(), "out.3mf"), models.ProfileA1)
		assert.ErrorContains(t, err, "timed out")
	})

	t.Run("success", func(t *testing.T) {
		script := `out=""
args="$*"
while [ $# -gt 0 ]; do
  if [ "$1" = "--export-3mf" ]; then out="$2"; fi
  shift
done
echo "$args"
printf 'PK' > "$out"
`
		s := &BambuSlicer{Binary: fakeBinary(t, script), Catalog: catalog}
		out := filepath.Join(t.TempDir(), "out.3mf")
		result, err := s.Slice(context.Background(), mesh, out, models.ProfileA1)
		require.NoError(t, err)
		assert.Equal(t, "bambu-studio", result.Engine)
		assert.FileExists(t, out)
		assert.Contains(t, result.Output, "--load-settings "+filepath.Join(dir, "A1.machine.json")+";"+filepath.Join(dir, "PLA.process.json"))
		assert.Contains(t, result.Output, "--slice 0")
	})
}
