package build

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// GeometryCompiler writes a mesh for spec to outPath.
type GeometryCompiler interface {
	Compile(ctx context.Context, spec models.Specification, outPath string) error
}

// BoxCompiler writes an ASCII STL bounding box sized from the specification.
type BoxCompiler struct{}

type vec3 [3]float64

var boxFaces = [12][3]int{
	{0, 1, 2}, {0, 2, 3},
	{4, 7, 6}, {4, 6, 5},
	{0, 4, 5}, {0, 5, 1},
	{1, 5, 6}, {1, 6, 2},
	{2, 6, 7}, {2, 7, 3},
	{3, 7, 4}, {3, 4, 0},
}

// BoxSize returns width, depth and height of the fallback box for spec.
func BoxSize(spec models.Specification) (width, depth, height float64) {
	dims := spec.DimensionsMM
	lookup := func(fallback float64, fields ...string) float64 {
		for _, f := range fields {
			if v, ok := dims[f]; ok {
				return v
			}
		}
		return fallback
	}
	width = lookup(20.0, models.DimWidth, models.DimOuterDiameter)
	depth = lookup(width, models.DimHeight, models.DimBandWidth)
	height = lookup(2.0, models.DimThickness)
	return width, depth, height
}

// Compile implements GeometryCompiler.
func (BoxCompiler) Compile(_ context.Context, spec models.Specification, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create mesh directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create mesh file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	width, depth, height := BoxSize(spec)
	writeBox(w, width, depth, height)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write mesh file: %w", err)
	}
	return f.Close()
}

func writeBox(w *bufio.Writer, width, depth, height float64) {
	x, y, z := width/2, depth/2, height
	v := [8]vec3{
		{-x, -y, 0}, {x, -y, 0}, {x, y, 0}, {-x, y, 0},
		{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z},
	}

	fmt.Fprintln(w, "solid fallback_model")
	for _, face := range boxFaces {
		tri := [3]vec3{v[face[0]], v[face[1]], v[face[2]]}
		n := normal(tri)
		fmt.Fprintf(w, "  facet normal %.6f %.6f %.6f\n", n[0], n[1], n[2])
		fmt.Fprintln(w, "    outer loop")
		for _, p := range tri {
			fmt.Fprintf(w, "      vertex %.6f %.6f %.6f\n", p[0], p[1], p[2])
		}
		fmt.Fprintln(w, "    endloop")
		fmt.Fprintln(w, "  endfacet")
	}
	fmt.Fprintln(w, "endsolid fallback_model")
}

func normal(tri [3]vec3) vec3 {
	a, b, c := tri[0], tri[1], tri[2]
	u := vec3{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := vec3{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := vec3{u[1]*v[2] - u[2]*v[1], u[2]*v[0] - u[0]*v[2], u[0]*v[1] - u[1]*v[0]}
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		length = 1
	}
	return vec3{n[0] / length, n[1] / length, n[2] / length}
}

// ExternalCompiler runs a CAD command as `<command...> <spec.json> <out.stl>`.
type ExternalCompiler struct {
	Command []string
}

// NewExternalCompiler splits command on whitespace. An empty command yields nil.
func NewExternalCompiler(command string) *ExternalCompiler {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &ExternalCompiler{Command: fields}
}

// Compile implements GeometryCompiler.
func (c *ExternalCompiler) Compile(ctx context.Context, spec models.Specification, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create mesh directory: %w", err)
	}
	specPath := filepath.Join(filepath.Dir(outPath), "spec.json")
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal specification: %w", err)
	}
	if err := os.WriteFile(specPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write specification: %w", err)
	}
	defer os.Remove(specPath)

	args := append(append([]string(nil), c.Command[1:]...), specPath, outPath)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("geometry command failed: %s: %w", msg, err)
		}
		return fmt.Errorf("geometry command failed: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return errors.New("geometry command completed without producing a mesh")
	}
	return nil
}

// FallbackCompiler tries Primary and falls back to a bounding box when it
// fails or is not configured.
type FallbackCompiler struct {
	Primary GeometryCompiler
	Box     BoxCompiler
	Logger  *zap.Logger
}

// NewCompiler returns the configured geometry compiler: the external command
// when one is set, always wrapped by the bounding-box fallback.
func NewCompiler(command string, logger *zap.Logger) FallbackCompiler {
	c := FallbackCompiler{Logger: logger}
	if ext := NewExternalCompiler(command); ext != nil {
		c.Primary = ext
	}
	return c
}

// Compile implements GeometryCompiler.
func (c FallbackCompiler) Compile(ctx context.Context, spec models.Specification, outPath string) error {
	if c.Primary != nil {
		err := c.Primary.Compile(ctx, spec, outPath)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if c.Logger != nil {
			c.Logger.Warn("geometry compiler failed, writing bounding box", zap.Error(err))
		}
	}
	return c.Box.Compile(ctx, spec, outPath)
}
