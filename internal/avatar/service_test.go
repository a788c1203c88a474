// File: internal/avatar/service_test.go
package avatar

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// samplePNG encodes a small non-square image so the resize has work to do.
func samplePNG(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewService(dir, zap.NewNop())
	require.NoError(t, err)
	return svc, dir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGenerateWritesEveryDerivative(t *testing.T) {
	svc, dir := newTestService(t)

	base, err := svc.Generate(samplePNG(t, 640, 480))
	require.NoError(t, err)
	require.NotEmpty(t, base)

	for _, size := range Sizes {
		path := svc.VariantPath(size, base)
		info, err := os.Stat(path)
		require.NoError(t, err, "derivative for size %d should exist", size)
		assert.Greater(t, info.Size(), int64(0))

		img, err := loadImage(path)
		require.NoError(t, err)
		bounds := img.Bounds()
		assert.Equal(t, size, bounds.Dx(), "width must equal target size")
		assert.Equal(t, size, bounds.Dy(), "height must equal target size even for a non-square source")
	}

	assert.Len(t, listFiles(t, dir), len(Sizes))
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func TestGenerateProducesDistinctBases(t *testing.T) {
	svc, _ := newTestService(t)

	base1, err := svc.Generate(samplePNG(t, 64, 64))
	require.NoError(t, err)
	base2, err := svc.Generate(samplePNG(t, 64, 64))
	require.NoError(t, err)

	assert.NotEqual(t, base1, base2, "concurrent uploads must never collide on filename")
}

func TestGenerateRejectsNonImagePayload(t *testing.T) {
	svc, dir := newTestService(t)

	_, err := svc.Generate(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndecodable)
	assert.Empty(t, listFiles(t, dir), "a failed generation must leave no files behind")
}

func TestRemoveDeletesFullSet(t *testing.T) {
	svc, dir := newTestService(t)

	base, err := svc.Generate(samplePNG(t, 200, 200))
	require.NoError(t, err)
	require.Len(t, listFiles(t, dir), len(Sizes))

	require.NoError(t, svc.Remove(base))
	assert.Empty(t, listFiles(t, dir))

	// A second removal of the same set is not an error.
	require.NoError(t, svc.Remove(base))
}

func TestRemoveRejectsPathTraversal(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Error(t, svc.Remove(""))
	assert.Error(t, svc.Remove("../etc/passwd"))
	assert.Error(t, svc.Remove("a/b"))
	assert.Error(t, svc.Remove(`a\b`))
}

func TestSweepOrphansKeepsReferencedAndYoungFiles(t *testing.T) {
	svc, dir := newTestService(t)

	keptBase, err := svc.Generate(samplePNG(t, 80, 80))
	require.NoError(t, err)
	orphanBase, err := svc.Generate(samplePNG(t, 80, 80))
	require.NoError(t, err)

	// Files newer than minAge must survive even when unreferenced.
	removed, err := svc.SweepOrphans(map[string]bool{keptBase: true}, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Len(t, listFiles(t, dir), 2*len(Sizes))

	// Age the orphan files past the cutoff.
	old := time.Now().Add(-2 * time.Hour)
	for _, size := range Sizes {
		require.NoError(t, os.Chtimes(svc.VariantPath(size, orphanBase), old, old))
	}

	removed, err = svc.SweepOrphans(map[string]bool{keptBase: true}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, len(Sizes), removed)

	for _, size := range Sizes {
		_, err := os.Stat(svc.VariantPath(size, keptBase))
		assert.NoError(t, err, "referenced derivative must survive the sweep")
		_, err = os.Stat(svc.VariantPath(size, orphanBase))
		assert.True(t, os.IsNotExist(err), "orphaned derivative must be removed")
	}
}

func TestSweepOrphansIgnoresForeignFiles(t *testing.T) {
	svc, dir := newTestService(t)

	foreign := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(foreign, old, old))

	removed, err := svc.SweepOrphans(map[string]bool{}, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
	_, err = os.Stat(foreign)
	assert.NoError(t, err)
}

func TestParseVariantName(t *testing.T) {
	base, ok := parseVariantName("100_abc-def.jpg")
	assert.True(t, ok)
	assert.Equal(t, "abc-def", base)

	_, ok = parseVariantName("640_abc.jpg") // unknown size
	assert.False(t, ok)
	_, ok = parseVariantName("100_abc.png")
	assert.False(t, ok)
	_, ok = parseVariantName("100_.jpg")
	assert.False(t, ok)
	_, ok = parseVariantName("nounderscore.jpg")
	assert.False(t, ok)
}
