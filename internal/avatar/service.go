// File: internal/avatar/service.go
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sizes is the fixed set of derivative edge lengths. Each derivative is
// resized to size x size with width and height set independently, so a
// non-square source is distorted into a square rather than letterboxed.
var Sizes = []int{100, 300, 500}

// Ext is the extension (and encoding) of every generated derivative.
const Ext = ".jpg"

// maxRemoteAvatarBytes bounds how much of a provider avatar URL is read.
const maxRemoteAvatarBytes = 10 << 20

// ErrUndecodable is returned when the source payload is not a well-formed image.
var ErrUndecodable = errors.New("avatar: source is not a decodable image")

// Service generates fixed-size avatar derivatives on durable storage.
type Service struct {
	storagePath string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewService creates a derivative generator rooted at storagePath.
func NewService(storagePath string, logger *zap.Logger) (*Service, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(storagePath, os.ModePerm); err != nil {
		logger.Error("Failed to create avatar storage directory", zap.String("path", storagePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	return &Service{
		storagePath: storagePath,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger.Named("AvatarService"),
	}, nil
}

// VariantPath returns the absolute path of one derivative file.
func (s *Service) VariantPath(size int, base string) string {
	return filepath.Join(s.storagePath, fmt.Sprintf("%d_%s%s", size, base, Ext))
}

// Generate decodes the source image and writes one derivative per entry in
// Sizes, all sharing a freshly generated base token. It returns the base
// token on success. On any decode or write failure, derivatives already
// written for this token are removed before the error is returned, so a
// partial set is never left behind.
func (s *Service) Generate(src io.Reader) (string, error) {
	img, err := imaging.Decode(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	// Two registrations in the same instant must not share a filename.
	base := uuid.NewString()

	for _, size := range Sizes {
		variant := imaging.Resize(img, size, size, imaging.Lanczos)
		path := s.VariantPath(size, base)
		if err := imaging.Save(variant, path, imaging.JPEGQuality(85)); err != nil {
			s.logger.Error("Failed to write avatar derivative",
				zap.String("path", path), zap.Error(err))
			s.removeSet(base)
			return "", fmt.Errorf("failed to write derivative %d_%s: %w", size, base, err)
		}
	}

	s.logger.Info("Avatar derivatives generated",
		zap.String("base", base), zap.Int("variants", len(Sizes)))
	return base, nil
}

// GenerateFromURL fetches an avatar from a provider URL and generates the
// derivative set from it.
func (s *Service) GenerateFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid avatar URL %q: %w", url, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch avatar from %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar fetch from %q returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteAvatarBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read avatar body from %q: %w", url, err)
	}

	return s.Generate(bytes.NewReader(data))
}

// Remove deletes every derivative of the given base token. Missing files are
// not an error; the set may already be partially gone.
func (s *Service) Remove(base string) error {
	// Reject anything that could escape the storage directory.
	if base == "" || strings.ContainsAny(base, "/\\") || strings.Contains(base, "..") {
		return fmt.Errorf("invalid avatar base token %q", base)
	}
	s.removeSet(base)
	return nil
}

func (s *Service) removeSet(base string) {
	for _, size := range Sizes {
		path := s.VariantPath(size, base)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove avatar derivative", zap.String("path", path), zap.Error(err))
		}
	}
}

// SweepOrphans deletes derivative files whose base token is not in the
// referenced set and whose modification time is older than minAge. The age
// guard keeps the sweep from racing an in-flight registration that has
// written its files but not yet created the account row.
func (s *Service) SweepOrphans(referenced map[string]bool, minAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.storagePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read avatar storage directory: %w", err)
	}

	cutoff := time.Now().Add(-minAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ok := parseVariantName(entry.Name())
		if !ok || referenced[base] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.storagePath, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove orphaned derivative", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// parseVariantName extracts the base token from a "{size}_{base}.jpg" name.
func parseVariantName(name string) (string, bool) {
	if !strings.HasSuffix(name, Ext) {
		return "", false
	}
	name = strings.TrimSuffix(name, Ext)
	sizeStr, base, found := strings.Cut(name, "_")
	if !found || base == "" {
		return "", false
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return "", false
	}
	for _, known := range Sizes {
		if size == known {
			return base, true
		}
	}
	return "", false
}
