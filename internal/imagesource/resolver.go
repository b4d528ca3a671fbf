// Package imagesource turns a configured source into one image file path.
package imagesource

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

var ErrNoImageFound = errors.New("no image found")

var imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}}

// Resolver resolves folder and file sources under a media root.
type Resolver struct {
	mediaRoot string
	pick      func(n int) int
	logger    *slog.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithPicker replaces the uniform random choice, for tests.
func WithPicker(pick func(n int) int) Option {
	return func(r *Resolver) { r.pick = pick }
}

func NewResolver(mediaRoot string, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{mediaRoot: mediaRoot, pick: rand.Intn, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns an absolute path to an existing image file.
func (r *Resolver) Resolve(ref frame.SourceRef) (string, error) {
	switch ref.Kind {
	case frame.SourceFile:
		return r.resolveFile(ref.Name)
	case frame.SourceFolder:
		return r.resolveFolder(ref.Name)
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrNoImageFound, ref.String())
	}
}

func (r *Resolver) resolveFile(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty image path", ErrNoImageFound)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.mediaRoot, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoImageFound, path)
	}
	return path, nil
}

func (r *Resolver) resolveFolder(name string) (string, error) {
	dir := filepath.Join(r.mediaRoot, strings.TrimSpace(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create folder %s: %v", ErrNoImageFound, dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: read folder %s: %v", ErrNoImageFound, dir, err)
	}
	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !isFile(dir, entry) {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: folder %s has no .jpg, .jpeg, .png or .bmp files", ErrNoImageFound, dir)
	}
	sort.Strings(candidates)

	chosen := candidates[r.pick(len(candidates))]
	r.logger.Info("selected random image", "file", chosen, "candidates", len(candidates), "folder", dir)
	return filepath.Join(dir, chosen), nil
}

// isFile follows symlinks, so a link to an image counts and a dangling one
// does not.
func isFile(dir string, entry os.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}
