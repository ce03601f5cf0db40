package storefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-report/report"
)

const metaSuffix = ".meta.json"

// Store keeps published documents on disk. Writes go to a temp file that is
// renamed into place, and metadata lives in a JSON sidecar next to the file.
type Store struct {
	Root string
	Now  func() time.Time
}

var _ report.ArtifactStore = (*Store)(nil)

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put stores an artifact on disk.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta report.ArtifactMeta) (report.ArtifactRef, error) {
	pathOnDisk, err := s.prepare(ctx, key)
	if err != nil {
		return report.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.ArtifactRef{}, err
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return report.ArtifactRef{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return report.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return report.ArtifactRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return report.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(meta.Filename))
	}

	// sidecar first so a visible artifact always has metadata
	if err := s.writeMeta(pathOnDisk, meta); err != nil {
		return report.ArtifactRef{}, err
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		_ = os.Remove(metaPath(pathOnDisk))
		return report.ArtifactRef{}, err
	}

	return report.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, report.ArtifactMeta, error) {
	pathOnDisk, err := s.prepare(ctx, key)
	if err != nil {
		return nil, report.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, report.ArtifactMeta{}, report.NewError(report.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, report.ArtifactMeta{}, err
	}

	meta := readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(meta.Filename))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}

	return file, meta, nil
}

// Delete removes an artifact and its sidecar. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	pathOnDisk, err := s.prepare(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(pathOnDisk); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(metaPath(pathOnDisk)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep deletes artifacts whose sidecar expiry is at or before now. It covers
// documents left behind by a previous process, whose handles are gone.
func (s *Store) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	if s == nil {
		return nil, report.NewError(report.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return nil, report.NewError(report.KindValidation, "store root is required", nil)
	}
	if now.IsZero() {
		now = s.now()
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, err
	}

	var removed []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		artifact := strings.TrimSuffix(p, metaSuffix)
		meta := readMeta(artifact)
		if meta.ExpiresAt.IsZero() || meta.ExpiresAt.After(now) {
			return nil
		}
		rel, err := filepath.Rel(root, artifact)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
		removed = append(removed, key)
		return nil
	})
	sort.Strings(removed)
	return removed, err
}

func (s *Store) prepare(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", report.NewError(report.KindInternal, "store is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if s.Root == "" {
		return "", report.NewError(report.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return "", report.NewError(report.KindValidation, "artifact key is required", nil)
	}
	return s.resolvePath(key)
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." || strings.HasSuffix(rel, metaSuffix) {
		return "", report.NewError(report.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", report.NewError(report.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(pathOnDisk string, meta report.ArtifactMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	dir := filepath.Dir(pathOnDisk)
	tmp, err := os.CreateTemp(dir, ".meta-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), metaPath(pathOnDisk))
}

func readMeta(pathOnDisk string) report.ArtifactMeta {
	data, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return report.ArtifactMeta{}
	}
	var meta report.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return report.ArtifactMeta{}
	}
	return meta
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func metaPath(pathOnDisk string) string {
	return pathOnDisk + metaSuffix
}
