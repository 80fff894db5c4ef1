// Package uploads stores product photos on disk. Files are kept under
// random names; the returned names are the opaque image references held by
// products.
package uploads

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/podari/internal/imaging"
)

// MaxFileSize is the largest accepted single upload.
const MaxFileSize = 10 << 20

const thumbDir = "thumbs"

// Store saves uploads to Dir and serves them back.
type Store struct {
	Dir string
}

// New creates the upload directory tree and returns a Store for it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, thumbDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// SaveAll stores every file in order and returns their names. Nothing is
// rejected for its content. On failure, files saved so far are removed.
func (s *Store) SaveAll(files []*multipart.FileHeader) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := s.saveFile(fh)
		if err != nil {
			s.Remove(names)
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) saveFile(fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("file %q exceeds %d bytes", fh.Filename, MaxFileSize)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("file %q exceeds %d bytes", fh.Filename, MaxFileSize)
	}

	id := uuid.NewString()
	name := id + extension(fh.Filename)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	thumb, ok, err := imaging.Thumbnail(data)
	switch {
	case err != nil:
		slog.Warn("thumbnail failed", "file", name, "error", err)
	case ok:
		if err := os.WriteFile(s.thumbPath(name), thumb, 0o644); err != nil {
			slog.Warn("writing thumbnail failed", "file", name, "error", err)
		}
	}

	return name, nil
}

// Remove deletes stored files and their thumbnails. Missing files are
// ignored.
func (s *Store) Remove(names []string) {
	for _, name := range names {
		if !validName(name) {
			continue
		}
		os.Remove(filepath.Join(s.Dir, name))
		os.Remove(s.thumbPath(name))
	}
}

// ServeHTTP handles GET /uploads/{name}. With ?thumb=1 the thumbnail is
// served instead, falling back to the original when there is none.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !validName(name) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.Dir, name)
	if r.URL.Query().Get("thumb") == "1" {
		if _, err := os.Stat(s.thumbPath(name)); err == nil {
			path = s.thumbPath(name)
		}
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

func (s *Store) thumbPath(name string) string {
	return filepath.Join(s.Dir, thumbDir, strings.TrimSuffix(name, filepath.Ext(name))+".jpg")
}

// extension keeps a short alphanumeric extension from the client's file
// name, lowercased.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// validName accepts only names produced by saveFile.
func validName(name string) bool {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return false
	}
	return extension(name) == filepath.Ext(name)
}
