package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// FileServer hands out files from the download directory exactly once. A
// file is claimed by Open until Complete or Abort; a second Open of a claimed
// name reports ErrFileNotFound.
type FileServer struct {
	dir      string
	logger   *zap.Logger
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// ServedFile is an open download awaiting delivery
type ServedFile struct {
	*os.File
	Name    string
	Size    int64
	path    string
	logger  *zap.Logger
	release func()
	once    sync.Once
}

// NewFileServer creates a file server rooted at dir
func NewFileServer(dir string, logger *zap.Logger) *FileServer {
	return &FileServer{
		dir:      dir,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Open resolves name inside the download directory. Names that could refer
// to anything outside it are rejected.
func (s *FileServer) Open(name string) (*ServedFile, error) {
	if err := validateFilename(name); err != nil {
		return nil, err
	}

	if !s.claim(name) {
		return nil, fmt.Errorf("%w: %s is already being served", domain.ErrFileNotFound, name)
	}

	f, err := s.open(name)
	if err != nil {
		s.unclaim(name)
		return nil, err
	}
	f.release = func() { s.unclaim(name) }
	return f, nil
}

func (s *FileServer) open(name string) (*ServedFile, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
	}

	return &ServedFile{
		File:   f,
		Name:   name,
		Size:   info.Size(),
		path:   path,
		logger: s.logger,
	}, nil
}

func (s *FileServer) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[name]; busy {
		return false
	}
	s.inFlight[name] = struct{}{}
	return true
}

func (s *FileServer) unclaim(name string) {
	s.mu.Lock()
	delete(s.inFlight, name)
	s.mu.Unlock()
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	return nil
}

// Complete closes the file and deletes it. Removal failures are logged only;
// the client already has the bytes.
func (f *ServedFile) Complete() {
	f.once.Do(func() {
		defer f.release()
		f.File.Close()
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.logger.Error("Failed to remove served file",
				zap.String("file", f.Name),
				zap.Error(err))
			return
		}
		f.logger.Info("Served file removed", zap.String("file", f.Name))
	})
}

// Abort closes the file and keeps it on disk
func (f *ServedFile) Abort() {
	f.once.Do(func() {
		f.File.Close()
		f.release()
	})
}
