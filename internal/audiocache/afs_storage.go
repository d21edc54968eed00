package audiocache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	afsurl "github.com/viant/afs/url"

	"realty-assistant/internal/domain"
)

const fileExt = ".mp3"

// AFSStorage keeps each entry as <key>.mp3 under a base location. Any scheme
// registered with afs works (file, mem, and s3/gs when afsc is linked in).
type AFSStorage struct {
	fs      afs.Service
	baseURL string
}

// NewAFSStorage resolves location to a URL. Plain paths become file:// URLs.
func NewAFSStorage(fs afs.Service, location string) (*AFSStorage, error) {
	if fs == nil {
		return nil, errors.New("audiocache: afs service must not be nil")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("audiocache: location must not be empty")
	}
	if afsurl.Scheme(location, "") == "" {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("audiocache: resolve %q: %w", location, err)
		}
		location = "file://" + filepath.ToSlash(abs)
	}
	return &AFSStorage{fs: fs, baseURL: strings.TrimRight(location, "/")}, nil
}

// Init creates the base location when it does not exist yet.
func (s *AFSStorage) Init(ctx context.Context) error {
	ok, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil {
		return fmt.Errorf("audiocache: check %s: %w", s.baseURL, err)
	}
	if ok {
		return nil
	}
	if err := s.fs.Create(ctx, s.baseURL, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("audiocache: create %s: %w", s.baseURL, err)
	}
	return nil
}

func (s *AFSStorage) BaseURL() string {
	return s.baseURL
}

func (s *AFSStorage) entryURL(key string) string {
	return s.baseURL + "/" + key + fileExt
}

func (s *AFSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	u := s.entryURL(key)
	ok, err := s.fs.Exists(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("audiocache: stat %s: %w", u, err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("audiocache: read %s: %w", u, err)
	}
	return data, nil
}

func (s *AFSStorage) Put(ctx context.Context, key string, data []byte) error {
	u := s.entryURL(key)
	if err := s.fs.Upload(ctx, u, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("audiocache: write %s: %w", u, err)
	}
	return nil
}
