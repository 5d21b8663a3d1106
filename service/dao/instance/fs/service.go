package fs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/dao"
	"github.com/viant/tripmanager/service/dao/criteria"
)

const extension = ".json"

// Service implements a file based instance store; every instance is kept as
// one JSON document named after its key.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
	logger  *slog.Logger
}

var _ dao.Service[instance.Key, instance.Instance] = (*Service)(nil)

// Save persists an instance
func (s *Service) Save(ctx context.Context, anInstance *instance.Instance) error {
	if anInstance == nil {
		return dao.ErrNilEntity
	}
	if anInstance.Key == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(anInstance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance %v: %w", anInstance.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.instanceURL(anInstance.Key)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save instance to %s: %w", URL, err)
	}
	return nil
}

// Load reads an instance by key
func (s *Service) Load(ctx context.Context, key instance.Key) (*instance.Instance, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	URL := s.instanceURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance %v: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("instance %v: %w", key, dao.ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance %v: %w", key, err)
	}
	anInstance := &instance.Instance{}
	if err = json.Unmarshal(data, anInstance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %v: %w", key, err)
	}
	return anInstance, nil
}

// Delete removes an instance
func (s *Service) Delete(ctx context.Context, key instance.Key) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	URL := s.instanceURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check instance %v: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("instance %v: %w", key, dao.ErrNotFound)
	}
	if err = s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete instance %v: %w", key, err)
	}
	return nil
}

// List returns stored instances matching the status parameters. Unreadable
// documents are logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	var result []*instance.Instance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), extension) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("skipping unreadable instance", "url", object.URL(), "error", err)
			continue
		}
		anInstance := &instance.Instance{}
		if err := json.Unmarshal(data, anInstance); err != nil {
			s.logger.Warn("skipping malformed instance", "url", object.URL(), "error", err)
			continue
		}
		if !criteria.FilterByStatus(string(anInstance.Status), parameters) {
			continue
		}
		result = append(result, anInstance)
	}
	return result, nil
}

// instanceURL encodes the key so that any trip code maps to a single file
func (s *Service) instanceURL(key instance.Key) string {
	return url.Join(s.baseURL, base64.RawURLEncoding.EncodeToString([]byte(key))+extension)
}

// New creates a file based instance store rooted at baseURL
func New(baseURL string, logger *slog.Logger) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs := afs.New()
	baseURL = url.Normalize(baseURL, file.Scheme)
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create instance directory %s: %w", baseURL, err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs, logger: logger}, nil
}
