// Package meta loads YAML documents from any afs-supported location
package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Loader reads YAML resources with ${env.KEY} expansion
type Loader struct {
	fs afs.Service
}

// NewLoader creates a loader; a nil fs uses afs.New()
func NewLoader(fs afs.Service) *Loader {
	if fs == nil {
		fs = afs.New()
	}
	return &Loader{fs: fs}
}

// Load decodes the YAML document at URL into target
func (l *Loader) Load(ctx context.Context, URL string, target interface{}) error {
	URL = url.Normalize(URL, file.Scheme)
	data, err := l.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to load %v: %w", URL, err)
	}
	if err = yaml.Unmarshal([]byte(ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}
