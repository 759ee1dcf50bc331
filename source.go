package shelterboard

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Source supplies the raw dataset CSV bytes.
type Source interface {
	// Fetch retrieves the current dataset payload.
	Fetch(ctx context.Context) ([]byte, error)
	// Describe identifies the source for logs and the stats endpoint.
	Describe() string
}

// NewSource builds the configured source. Precedence when several are set:
// local path, then URL, then Drive file ID, then S3.
func NewSource(cfg SourceConfig) (Source, error) {
	switch {
	case cfg.Path != "":
		return NewFileSource(cfg.Path), nil
	case cfg.URL != "":
		return NewHTTPSource(cfg.URL, cfg), nil
	case cfg.DriveFileID != "":
		return NewHTTPSource(DriveDownloadURL(cfg.DriveFileID), cfg), nil
	case cfg.S3 != nil:
		return NewS3Source(*cfg.S3, cfg.Retry)
	}
	return nil, errors.New("source: no dataset source configured")
}

// FileSource reads the dataset from a local file.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the file. The file is re-read on every call so refreshes pick
// up edits.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, newLoadError(LoadErrorTypeFetch, "read dataset file", s.path, err)
	}
	if len(data) == 0 {
		return nil, newLoadError(LoadErrorTypeFetch, "dataset file is empty", s.path, nil)
	}
	return data, nil
}

// Describe returns the file path.
func (s *FileSource) Describe() string {
	return fmt.Sprintf("file:%s", s.path)
}
