package corpus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/storage/minio"
	"github.com/turtacn/deckscan/pkg/errors"
)

// Source reads the raw bytes behind a corpus location.
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// IsLocal reports whether location is a path on the local filesystem.
func IsLocal(location string) bool {
	return location != "" && !isHTTP(location) && !minio.IsURI(location)
}

func isHTTP(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// FileSource reads local files.
type FileSource struct{}

func (FileSource) Fetch(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeCorpusNotFound, "corpus file does not exist").WithDetail(location)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCorpusFetchFailed, "failed to read corpus file").WithDetail(location)
	}
	return data, nil
}

// HTTPSource downloads http(s) locations.
type HTTPSource struct {
	client *http.Client
	logger logging.Logger
}

func NewHTTPSource(timeout time.Duration, logger logging.Logger) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{Timeout: timeout},
		logger: logging.OrNop(logger).Named("corpus.http"),
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusUnsupported, "invalid corpus URL").WithDetail(location)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	start := time.Now()
	s.logger.Info("downloading corpus", logging.String(logging.FieldCorpus, location))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusFetchFailed, "corpus download failed").WithDetail(location)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ErrCodeCorpusNotFound, "corpus URL not found").WithDetail(location)
	case resp.StatusCode >= 300:
		return nil, errors.New(errors.ErrCodeCorpusFetchFailed, "unexpected corpus download status").
			WithDetail(fmt.Sprintf("%s: %s", location, resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusFetchFailed, "failed to read corpus download").WithDetail(location)
	}
	s.logger.Info("corpus downloaded",
		logging.String(logging.FieldCorpus, location),
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(start)))
	return data, nil
}

// ObjectSource reads s3://bucket/key locations from object storage.
type ObjectSource struct {
	repo minio.ObjectRepository
}

func NewObjectSource(repo minio.ObjectRepository) *ObjectSource {
	return &ObjectSource{repo: repo}
}

func (s *ObjectSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	data, err := s.repo.Get(ctx, location)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeObjectNotFound) {
			return nil, errors.New(errors.ErrCodeCorpusNotFound, "corpus object does not exist").WithDetail(location)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCorpusFetchFailed, "failed to read corpus object").WithDetail(location)
	}
	return data, nil
}

// Router dispatches a location to the source for its scheme. A nil Object
// source makes s3:// locations unsupported.
type Router struct {
	File   Source
	HTTP   Source
	Object Source
}

func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	var src Source
	switch {
	case location == "":
		return nil, errors.New(errors.ErrCodeCorpusUnsupported, "empty corpus location")
	case isHTTP(location):
		src = r.HTTP
	case minio.IsURI(location):
		src = r.Object
	default:
		src = r.File
	}
	if src == nil {
		return nil, errors.New(errors.ErrCodeCorpusUnsupported, "no source configured for corpus location").WithDetail(location)
	}
	return src.Fetch(ctx, location)
}
