package bootstrap

import (
	"context"
	"fmt"
	"sort"

	minioclient "github.com/turtacn/deckscan/internal/infrastructure/storage/minio"
	"github.com/turtacn/deckscan/internal/interfaces/http/handlers"
)

type readinessChecker struct {
	ready func() bool
}

func (c readinessChecker) Name() string { return "recognizer" }

func (c readinessChecker) Check(context.Context) error {
	if c.ready == nil || !c.ready() {
		return fmt.Errorf("recognizer not loaded")
	}
	return nil
}

// minioHealthAdapter probes one bucket the corpus is read from.
type minioHealthAdapter struct {
	client *minioclient.MinIOClient
	bucket string
}

func (a minioHealthAdapter) Name() string { return "minio:" + a.bucket }

func (a minioHealthAdapter) Check(ctx context.Context) error {
	_, err := a.client.HealthCheck(ctx, a.bucket)
	return err
}

// HealthCheckers reports on ready, normally the scan service's readiness,
// plus Redis when enabled and every bucket holding a corpus list.
func (i *Infrastructure) HealthCheckers(ready func() bool) []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{readinessChecker{ready: ready}}
	if i.Redis != nil {
		checkers = append(checkers, handlers.CheckFunc{ComponentName: "redis", Fn: i.Redis.Ping})
	}
	if i.MinIO != nil {
		for _, bucket := range i.corpusBuckets() {
			checkers = append(checkers, minioHealthAdapter{client: i.MinIO, bucket: bucket})
		}
	}
	return checkers
}

func (i *Infrastructure) corpusBuckets() []string {
	c := i.Config.Corpus
	seen := make(map[string]struct{})
	for _, loc := range []string{c.Entities, c.Keywords, c.ExtraEntitiesFile} {
		if bucket, _, ok := minioclient.ParseURI(loc); ok {
			seen[bucket] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
