// Package scanning is the application service in front of the recognition
// engine. It assigns scan IDs, decodes OCR payloads, fans batches out over a
// bounded worker pool, records metrics and lets the engine be replaced while
// scans are in flight.
package scanning

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deckscan/internal/infrastructure/ocr"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// Scan sources, used as metric labels.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
	SourceCLI   = "cli"
)

// ErrEngineNotReady is returned while no recognizer has been installed.
var ErrEngineNotReady = errors.New(errors.ErrCodeEngineNotReady, "recognition engine not ready")

// Service scans OCR output into deck lists.
type Service interface {
	Scan(ctx context.Context, req *ScanRequest) (*ScanResult, error)
	ScanBatch(ctx context.Context, reqs []*ScanRequest) ([]*BatchItem, error)
	// Swap installs r for every scan started afterwards.
	Swap(r *recognizer.Recognizer)
	Ready() bool
	Stats() Stats
}

// ScanRequest carries either decoded fragments or a raw OCR payload.
type ScanRequest struct {
	ID        string          `json:"id,omitempty"`
	Format    string          `json:"format,omitempty"`
	Fragments []scan.Fragment `json:"fragments,omitempty"`
	Payload   []byte          `json:"-"`
	Source    string          `json:"-"`
	Detailed  bool            `json:"detailed,omitempty"`
}

// ScanResult is the outcome of one scan. Resolutions and Assignments are
// only filled for detailed requests.
type ScanResult struct {
	ScanID      string                          `json:"scan_id"`
	Deck        *scan.Deck                      `json:"deck"`
	Cards       int                             `json:"cards"`
	Resolutions []recognizer.Resolution         `json:"resolutions,omitempty"`
	Assignments []recognizer.QuantityAssignment `json:"assignments,omitempty"`
	DurationMS  int64                           `json:"duration_ms"`
	CompletedAt time.Time                       `json:"completed_at"`
}

// BatchItem pairs one batch entry with its result or error.
type BatchItem struct {
	Index  int         `json:"index"`
	Result *ScanResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// Stats is a snapshot of the service state.
type Stats struct {
	Ready     bool      `json:"ready"`
	Entities  int       `json:"entities"`
	Keywords  int       `json:"keywords"`
	Scans     int64     `json:"scans"`
	Failures  int64     `json:"failures"`
	SwappedAt time.Time `json:"swapped_at,omitempty"`
}

// Config bounds batch work.
type Config struct {
	Concurrency int
	MaxBatch    int
}

type service struct {
	engine  atomic.Pointer[recognizer.Recognizer]
	cfg     Config
	metrics *prometheus.ScanMetrics
	logger  logging.Logger

	scans     atomic.Int64
	failures  atomic.Int64
	swappedAt atomic.Int64
}

// NewService creates a Service. r may be nil; the service then reports not
// ready until Swap is called.
func NewService(r *recognizer.Recognizer, cfg Config, metrics *prometheus.ScanMetrics, logger logging.Logger) Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 64
	}
	s := &service{
		cfg:     cfg,
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("scanning"),
	}
	if r != nil {
		s.Swap(r)
	}
	return s
}

func (s *service) Swap(r *recognizer.Recognizer) {
	if r == nil {
		return
	}
	s.engine.Store(r)
	s.swappedAt.Store(time.Now().UnixNano())

	st := r.Stats()
	prometheus.RecordCorpus(s.metrics, st.Entities, st.Keywords)
	s.logger.Info("recognizer installed", logging.Int("entities", st.Entities), logging.Int("keywords", st.Keywords))
}

func (s *service) Ready() bool { return s.engine.Load() != nil }

func (s *service) Stats() Stats {
	st := Stats{
		Scans:    s.scans.Load(),
		Failures: s.failures.Load(),
	}
	if r := s.engine.Load(); r != nil {
		es := r.Stats()
		st.Ready, st.Entities, st.Keywords = true, es.Entities, es.Keywords
	}
	if ns := s.swappedAt.Load(); ns != 0 {
		st.SwappedAt = time.Unix(0, ns).UTC()
	}
	return st
}

func (s *service) Scan(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	if req == nil {
		return nil, errors.InputError("scan request is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "scan cancelled")
	}
	engine := s.engine.Load()
	if engine == nil {
		return nil, ErrEngineNotReady
	}

	scanID := req.ID
	if scanID == "" {
		scanID = uuid.NewString()
	}
	source := req.Source
	if source == "" {
		source = SourceHTTP
	}
	logger := s.logger.With(logging.String(logging.FieldScanID, scanID))
	start := time.Now()

	fragments := req.Fragments
	if fragments == nil && len(req.Payload) > 0 {
		decoded, err := ocr.Decode(req.Format, req.Payload)
		if err != nil {
			return nil, s.fail(logger, source, start, err)
		}
		fragments = decoded
	}

	report, err := engine.ScanReport(fragments)
	if err != nil {
		return nil, s.fail(logger, source, start, err)
	}

	elapsed := time.Since(start)
	cards := report.Deck.Total()
	s.scans.Add(1)
	s.record(report, source, elapsed)

	logger.Info("scan completed",
		logging.Int("fragments", len(fragments)),
		logging.Int("cards", cards),
		logging.Int("main", report.Deck.Main.Total()),
		logging.Int("sideboard", report.Deck.Sideboard.Total()),
		logging.Duration("elapsed", elapsed))

	res := &ScanResult{
		ScanID:      scanID,
		Deck:        report.Deck,
		Cards:       cards,
		DurationMS:  elapsed.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	if req.Detailed {
		res.Resolutions = report.Resolutions
		res.Assignments = report.Assignments
	}
	return res, nil
}

func (s *service) fail(logger logging.Logger, source string, start time.Time, err error) error {
	s.failures.Add(1)
	prometheus.RecordScan(s.metrics, source, false, time.Since(start), 0)
	if errors.IsInputError(err) {
		prometheus.RecordError(s.metrics, "scanning", "input")
		logger.Warn("scan rejected", logging.Err(err))
	} else {
		prometheus.RecordError(s.metrics, "scanning", "internal")
		logger.Error("scan failed", logging.Err(err))
	}
	return err
}

func (s *service) record(report *recognizer.Report, source string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	for _, res := range report.Resolutions {
		prometheus.RecordFragment(s.metrics, string(res.Outcome), string(res.Method))
	}
	for _, a := range report.Assignments {
		prometheus.RecordMarker(s.metrics, a.Heuristic.String())
	}
	prometheus.RecordDeck(s.metrics, report.Deck.Main.Total(), report.Deck.Sideboard.Total())
	prometheus.RecordScan(s.metrics, source, true, elapsed, len(report.Cards))
}

// ScanBatch scans every request with at most Config.Concurrency scans in
// flight. Per-item failures are reported in the item; the returned error is
// reserved for problems with the batch as a whole.
func (s *service) ScanBatch(ctx context.Context, reqs []*ScanRequest) ([]*BatchItem, error) {
	if len(reqs) == 0 {
		return nil, errors.InputError("batch is empty")
	}
	if len(reqs) > s.cfg.MaxBatch {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "batch of %d exceeds the limit of %d", len(reqs), s.cfg.MaxBatch)
	}
	if !s.Ready() {
		return nil, ErrEngineNotReady
	}

	items := make([]*BatchItem, len(reqs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			item := &BatchItem{Index: i}
			res, err := s.Scan(gCtx, req)
			if err != nil {
				item.Error = err.Error()
				item.Code = string(errors.GetCode(err))
			} else {
				item.Result = res
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return items, errors.Wrap(err, errors.ErrCodeTimeout, "batch cancelled")
	}
	return items, nil
}
