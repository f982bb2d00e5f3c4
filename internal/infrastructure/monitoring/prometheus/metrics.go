package prometheus

import (
	"strconv"
	"time"
)

// ScanMetrics holds every metric family deckscan exports.
type ScanMetrics struct {
	// Recognition
	ScansTotal      CounterVec
	ScanDuration    HistogramVec
	FragmentsTotal  CounterVec
	CardsRecognized CounterVec
	DeckUnitsTotal  CounterVec
	MarkersAssigned CounterVec

	// Corpus
	CorpusEntries      GaugeVec
	CorpusLoadDuration HistogramVec
	CorpusReloadsTotal CounterVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Infrastructure
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec

	// Health
	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScanDurationBuckets   = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultCorpusDurationBuckets = []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120}
)

// NewScanMetrics registers all metric families on collector.
func NewScanMetrics(collector MetricsCollector) *ScanMetrics {
	m := &ScanMetrics{}

	m.ScansTotal = collector.RegisterCounter("scans_total", "Scans processed", "source", "status")
	m.ScanDuration = collector.RegisterHistogram("scan_duration_seconds", "Time spent recognizing one scan", DefaultScanDurationBuckets, "source")
	m.FragmentsTotal = collector.RegisterCounter("fragments_total", "Fragments resolved by outcome and method", "outcome", "method")
	m.CardsRecognized = collector.RegisterCounter("cards_recognized_total", "Recognized card fragments", "source")
	m.DeckUnitsTotal = collector.RegisterCounter("deck_units_total", "Card units allocated per pile", "pile")
	m.MarkersAssigned = collector.RegisterCounter("quantity_markers_total", "Quantity markers assigned to cards", "heuristic")

	m.CorpusEntries = collector.RegisterGauge("corpus_entries", "Names held by the active recognizer", "index")
	m.CorpusLoadDuration = collector.RegisterHistogram("corpus_load_duration_seconds", "Corpus load duration", DefaultCorpusDurationBuckets, "kind")
	m.CorpusReloadsTotal = collector.RegisterCounter("corpus_reloads_total", "Corpus reload attempts", "status")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessagesTotal = collector.RegisterCounter("mq_messages_total", "Messages handled", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// NewNoopScanMetrics returns metrics that record nothing.
func NewNoopScanMetrics() *ScanMetrics {
	return NewScanMetrics(NewNoopCollector())
}

// Helpers. Every helper accepts a nil *ScanMetrics.

func RecordScan(m *ScanMetrics, source string, success bool, duration time.Duration, cards int) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(source, status(success)).Inc()
	m.ScanDuration.WithLabelValues(source).Observe(duration.Seconds())
	if cards > 0 {
		m.CardsRecognized.WithLabelValues(source).Add(float64(cards))
	}
}

func RecordFragment(m *ScanMetrics, outcome, method string) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(outcome, method).Inc()
}

func RecordDeck(m *ScanMetrics, main, sideboard int) {
	if m == nil {
		return
	}
	m.DeckUnitsTotal.WithLabelValues("main").Add(float64(main))
	m.DeckUnitsTotal.WithLabelValues("sideboard").Add(float64(sideboard))
}

func RecordMarker(m *ScanMetrics, heuristic string) {
	if m == nil {
		return
	}
	m.MarkersAssigned.WithLabelValues(heuristic).Inc()
}

func RecordCorpus(m *ScanMetrics, entities, keywords int) {
	if m == nil {
		return
	}
	m.CorpusEntries.WithLabelValues("entities").Set(float64(entities))
	m.CorpusEntries.WithLabelValues("keywords").Set(float64(keywords))
}

func RecordCorpusReload(m *ScanMetrics, success bool) {
	if m == nil {
		return
	}
	m.CorpusReloadsTotal.WithLabelValues(status(success)).Inc()
}

func RecordCorpusLoad(m *ScanMetrics, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CorpusLoadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordHTTPRequest(m *ScanMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordCacheAccess(m *ScanMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordMessage(m *ScanMetrics, topic string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, status(success)).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func RecordError(m *ScanMetrics, component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
