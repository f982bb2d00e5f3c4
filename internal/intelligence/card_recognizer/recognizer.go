// Package card_recognizer turns OCR fragments of a photographed card
// collection into a deck list.
//
// A Recognizer owns two approximate dictionaries: card names and keywords
// that look like names but must be ignored. Each fragment is resolved against
// them, quantity markers such as "x4" are attached to the nearest recognized
// card, and the quantified cards are split into a main deck and a sideboard.
//
// A Recognizer is immutable once NewRecognizer returns and may be shared by
// any number of concurrent scans.
package card_recognizer

import (
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/intelligence/fuzzy"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// Recognizer is the recognition engine.
type Recognizer struct {
	cfg      Config
	entities *fuzzy.Index
	keywords *fuzzy.Index
	logger   logging.Logger
}

// Stats describes the dictionaries a Recognizer was built with.
type Stats struct {
	Entities int `json:"entities"`
	Keywords int `json:"keywords"`
}

// NewRecognizer indexes entities, then extra (names injected by the caller,
// for example a cube list), and keywords. Empty and duplicate names are
// skipped. It fails with a ConfigurationError when cfg is invalid or when no
// entity name is left to match against.
func NewRecognizer(entities, keywords, extra []string, cfg Config, logger logging.Logger) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Recognizer{
		cfg:      cfg,
		entities: fuzzy.NewIndex(cfg.MaxEntityDistance, cfg.PrefixLength),
		keywords: fuzzy.NewIndex(cfg.MaxKeywordDistance, cfg.PrefixLength),
		logger:   logging.OrNop(logger).Named("recognizer"),
	}
	r.entities.AddAll(entities)
	added := r.entities.AddAll(extra)
	if r.entities.Len() == 0 {
		return nil, errors.ConfigurationError("entity corpus is empty")
	}
	r.keywords.AddAll(keywords)

	r.logger.Info("recognizer ready",
		logging.Int("entities", r.entities.Len()),
		logging.Int("extra_entities", added),
		logging.Int("keywords", r.keywords.Len()),
	)
	return r, nil
}

// Config returns the configuration the recognizer was built with.
func (r *Recognizer) Config() Config { return r.cfg }

// Stats returns dictionary sizes.
func (r *Recognizer) Stats() Stats {
	return Stats{Entities: r.entities.Len(), Keywords: r.keywords.Len()}
}

// Recognize validates fragments, puts them in reading order and resolves
// each one. It returns the recognized cards (multiplier 1) and one
// Resolution per fragment, both in reading order.
func (r *Recognizer) Recognize(fragments []scan.Fragment) ([]RecognizedCard, []Resolution, error) {
	cards, resolutions, _, err := r.recognize(fragments)
	return cards, resolutions, err
}

func (r *Recognizer) recognize(fragments []scan.Fragment) ([]RecognizedCard, []Resolution, []scan.Fragment, error) {
	if err := scan.ValidateFragments(fragments); err != nil {
		return nil, nil, nil, err
	}
	sorted := scan.SortFragments(fragments)

	cards := make([]RecognizedCard, 0, len(sorted))
	resolutions := make([]Resolution, 0, len(sorted))
	for _, f := range sorted {
		res := r.resolve(f.Text)
		res.Box = f.Box
		r.audit(res)
		resolutions = append(resolutions, res)
		if res.Outcome == OutcomeEntity {
			cards = append(cards, RecognizedCard{Box: f.Box, Name: res.Entity, Multiplier: 1})
		}
	}
	return cards, resolutions, sorted, nil
}

// Allocate splits cards with the recognizer's capacity policy.
func (r *Recognizer) Allocate(cards []RecognizedCard) *scan.Deck {
	return Allocate(cards, r.cfg.Capacity)
}

// Scan runs the whole pipeline and returns the deck.
func (r *Recognizer) Scan(fragments []scan.Fragment) (*scan.Deck, error) {
	report, err := r.ScanReport(fragments)
	if err != nil {
		return nil, err
	}
	return report.Deck, nil
}

// ScanReport runs the whole pipeline and returns every intermediate result
// along with the deck.
func (r *Recognizer) ScanReport(fragments []scan.Fragment) (*Report, error) {
	cards, resolutions, sorted, err := r.recognize(fragments)
	if err != nil {
		return nil, err
	}
	assignments := r.AssignQuantities(sorted, cards)
	deck := r.Allocate(cards)

	r.logger.Debug("scan complete",
		logging.Int("fragments", len(fragments)),
		logging.Int("cards", len(cards)),
		logging.Int("main", deck.Main.Total()),
		logging.Int("sideboard", deck.Sideboard.Total()),
	)
	return &Report{
		Cards:       cards,
		Resolutions: resolutions,
		Assignments: assignments,
		Deck:        deck,
	}, nil
}
