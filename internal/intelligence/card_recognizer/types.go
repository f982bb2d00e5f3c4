package card_recognizer

import (
	"fmt"

	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// Outcome is the classification of a single fragment.
type Outcome string

const (
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeRejected  Outcome = "rejected"
	OutcomeEntity    Outcome = "entity"
)

// ResolutionMethod names the decision point that settled a fragment.
type ResolutionMethod string

const (
	MethodLength          ResolutionMethod = "length"
	MethodKeyword         ResolutionMethod = "keyword"
	MethodExact           ResolutionMethod = "exact"
	MethodTruncatedPrefix ResolutionMethod = "truncated_prefix"
	MethodFuzzy           ResolutionMethod = "fuzzy"
)

// Reasons recorded in the audit trail.
const (
	ReasonTooShort          = "too_short"
	ReasonTooLong           = "too_long"
	ReasonKeywordMatch      = "keyword_match"
	ReasonExactMatch        = "exact_match"
	ReasonPrefixMatch       = "prefix_match"
	ReasonCorrected         = "corrected"
	ReasonNotFound          = "not_found"
	ReasonCorrectionTooLong = "correction_too_long"
)

// Resolution records how one fragment was classified.
type Resolution struct {
	Box        scan.BoundingBox `json:"box,omitempty"`
	Text       string           `json:"text"`
	Normalized string           `json:"normalized"`
	Outcome    Outcome          `json:"outcome"`
	Entity     string           `json:"entity,omitempty"`
	Keyword    string           `json:"keyword,omitempty"`
	Method     ResolutionMethod `json:"method"`
	Distance   int              `json:"distance"`
	Reason     string           `json:"reason"`
}

// RecognizedCard is a fragment resolved to an entity, with its quantity.
type RecognizedCard struct {
	Box        scan.BoundingBox `json:"box"`
	Name       string           `json:"name"`
	Multiplier int              `json:"multiplier"`
}

// MarkerHeuristic selects how a quantity marker picks its card.
type MarkerHeuristic int

const (
	// HeuristicDirectional is used for markers written before the digit
	// ("x4"): only cards whose origin is not below or right of the marker
	// are eligible.
	HeuristicDirectional MarkerHeuristic = iota
	// HeuristicNearest is used for markers written after the digit ("4x").
	HeuristicNearest
)

func (h MarkerHeuristic) String() string {
	switch h {
	case HeuristicDirectional:
		return "directional"
	case HeuristicNearest:
		return "nearest"
	default:
		return fmt.Sprintf("unknown(%d)", int(h))
	}
}

// MarshalText encodes the heuristic by name.
func (h MarkerHeuristic) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// QuantityAssignment records one marker applied to a card.
type QuantityAssignment struct {
	Marker     string           `json:"marker"`
	Box        scan.BoundingBox `json:"box"`
	Heuristic  MarkerHeuristic  `json:"heuristic"`
	Multiplier int              `json:"multiplier"`
	CardIndex  int              `json:"card_index"`
	Card       string           `json:"card"`
}

// Report is the detailed result of a scan.
type Report struct {
	Cards       []RecognizedCard     `json:"cards"`
	Resolutions []Resolution         `json:"resolutions"`
	Assignments []QuantityAssignment `json:"assignments"`
	Deck        *scan.Deck           `json:"deck"`
}

// CapacityPolicy bounds the primary pile: it holds at least MinPrimary units
// and the overflow only receives what exceeds max(MinPrimary, total-OverflowAllowance).
type CapacityPolicy struct {
	MinPrimary        int `mapstructure:"min_primary" yaml:"min_primary" json:"min_primary"`
	OverflowAllowance int `mapstructure:"overflow_allowance" yaml:"overflow_allowance" json:"overflow_allowance"`
}

// DefaultCapacityPolicy is the 60-card main deck with a 15-card sideboard.
func DefaultCapacityPolicy() CapacityPolicy {
	return CapacityPolicy{MinPrimary: 60, OverflowAllowance: 15}
}

// PrimaryCapacity returns the size of the primary pile for total units.
func (p CapacityPolicy) PrimaryCapacity(total int) int {
	if c := total - p.OverflowAllowance; c > p.MinPrimary {
		return c
	}
	return p.MinPrimary
}

// Config holds every tunable of the recognizer.
type Config struct {
	EntityRatio        float64        `mapstructure:"entity_ratio" yaml:"entity_ratio" json:"entity_ratio"`
	KeywordRatio       float64        `mapstructure:"keyword_ratio" yaml:"keyword_ratio" json:"keyword_ratio"`
	MaxEntityDistance  int            `mapstructure:"max_entity_distance" yaml:"max_entity_distance" json:"max_entity_distance"`
	MaxKeywordDistance int            `mapstructure:"max_keyword_distance" yaml:"max_keyword_distance" json:"max_keyword_distance"`
	MinTextLength      int            `mapstructure:"min_text_length" yaml:"min_text_length" json:"min_text_length"`
	MaxTextLength      int            `mapstructure:"max_text_length" yaml:"max_text_length" json:"max_text_length"`
	LengthSlack        int            `mapstructure:"length_slack" yaml:"length_slack" json:"length_slack"`
	PrefixLength       int            `mapstructure:"prefix_length" yaml:"prefix_length" json:"prefix_length"`
	Capacity           CapacityPolicy `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		EntityRatio:        0.5,
		KeywordRatio:       0.2,
		MaxEntityDistance:  6,
		MaxKeywordDistance: 3,
		MinTextLength:      3,
		MaxTextLength:      30,
		LengthSlack:        7,
		PrefixLength:       7,
		Capacity:           DefaultCapacityPolicy(),
	}
}

// Validate returns a ConfigurationError describing the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.EntityRatio <= 0 || c.EntityRatio > 1:
		return errors.ConfigurationError("entity_ratio must be in (0, 1]").WithDetail(fmt.Sprint(c.EntityRatio))
	case c.KeywordRatio < 0 || c.KeywordRatio > 1:
		return errors.ConfigurationError("keyword_ratio must be in [0, 1]").WithDetail(fmt.Sprint(c.KeywordRatio))
	case c.MaxEntityDistance < 0:
		return errors.ConfigurationError("max_entity_distance must not be negative")
	case c.MaxKeywordDistance < 0:
		return errors.ConfigurationError("max_keyword_distance must not be negative")
	case c.MinTextLength < 0 || c.MaxTextLength < c.MinTextLength:
		return errors.ConfigurationError("text length bounds are inverted").
			WithDetail(fmt.Sprintf("min=%d max=%d", c.MinTextLength, c.MaxTextLength))
	case c.LengthSlack < 0:
		return errors.ConfigurationError("length_slack must not be negative")
	case c.PrefixLength <= 0:
		return errors.ConfigurationError("prefix_length must be positive")
	case c.Capacity.MinPrimary < 0 || c.Capacity.OverflowAllowance < 0:
		return errors.ConfigurationError("capacity policy must not be negative")
	}
	return nil
}

// UnmarshalText decodes a heuristic name.
func (h *MarkerHeuristic) UnmarshalText(b []byte) error {
	switch string(b) {
	case "directional":
		*h = HeuristicDirectional
	case "nearest":
		*h = HeuristicNearest
	default:
		return errors.InvalidParam("unknown marker heuristic").WithDetail(string(b))
	}
	return nil
}
