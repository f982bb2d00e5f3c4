package card_recognizer

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
)

// Resolve classifies one piece of OCR text. The text is normalized first;
// the decision points are tried in a fixed order and the first decisive one
// wins: length, keyword, exact, truncated prefix, fuzzy.
func (r *Recognizer) Resolve(text string) Resolution {
	res := r.resolve(text)
	r.audit(res)
	return res
}

func (r *Recognizer) resolve(text string) Resolution {
	norm := Normalize(text)
	res := Resolution{Text: text, Normalized: norm, Outcome: OutcomeUnmatched}
	n := utf8.RuneCountInString(norm)

	// Length.
	if n < r.cfg.MinTextLength {
		res.Method, res.Reason = MethodLength, ReasonTooShort
		return res
	}
	if n > r.cfg.MaxTextLength {
		res.Method, res.Reason = MethodLength, ReasonTooLong
		return res
	}

	// Keyword rejection takes precedence over any entity match.
	kwTol := tolerance(r.cfg.KeywordRatio, n, r.cfg.MaxKeywordDistance)
	if m, ok := r.keywords.Lookup(norm, kwTol); ok {
		res.Outcome = OutcomeRejected
		res.Method, res.Reason = MethodKeyword, ReasonKeywordMatch
		res.Keyword, res.Distance = m.Term, m.Distance
		return res
	}

	// Exact.
	if r.entities.Contains(norm) {
		res.Outcome, res.Entity = OutcomeEntity, norm
		res.Method, res.Reason = MethodExact, ReasonExactMatch
		return res
	}

	// Truncated prefix: "Black L.." names a card cut off by a sleeve.
	if i := strings.Index(norm, ".."); i >= 0 {
		prefix := norm[:i]
		threshold := int(math.Floor(r.cfg.EntityRatio * float64(utf8.RuneCountInString(prefix))))
		if m, ok := r.entities.LookupPrefix(prefix, threshold); ok {
			res.Outcome, res.Entity, res.Distance = OutcomeEntity, m.Term, m.Distance
			res.Method, res.Reason = MethodTruncatedPrefix, ReasonPrefixMatch
			return res
		}
	}

	// Fuzzy whole-string match.
	stripped := stripPeriods(norm)
	sn := utf8.RuneCountInString(stripped)
	res.Method = MethodFuzzy
	m, ok := r.entities.Lookup(stripped, tolerance(r.cfg.EntityRatio, sn, r.cfg.MaxEntityDistance))
	if !ok {
		res.Reason = ReasonNotFound
		return res
	}
	res.Distance = m.Distance
	if sn >= utf8.RuneCountInString(m.Term)+r.cfg.LengthSlack {
		res.Entity = m.Term
		res.Reason = ReasonCorrectionTooLong
		return res
	}
	res.Outcome, res.Entity, res.Reason = OutcomeEntity, m.Term, ReasonCorrected
	return res
}

// tolerance is min(max, floor(ratio*length)).
func tolerance(ratio float64, length, max int) int {
	t := int(math.Floor(ratio * float64(length)))
	if t > max {
		return max
	}
	return t
}

func (r *Recognizer) audit(res Resolution) {
	fields := []logging.Field{
		logging.String(logging.FieldFragment, res.Text),
		logging.String(logging.FieldNormalized, res.Normalized),
		logging.String(logging.FieldOutcome, string(res.Outcome)),
		logging.String(logging.FieldMethod, string(res.Method)),
		logging.String(logging.FieldReason, res.Reason),
		logging.Int(logging.FieldDistance, res.Distance),
	}
	switch {
	case res.Entity != "":
		fields = append(fields, logging.String(logging.FieldEntity, res.Entity))
	case res.Keyword != "":
		fields = append(fields, logging.String("keyword", res.Keyword))
	}
	r.logger.Debug("fragment resolved", fields...)
}
