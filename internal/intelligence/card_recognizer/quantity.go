package card_recognizer

import (
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// AssignQuantities applies every quantity marker among fragments to the
// nearest recognized card and returns the assignments in fragment order.
// fragments must already be in reading order. When several markers pick the
// same card the last one wins.
func (r *Recognizer) AssignQuantities(fragments []scan.Fragment, cards []RecognizedCard) []QuantityAssignment {
	if len(cards) == 0 {
		return nil
	}
	var out []QuantityAssignment
	for _, f := range fragments {
		m, ok := parseMarker(f.Text)
		if !ok {
			continue
		}
		i := nearestCard(cards, f.Box, m.heuristic)
		cards[i].Multiplier = m.count

		a := QuantityAssignment{
			Marker:     f.Text,
			Box:        f.Box,
			Heuristic:  m.heuristic,
			Multiplier: m.count,
			CardIndex:  i,
			Card:       cards[i].Name,
		}
		out = append(out, a)
		r.logger.Debug("quantity assigned",
			logging.String("marker", a.Marker),
			logging.String("heuristic", a.Heuristic.String()),
			logging.String(logging.FieldEntity, a.Card),
			logging.Int("multiplier", a.Multiplier),
		)
	}
	return out
}

// nearestCard returns the index of the card the marker at box applies to.
// Under the directional heuristic a card is eligible only when its origin is
// neither right of nor below the marker's origin; if no card is eligible the
// first card is used. Ties keep the earlier card.
func nearestCard(cards []RecognizedCard, box scan.BoundingBox, h MarkerHeuristic) int {
	mx, my := box.Origin()
	best, bestDist := -1, 0
	for i, c := range cards {
		if h == HeuristicDirectional {
			cx, cy := c.Box.Origin()
			if cx > mx || cy > my {
				continue
			}
		}
		d := c.Box.SquaredDistance(box)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
