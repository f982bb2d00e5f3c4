package card_recognizer

import (
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// Allocate splits cards into the main deck and the sideboard. Cards are taken
// in order and fill the main deck until it reaches
// policy.PrimaryCapacity(total); the remainder of each card goes to the
// sideboard. Duplicate names merge within each pile.
func Allocate(cards []RecognizedCard, policy CapacityPolicy) *scan.Deck {
	total := 0
	for _, c := range cards {
		total += c.Multiplier
	}
	capacity := policy.PrimaryCapacity(total)

	deck := scan.NewDeck()
	placed := 0
	for _, c := range cards {
		main := clamp(c.Multiplier, 0, capacity-placed)
		deck.Main.Add(c.Name, main)
		deck.Sideboard.Add(c.Name, c.Multiplier-main)
		placed += c.Multiplier
	}
	return deck
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
