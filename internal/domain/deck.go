package domain

// DeckType names an enumerated card set.
type DeckType string

const (
	DeckFibonacci      DeckType = "fibonacci"
	DeckShortFibonacci DeckType = "shortFibonacci"
	DeckTShirt         DeckType = "tshirt"
	DeckPowersOfTwo    DeckType = "powersOfTwo"
)

// Decks maps each deck type to its permissible card labels.
// "?" and "☕" are valid cards in every deck; they never count toward averages.
var Decks = map[DeckType][]string{
	DeckFibonacci:      {"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", "☕"},
	DeckShortFibonacci: {"0", "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"},
	DeckTShirt:         {"XS", "S", "M", "L", "XL", "XXL", "?", "☕"},
	DeckPowersOfTwo:    {"1", "2", "4", "8", "16", "32", "64", "?", "☕"},
}

// NormalizeDeck falls back to fibonacci for empty or unknown deck types.
func NormalizeDeck(d DeckType) DeckType {
	if _, ok := Decks[d]; ok {
		return d
	}
	return DeckFibonacci
}
