// Package deck holds the fixed catalog of card sets a session can play with.
package deck

import (
	"sort"
	"strings"
)

// Default is the deck used when a requested name is not in the catalog.
const Default = "fibonacci"

var catalog = map[string][]string{
	"fibonacci":          {"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", "☕"},
	"modified_fibonacci": {"0", "½", "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"},
	"tshirt":             {"XS", "S", "M", "L", "XL", "XXL", "?"},
	"powers_of_two":      {"0", "1", "2", "4", "8", "16", "32", "64", "?"},
}

// Deck is a named, ordered set of card labels.
type Deck struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

// Resolve returns the named deck, or the default deck if the name is unknown.
func Resolve(name string) Deck {
	key := strings.ToLower(strings.TrimSpace(name))
	cards, ok := catalog[key]
	if !ok {
		key = Default
		cards = catalog[Default]
	}
	return Deck{Name: key, Cards: append([]string(nil), cards...)}
}

// Known reports whether name resolves to itself rather than to the default.
func Known(name string) bool {
	_, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Contains reports whether card is one of the deck's labels.
func Contains(card string, d Deck) bool {
	for _, c := range d.Cards {
		if c == card {
			return true
		}
	}
	return false
}

func (d Deck) Contains(card string) bool {
	return Contains(card, d)
}

// Names lists the catalog in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
