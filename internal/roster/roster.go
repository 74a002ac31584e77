// Package roster holds the catalog of characters a player can pick as their
// secret. A Roster is built once at startup and shared read-only by every
// session.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyRoster = errors.New("roster has no characters")

type Character struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type Roster struct {
	characters []Character
	index      map[string]int
}

// New validates the entries and freezes them in the given order.
func New(characters []Character) (*Roster, error) {
	if len(characters) == 0 {
		return nil, ErrEmptyRoster
	}

	r := &Roster{
		characters: make([]Character, 0, len(characters)),
		index:      make(map[string]int, len(characters)),
	}
	for i, c := range characters {
		c.ID = strings.TrimSpace(c.ID)
		c.DisplayName = strings.TrimSpace(c.DisplayName)
		if c.ID == "" {
			return nil, fmt.Errorf("roster entry %d: empty id", i)
		}
		if c.DisplayName == "" {
			return nil, fmt.Errorf("roster entry %q: empty display name", c.ID)
		}
		if _, dup := r.index[c.ID]; dup {
			return nil, fmt.Errorf("roster entry %q: duplicate id", c.ID)
		}
		r.index[c.ID] = len(r.characters)
		r.characters = append(r.characters, c)
	}
	return r, nil
}

// Load reads a JSON array of {id, displayName} objects.
func Load(src io.Reader) (*Roster, error) {
	var characters []Character
	if err := json.NewDecoder(src).Decode(&characters); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return New(characters)
}

func (r *Roster) Lookup(id string) (Character, bool) {
	i, ok := r.index[id]
	if !ok {
		return Character{}, false
	}
	return r.characters[i], true
}

func (r *Roster) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Position returns the catalog position of id, or -1 when unknown.
func (r *Roster) Position(id string) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

func (r *Roster) Len() int { return len(r.characters) }

// All returns a copy so callers can't reorder the catalog.
func (r *Roster) All() []Character {
	out := make([]Character, len(r.characters))
	copy(out, r.characters)
	return out
}
