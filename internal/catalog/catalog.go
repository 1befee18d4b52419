// Package catalog holds the static set of ambient tracks the soundboard knows.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Track identifies one loopable ambient sound.
type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Emoji   string `json:"emoji,omitempty"`
	Locator string `json:"locator"`
}

// Catalog is an immutable, ordered set of tracks.
type Catalog struct {
	tracks []Track
	index  map[string]int // lowercased id and name -> position
}

var ErrEmptyCatalog = errors.New("catalog has no tracks")

// Default returns the built-in ambient sound set.
func Default() *Catalog {
	c, _ := New([]Track{
		{ID: "rain", Name: "Rain", Emoji: "🌧️", Locator: "/sounds/rain_eq.mp3"},
		{ID: "fireplace", Name: "Fireplace", Emoji: "🔥", Locator: "/sounds/fire_trim.mp3"},
		{ID: "train", Name: "Train", Emoji: "🚂", Locator: "/sounds/train.mp3"},
		{ID: "birds", Name: "Birds", Emoji: "🐦‍⬛", Locator: "/sounds/birds.mp3"},
		{ID: "wind", Name: "Wind", Emoji: "🌬️", Locator: "/sounds/wind_trimmed.mp3"},
		{ID: "jazz", Name: "Jazz Loop", Emoji: "🎷", Locator: "/sounds/piano_trimmed.mp3"},
		{ID: "chimes", Name: "Chimes", Emoji: "🔔", Locator: "/sounds/chimes.mp3"},
		{ID: "angel-pad", Name: "Angel Pad", Emoji: "👼", Locator: "/sounds/angel_pad.mp3"},
	})
	return c
}

// New builds a catalog. IDs and names must be unique (case-insensitive) and
// every track needs an ID and a locator. A missing name defaults to the ID.
func New(tracks []Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		tracks: make([]Track, len(tracks)),
		index:  make(map[string]int, len(tracks)*2),
	}
	for i, t := range tracks {
		if t.ID == "" || t.Locator == "" {
			return nil, fmt.Errorf("track %d: id and locator are required", i)
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		for _, key := range []string{strings.ToLower(t.ID), strings.ToLower(t.Name)} {
			if j, ok := c.index[key]; ok && j != i {
				return nil, fmt.Errorf("track %q: duplicate key %q", t.ID, key)
			}
			c.index[key] = i
		}
		c.tracks[i] = t
	}
	return c, nil
}

// Load reads a JSON array of tracks from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(tracks)
}

// Lookup finds a track by ID or display name, ignoring case.
func (c *Catalog) Lookup(name string) (Track, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// Tracks returns a copy of all tracks in catalog order.
func (c *Catalog) Tracks() []Track {
	out := make([]Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}
