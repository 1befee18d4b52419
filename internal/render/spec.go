// Package render turns a mix specification into a fixed-length stereo WAV by
// looping and summing decoded catalog tracks.
package render

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrDuplicateTrack = errors.New("duplicate track in mix")
	ErrGain           = errors.New("gain must be within [0, 1]")
	ErrEmptyTrack     = errors.New("track name is empty")
)

// Entry is one track of a mix and its linear gain.
type Entry struct {
	Track string  `json:"track"`
	Gain  float64 `json:"gain"`
}

// MixSpec is an ordered list of tracks with gains: a preset or a render request.
type MixSpec struct {
	Tracks []Entry `json:"tracks"`
}

// Validate checks gains and rejects repeated track names (case-insensitive).
// Names are not checked against any catalog.
func (s MixSpec) Validate() error {
	seen := make(map[string]struct{}, len(s.Tracks))
	for _, e := range s.Tracks {
		key := strings.ToLower(strings.TrimSpace(e.Track))
		if key == "" {
			return ErrEmptyTrack
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTrack, e.Track)
		}
		seen[key] = struct{}{}
		if math.IsNaN(e.Gain) || e.Gain < 0 || e.Gain > 1 {
			return fmt.Errorf("%w: %q has %v", ErrGain, e.Track, e.Gain)
		}
	}
	return nil
}

// ParsePairs builds a MixSpec from "track=gain" arguments. A bare track name
// gets defaultGain.
func ParsePairs(args []string, defaultGain float64) (MixSpec, error) {
	var spec MixSpec
	for _, arg := range args {
		name, gainStr, hasGain := strings.Cut(arg, "=")
		gain := defaultGain
		if hasGain {
			g, err := strconv.ParseFloat(strings.TrimSpace(gainStr), 64)
			if err != nil {
				return MixSpec{}, fmt.Errorf("parse gain in %q: %w", arg, err)
			}
			gain = g
		}
		spec.Tracks = append(spec.Tracks, Entry{Track: strings.TrimSpace(name), Gain: gain})
	}
	return spec, spec.Validate()
}
