package render

import (
	"log"

	"github.com/satindergrewal/lofiboard/internal/catalog"
)

// Resolved is a mix entry bound to its catalog track.
type Resolved struct {
	Track catalog.Track
	Gain  float64
}

// Resolve binds every entry of spec to a catalog track, keeping spec order.
// Unknown names, and aliases of a track already in the mix, are skipped with
// a warning and returned in skipped. An empty result is a valid silent mix.
func Resolve(spec MixSpec, cat *catalog.Catalog) (resolved []Resolved, skipped []string) {
	used := make(map[string]struct{}, len(spec.Tracks))
	for _, e := range spec.Tracks {
		t, ok := cat.Lookup(e.Track)
		if !ok {
			log.Printf("Skipping unknown track %q", e.Track)
			skipped = append(skipped, e.Track)
			continue
		}
		if _, dup := used[t.ID]; dup {
			log.Printf("Skipping %q: track %s already in mix", e.Track, t.ID)
			skipped = append(skipped, e.Track)
			continue
		}
		used[t.ID] = struct{}{}
		resolved = append(resolved, Resolved{Track: t, Gain: e.Gain})
	}
	return resolved, skipped
}
