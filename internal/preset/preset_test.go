package preset

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/satindergrewal/lofiboard/internal/render"
)

func TestNewPreset(t *testing.T) {
	spec := render.MixSpec{Tracks: []render.Entry{{Track: "rain", Gain: 0.5}, {Track: "jazz", Gain: 0.3}}}
	p, err := New("  Rainy Night ", spec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ID == "" {
		t.Error("ID is empty")
	}
	if p.Name != "Rainy Night" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	q, _ := New("Rainy Night", spec)
	if q.ID == p.ID {
		t.Error("two presets share an id")
	}
}

func TestNewPresetRejects(t *testing.T) {
	if _, err := New(" ", render.MixSpec{}); !errors.Is(err, ErrNoName) {
		t.Errorf("err = %v, want ErrNoName", err)
	}
	bad := render.MixSpec{Tracks: []render.Entry{{Track: "rain", Gain: 2}}}
	if _, err := New("loud", bad); !errors.Is(err, render.ErrGain) {
		t.Errorf("err = %v, want ErrGain", err)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Rainy Night", "rainy-night.wav"},
		{"lofi_v2.final", "lofi_v2-final.wav"},
		{"../../etc/passwd", "etcpasswd.wav"},
		{"☕", "mix.wav"},
	}
	for _, tt := range tests {
		if got := (Preset{Name: tt.name}).Filename(); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// exerciseStore runs the Store contract against s, which must start empty.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if list, err := s.List(ctx); err != nil || len(list) != 0 {
		t.Fatalf("List on empty store = %v, %v", list, err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := Preset{ID: "a", Name: "First", CreatedAt: now,
		Spec: render.MixSpec{Tracks: []render.Entry{{Track: "rain", Gain: 0.5}}}}
	second := Preset{ID: "b", Name: "Second", CreatedAt: now.Add(time.Second)}
	for _, p := range []Preset{second, first} {
		if err := s.Save(ctx, p); err != nil {
			t.Fatalf("Save(%s): %v", p.ID, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("List = %+v, want a then b", list)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "First" || len(got.Spec.Tracks) != 1 || got.Spec.Tracks[0] != first.Spec.Tracks[0] {
		t.Errorf("Get = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	first.Name = "Renamed"
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(ctx, "a"); got.Name != "Renamed" {
		t.Errorf("overwrite kept name %q", got.Name)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if err := s.Save(ctx, Preset{Name: "no id"}); err == nil {
		t.Error("Save without id should fail")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SOUNDBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SOUNDBOARD_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := DialRedis(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	defer rdb.Close()

	key := "SOUNDBOARD_TEST_PRESETS_" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, key)
	exerciseStore(t, NewRedisStore(rdb, key))
}
