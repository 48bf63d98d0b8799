package cache

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func newTestCache(t *testing.T, now *time.Time) *PayloadCache {
	t.Helper()
	c := New(Config{Dir: t.TempDir(), MaxFiles: 2, MaxAge: time.Hour}, testLogger)
	c.now = func() time.Time { return *now }
	return c
}

func TestDisabledCache(t *testing.T) {
	if c := New(Config{Dir: t.TempDir()}, testLogger); c != nil {
		t.Error("zero MaxAge should disable the cache")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	body := []byte(`{"count":"1","fields":["des"],"data":[["2025 AB"]]}`)
	if err := c.Put("body=Earth&neo=true", body, now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ts, ok := c.Get("body=Earth&neo=true")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(body) {
		t.Errorf("data = %q, want %q", got, body)
	}
	if !ts.Equal(now) {
		t.Errorf("ts = %v, want %v", ts, now)
	}

	if _, _, ok := c.Get("body=Mars&neo=true"); ok {
		t.Error("different query should miss")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestGetExpired(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	if err := c.Put("q", []byte(`{}`), now); err != nil {
		t.Fatal(err)
	}
	now = now.Add(61 * time.Minute)
	if _, _, ok := c.Get("q"); ok {
		t.Error("entry older than MaxAge should miss")
	}
}

func TestGetReturnsNewest(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	c.Put("q", []byte(`{"v":1}`), now.Add(-10*time.Minute))
	c.Put("q", []byte(`{"v":2}`), now.Add(-5*time.Minute))

	got, _, ok := c.Get("q")
	if !ok || string(got) != `{"v":2}` {
		t.Errorf("Get = %q, %v, want newest entry", got, ok)
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	// An expired entry for another query is removed on the next write.
	c.Put("other", []byte(`{}`), now.Add(-2*time.Hour))
	for i := 0; i < 4; i++ {
		if err := c.Put("q", []byte(`{}`), now.Add(time.Duration(i-4)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(c.config.Dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 2 {
		t.Fatalf("files = %v, want 2 (MaxFiles for q, expired other removed)", names)
	}
	for _, n := range names {
		if !strings.HasPrefix(n, "cad_"+keyFor("q")+"_") {
			t.Errorf("unexpected file %s", n)
		}
	}
}

func TestCorruptFileMisses(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	name := c.config.Dir + "/cad_" + keyFor("q") + "_" + "1736942400" + ".json.sz"
	if err := os.WriteFile(name, []byte("not snappy"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := c.Get("q"); ok {
		t.Error("corrupt file should miss")
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"cad_abc123_1700000000.json.sz", true},
		{"cad_abc123_x.json.sz", false},
		{"cad__1700000000.json.sz", false},
		{"notes_1700000000.txt", false},
		{"cad_abc123_1700000000.json.sz123456", false},
	}
	for _, tt := range tests {
		if _, ok := parseName(tt.name); ok != tt.ok {
			t.Errorf("parseName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
		}
	}
}
