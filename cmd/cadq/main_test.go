package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/closeapproach/internal/cad"
)

const neoPayload = `{"signature":{"version":"1.5"},"count":"2",` +
	`"fields":["des","orbit_id","jd","cd","dist","dist_min","dist_max","v_rel","v_inf","t_sigma_f","h"],` +
	`"data":[["2025 AB","3","2460690.6","2025-Jan-15 03:20","0.0123","0.012","0.013","7.5","7.4","< 00:01","26.1"],` +
	`["2025 CD","1","2460700.1","2025-Jan-25 14:02","0.0301","0.03","0.031","11.02",null,"00:12","24.9"]]}`

const cometPayload = `{"signature":{"version":"1.5"},"count":"1",` +
	`"fields":["des","orbit_id","jd","cd","dist","dist_min","dist_max","v_rel","v_inf","t_sigma_f","h"],` +
	`"data":[["C/2024 X1","2","2460705.5","2025-Jan-30 00:00","0.0402","0.04","0.041","42.1","42.0","01:00",null]]}`

// provider serves neo or comet payloads and records the queries it saw.
type provider struct {
	mu      sync.Mutex
	queries []string
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.queries = append(p.queries, r.URL.RawQuery)
	p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("comet") == "true" {
		io.WriteString(w, cometPayload)
		return
	}
	io.WriteString(w, neoPayload)
}

func noConfig(t *testing.T) []string {
	return []string{"XDG_CONFIG_HOME=" + t.TempDir()}
}

func TestRunOneShot(t *testing.T) {
	p := &provider{}
	srv := httptest.NewServer(p)
	defer srv.Close()

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{
		"--source-url", srv.URL,
		"--body", "mars", "--type", "both", "--date-min", "2025-01-01", "--days", "45",
		"--csv", csvPath, "--trend",
	}, noConfig(t))

	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "Designation")
	assert.Contains(t, out.String(), "Distance (AU)")
	assert.Contains(t, out.String(), "C/2024 X1")
	assert.Contains(t, out.String(), "3 close approaches to Mars.")
	assert.Contains(t, out.String(), "Trend: ")

	require.Len(t, p.queries, 2)
	assert.Contains(t, p.queries[0], "neo=true")
	assert.Contains(t, p.queries[1], "comet=true")
	assert.Contains(t, p.queries[0], "date-max=2025-02-15")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestRunUsesConfigFile(t *testing.T) {
	p := &provider{}
	srv := httptest.NewServer(p)
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cadq"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cadq", "config.json"), []byte(`{
		// LD by default
		"unit": "LD",
		"limit": 20,
		"source_url": "`+srv.URL+`",
	}`), 0o600))

	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{"--limit", "5"}, []string{"XDG_CONFIG_HOME=" + dir})

	require.Equal(t, 0, code, errOut.String())
	require.Len(t, p.queries, 1)
	assert.Contains(t, p.queries[0], "dist-max=10LD")
	assert.Contains(t, p.queries[0], "limit=5")
	assert.Contains(t, out.String(), "Distance (LD)")
}

func TestRunProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"invalid value for date-min"}`)
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{"--source-url", srv.URL}, noConfig(t))

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "invalid value for date-min")
}

func TestRunRejectsBadFlags(t *testing.T) {
	tests := [][]string{
		{"--body", "Pluto"},
		{"--limit", "0"},
		{"--unit", "parsec"},
		{"--nope"},
		{"extra-arg"},
		{"--date-max", "2025-03-01", "--days", "30"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Equal(t, 2, run(&out, &errOut, args, noConfig(t)))
			assert.Contains(t, errOut.String(), "error:")
		})
	}
}

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run(&out, &errOut, []string{"--help"}, noConfig(t)))
	assert.Contains(t, out.String(), "Usage: cadq")
}

type fakeSearcher struct {
	result *cad.Result
	err    error
	calls  []cad.Query
}

func (f *fakeSearcher) Run(_ context.Context, q cad.Query) (*cad.Result, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Query = q
	return &res, nil
}

func testShell(t *testing.T, runner searcher) (*shell, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	opts, err := parseFlags(nil, noConfig(t))
	require.NoError(t, err)
	return newShell(&out, runner, opts, logger), &out
}

func decodeRows(t *testing.T, body string) cad.RowSet {
	t.Helper()
	p, err := cad.DecodePayload([]byte(body))
	require.NoError(t, err)
	return cad.Normalize(p, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestShellSession(t *testing.T) {
	runner := &fakeSearcher{result: &cad.Result{Rows: decodeRows(t, neoPayload)}}
	sh, out := testShell(t, runner)
	ctx := context.Background()

	assert.False(t, sh.exec(ctx, "trend"))
	assert.Contains(t, out.String(), "run fetch first")

	assert.False(t, sh.exec(ctx, "set body Venus"))
	assert.False(t, sh.exec(ctx, "set unit LD"))
	assert.False(t, sh.exec(ctx, "fetch"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "Venus", runner.calls[0].Body.Code)
	assert.Equal(t, "10", runner.calls[0].MaxDistance)
	assert.Contains(t, out.String(), "2 close approaches to Venus.")

	out.Reset()
	sh.exec(ctx, "show")
	assert.Contains(t, out.String(), "dist-max=10LD")
	assert.Contains(t, out.String(), "2025 AB")

	out.Reset()
	sh.exec(ctx, "trend")
	assert.Contains(t, out.String(), "Trend: ")

	path := filepath.Join(t.TempDir(), "shell.csv")
	out.Reset()
	sh.exec(ctx, "export csv "+path)
	assert.Contains(t, out.String(), "Wrote 2 rows")
	_, err := os.Stat(path)
	assert.NoError(t, err)

	assert.True(t, sh.exec(ctx, "quit"))
}

func TestShellErrors(t *testing.T) {
	runner := &fakeSearcher{err: &cad.FetchError{Kind: cad.KindTransport, Detail: "connection refused"}}
	sh, out := testShell(t, runner)
	ctx := context.Background()

	sh.exec(ctx, "set limit 5000")
	sh.exec(ctx, "fetch")
	assert.Contains(t, out.String(), "limit must be between 1 and 1000")
	assert.Empty(t, runner.calls)

	out.Reset()
	sh.exec(ctx, "set limit 10")
	sh.exec(ctx, "fetch")
	assert.Contains(t, out.String(), "connection refused")

	out.Reset()
	sh.exec(ctx, "set color red")
	assert.Contains(t, out.String(), "unknown parameter")

	out.Reset()
	sh.exec(ctx, "launch")
	assert.Contains(t, out.String(), "Unknown command")
}

func TestShellCompleter(t *testing.T) {
	sh, _ := testShell(t, &fakeSearcher{})
	assert.Equal(t, []string{"fetch"}, sh.completer("fe"))
	assert.Equal(t, []string{"set date-min ", "set date-max ", "set days ", "set dist-max "}, sh.completer("set d"))
}
