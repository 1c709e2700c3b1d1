package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pevans/defrumours/history"
	"github.com/pevans/defrumours/output"
	"github.com/pevans/defrumours/rumours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears the variables the command reads and returns flags pointing
// config and .env lookups at files that don't exist.
func isolate(t *testing.T) []string {
	t.Helper()
	for _, key := range []string{
		"DEFRUMOURS_CONFIG", "COMPETITION", "SEASON_ID", "BASE_URL", "ENRICH_PROFILES",
		"ENRICH_DELAY", "OUT_DIR", "HISTORY_DSN", "LISTEN_ADDR", "FETCH_TIMEOUT",
		"FETCH_RETRIES", "SMTP_HOST", "SMTP_PORT", "MAIL_FROM", "MAIL_TO",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return []string{
		"-config", filepath.Join(dir, "missing.yaml"),
		"-env", filepath.Join(dir, "missing.env"),
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// TestRun_NoArgs verifies usage is printed with a usage exit code
func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := runCLI(t)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage:")
}

// TestRun_Help verifies help goes to stdout
func TestRun_Help(t *testing.T) {
	code, stdout, _ := runCLI(t, "help")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "history")
}

// TestRun_UnknownCommand verifies an unknown command is a usage error
func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "scrape")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown command: scrape")
}

// TestRunCommand_LocalListing verifies a run from a saved page writes JSON
// and HTML results and records the run
func TestRunCommand_LocalListing(t *testing.T) {
	base := isolate(t)
	out := t.TempDir()
	dsn := filepath.Join(t.TempDir(), "runs.db")

	args := append([]string{"run"}, base...)
	args = append(args, "-html", "testdata/listing.html", "-out", out, "-history", dsn)
	code, stdout, stderr := runCLI(t, args...)

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Found 3 defender rumours (4 rows)")
	assert.NotContains(t, stdout, "Diagnostics")

	data, err := os.ReadFile(filepath.Join(out, output.ResultFile))
	require.NoError(t, err)
	var rs rumours.ResultSet
	require.NoError(t, json.Unmarshal(data, &rs))
	require.Len(t, rs.Items, 3)
	assert.Equal(t, "Dora Rechts", rs.Items[0].Player)
	assert.Equal(t, "L1", rs.Competition)

	html, err := os.ReadFile(filepath.Join(out, output.HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "FC D &amp; Co")

	store, err := history.NewStore(dsn)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Count)
}

// TestRunCommand_FlagsOverrideEnv verifies command-line flags win over the
// environment
func TestRunCommand_FlagsOverrideEnv(t *testing.T) {
	base := isolate(t)
	t.Setenv("SEASON_ID", "2019")
	out := t.TempDir()

	args := append([]string{"run"}, base...)
	args = append(args, "-html", "testdata/listing.html", "-out", out, "-season", "2025")
	code, _, stderr := runCLI(t, args...)
	require.Equal(t, exitOK, code, stderr)

	rs, err := mustWriter(t, out).ReadResult()
	require.NoError(t, err)
	assert.Equal(t, "2025", rs.Season)
}

// TestRunCommand_MissingTable verifies diagnostics are written and reported
func TestRunCommand_MissingTable(t *testing.T) {
	base := isolate(t)
	out := t.TempDir()
	page := filepath.Join(t.TempDir(), "empty.html")
	require.NoError(t, os.WriteFile(page, []byte("<html><body><p>maintenance</p></body></html>"), 0o644))

	args := append([]string{"run"}, base...)
	args = append(args, "-html", page, "-out", out)
	code, stdout, stderr := runCLI(t, args...)

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Found 0 defender rumours")
	assert.Contains(t, stdout, "Diagnostics")
	assert.FileExists(t, filepath.Join(out, output.DebugHTMLFile))
	assert.FileExists(t, filepath.Join(out, output.RowsFile))
}

// TestRunCommand_MissingListingFile verifies a read failure is a runtime
// error
func TestRunCommand_MissingListingFile(t *testing.T) {
	base := isolate(t)

	args := append([]string{"run"}, base...)
	args = append(args, "-html", filepath.Join(t.TempDir(), "nope.html"), "-out", t.TempDir())
	code, _, stderr := runCLI(t, args...)

	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "failed to read listing file")
}

// TestRunCommand_InvalidSettings verifies bad settings are a usage error
func TestRunCommand_InvalidSettings(t *testing.T) {
	base := isolate(t)

	args := append([]string{"run"}, base...)
	args = append(args, "-competition", "", "-out", t.TempDir())
	code, _, stderr := runCLI(t, args...)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "invalid configuration")
}

// TestRunCommand_BadFlag verifies unknown flags are a usage error
func TestRunCommand_BadFlag(t *testing.T) {
	code, _, _ := runCLI(t, "run", "-nope")

	assert.Equal(t, exitUsage, code)
}

// TestWatchCommand_InvalidInterval verifies a non-positive interval is
// rejected before anything runs
func TestWatchCommand_InvalidInterval(t *testing.T) {
	base := isolate(t)

	args := append([]string{"watch"}, base...)
	args = append(args, "-every", "0s")
	code, _, stderr := runCLI(t, args...)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "-every must be positive")
}

// TestHistoryCommand verifies recorded runs are listed as a table and JSON
func TestHistoryCommand(t *testing.T) {
	isolate(t)
	dsn := filepath.Join(t.TempDir(), "runs.db")
	store, err := history.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), &history.Run{
		Source:      "https://example.com",
		Competition: "L1",
		Season:      "2025",
		TotalRows:   12,
		Count:       4,
		Diagnostics: true,
	}))
	require.NoError(t, store.Close())

	code, stdout, stderr := runCLI(t, "history", "-history", dsn)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "COMPETITION")
	assert.Contains(t, stdout, "L1")
	assert.Contains(t, stdout, "yes")

	code, stdout, stderr = runCLI(t, "history", "-history", dsn, "-json")
	require.Equal(t, exitOK, code, stderr)
	var runs []history.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Count)
}

// TestHistoryCommand_Empty verifies an empty log prints a note
func TestHistoryCommand_Empty(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "history", "-history", filepath.Join(t.TempDir(), "runs.db"))

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No runs recorded.")
}

// TestHistoryCommand_NoDSN verifies a database is required
func TestHistoryCommand_NoDSN(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "history")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "HISTORY_DSN is required")
}

// TestServe_WaitsForBackground verifies serve returns only after the
// background job has finished
func TestServe_WaitsForBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	var finished atomic.Bool
	started := make(chan struct{})
	background := func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}

	go func() {
		<-started
		cancel()
	}()

	require.NoError(t, serve(ctx, server, background))
	assert.True(t, finished.Load())
}

// TestServe_ListenFailure verifies a listener error is returned and the
// background job is stopped first
func TestServe_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	server := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	var stopped atomic.Bool
	background := func(ctx context.Context) {
		<-ctx.Done()
		stopped.Store(true)
	}

	err = serve(context.Background(), server, background)

	require.Error(t, err)
	assert.True(t, stopped.Load())
}

func mustWriter(t *testing.T, dir string) *output.Writer {
	t.Helper()
	w, err := output.NewWriter(dir)
	require.NoError(t, err)
	return w
}
