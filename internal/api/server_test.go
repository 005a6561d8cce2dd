// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/executor"
	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/history"
)

const timelineJSON = `{"video_tracks":[{"clips":[{"source":"a.mp4","end_ms":4000},{"source":"b.mp4","end_ms":3000}]}]}`

type fakeRunner struct {
	mu   sync.Mutex
	fail *executor.Result
}

func (f *fakeRunner) Run(_ context.Context, cmd *compiler.Command) executor.Result {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return *fail
	}
	if err := os.MkdirAll(filepath.Dir(cmd.Output), 0o755); err != nil {
		return executor.Failure(executor.KindIO, err.Error(), "")
	}
	if err := os.WriteFile(cmd.Output, []byte("media"), 0o644); err != nil {
		return executor.Failure(executor.KindIO, err.Error(), "")
	}
	return executor.Success(cmd.Output, 5, 7*time.Second, "rendered")
}

type fakeHistory struct {
	mu       sync.Mutex
	entries  []history.Entry
	checkErr error
}

func (h *fakeHistory) Record(_ context.Context, e history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Entry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (h *fakeHistory) Check(context.Context) error { return h.checkErr }

type fakeProber struct {
	mu    sync.Mutex
	calls [][]string
}

func (p *fakeProber) Sources(_ context.Context, paths []string) (map[string]graph.SourceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, paths)
	out := make(map[string]graph.SourceInfo, len(paths))
	for _, path := range paths {
		out[path] = graph.SourceInfo{DurationMs: 10_000, HasAudio: true}
	}
	return out, nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	runner  *fakeRunner
	history *fakeHistory
	prober  *fakeProber
	dir     string
	media   string
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		runner:  &fakeRunner{},
		history: &fakeHistory{},
		prober:  &fakeProber{},
		dir:     t.TempDir(),
	}
	media, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(media, name), []byte("source"), 0o644))
	}
	env.media = media
	cfg := Config{
		OutputDir:    env.dir,
		MediaRoot:    media,
		Preview:      compiler.DefaultPreviewOptions(""),
		Debounce:     10 * time.Millisecond,
		MaxBodyBytes: 1 << 16,
		Version:      "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg, Deps{
		Compiler: compiler.New(nil, compiler.DefaultConfig()),
		Runner:   env.runner,
		Prober:   env.prober,
		History:  env.history,
	})
	require.NoError(t, err)
	env.srv = srv
	env.handler = srv.Handler()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewValidates(t *testing.T) {
	deps := Deps{Compiler: compiler.New(nil, compiler.Config{}), Runner: &fakeRunner{}}
	_, err := New(Config{OutputDir: t.TempDir(), MediaRoot: t.TempDir()}, Deps{})
	require.Error(t, err)
	_, err = New(Config{MediaRoot: t.TempDir()}, deps)
	require.Error(t, err)
	_, err = New(Config{OutputDir: t.TempDir()}, deps)
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	env.history.checkErr = errors.New("disk gone")
	w = env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createSession(t)
	w := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vcompose_active_sessions")
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	base := "/api/v1/sessions/" + id

	w := env.do(t, http.MethodPut, base+"/timeline", "application/json", timelineJSON)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, uint64(1), decode[scheduleResponse](t, w).Generation)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, base+"/preview", nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		var st statusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			return false
		}
		return st.Preview.State == "succeeded" && st.Latest != ""
	}, 5*time.Second, 10*time.Millisecond)

	st := decode[statusResponse](t, env.do(t, http.MethodGet, base+"/preview", "", ""))
	require.NotNil(t, st.Preview.Last)
	assert.True(t, strings.HasPrefix(st.Latest, "preview-"))
	assert.Equal(t, int64(7000), st.Preview.Last.Result.DurationMs)
	assert.Equal(t, "idle", st.Export.State)

	w = env.do(t, http.MethodGet, base+"/preview/file", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "media", w.Body.String())

	w = env.do(t, http.MethodGet, base+"/timeline", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"b.mp4"`)
	assert.NotContains(t, w.Body.String(), env.media)

	w = env.do(t, http.MethodPost, base+"/export", "application/json", `{"quality":"720p","format":"mkv"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[resultResponse](t, w)
	assert.True(t, res.OK)
	assert.True(t, strings.HasSuffix(res.File, ".mkv"), res.File)
	assert.NotContains(t, res.File, env.dir)

	w = env.do(t, http.MethodGet, base+"/export/file", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/x-matroska", w.Header().Get("Content-Type"))

	w = env.do(t, http.MethodGet, "/api/v1/exports", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]historyResponse](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].SessionID)
	assert.Equal(t, res.File, entries[0].File)

	w = env.do(t, http.MethodDelete, base, "", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, base+"/preview", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	previews, _ := filepath.Glob(filepath.Join(env.dir, id, "preview-*"))
	assert.Empty(t, previews)
	exports, _ := filepath.Glob(filepath.Join(env.dir, id, "export-*"))
	assert.Len(t, exports, 1)
}

func TestPutTimelineYAML(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	doc := "video_tracks:\n  - clips:\n      - source: a.mp4\n        end_ms: 2000\n"
	w := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/timeline", "application/yaml", doc)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestPutTimelineRejectsInvalidDocuments(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	path := "/api/v1/sessions/" + id + "/timeline"

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"video_tracks":`, http.StatusBadRequest},
		{"unknown field", `{"video_tracks":[],"bogus":1}`, http.StatusBadRequest},
		{"unknown filter", `{"video_tracks":[{"clips":[{"source":"/a.mp4","filter":"nope"}]}]}`, http.StatusUnprocessableEntity},
		{"too large", `{"video_tracks":[{"clips":[{"source":"` + strings.Repeat("a", 1<<17) + `"}]}]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, path, "application/json", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestPutTimelineProbesNewSourcesOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	path := "/api/v1/sessions/" + id + "/timeline"

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPut, path, "application/json", timelineJSON).Code)
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPut, path, "application/json", timelineJSON).Code)

	more := `{"video_tracks":[{"clips":[{"source":"a.mp4","end_ms":4000},{"source":"` + filepath.Join(env.media, "c.mp4") + `","end_ms":1000}]}]}`
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPut, path, "application/json", more).Code)

	env.prober.mu.Lock()
	defer env.prober.mu.Unlock()
	require.Len(t, env.prober.calls, 2)
	assert.ElementsMatch(t, []string{filepath.Join(env.media, "a.mp4"), filepath.Join(env.media, "b.mp4")}, env.prober.calls[0])
	assert.Equal(t, []string{filepath.Join(env.media, "c.mp4")}, env.prober.calls[1])
}

func TestPutTimelineConfinesSources(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	path := "/api/v1/sessions/" + id + "/timeline"

	outside := filepath.Join(t.TempDir(), "secret.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(env.media, "escape.mp4")))
	require.NoError(t, os.Mkdir(filepath.Join(env.media, "dir.mp4"), 0o755))

	doc := func(source string) string {
		return `{"video_tracks":[{"clips":[{"source":"` + source + `","end_ms":1000}]}]}`
	}
	tests := []struct {
		name   string
		source string
		code   int
	}{
		{"relative", "a.mp4", http.StatusAccepted},
		{"absolute inside root", filepath.Join(env.media, "b.mp4"), http.StatusAccepted},
		{"http url", "http://169.254.169.254/latest/meta-data", http.StatusUnprocessableEntity},
		{"concat protocol", "concat:a.mp4|b.mp4", http.StatusUnprocessableEntity},
		{"subfile protocol", "SUBFILE:a.mp4", http.StatusUnprocessableEntity},
		{"dotdot", "../secret.mp4", http.StatusUnprocessableEntity},
		{"absolute outside root", outside, http.StatusUnprocessableEntity},
		{"symlink escape", "escape.mp4", http.StatusUnprocessableEntity},
		{"missing", "nope.mp4", http.StatusUnprocessableEntity},
		{"directory", "dir.mp4", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, path, "application/json", doc(tt.source))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	env.prober.mu.Lock()
	defer env.prober.mu.Unlock()
	for _, call := range env.prober.calls {
		for _, p := range call {
			assert.True(t, strings.HasPrefix(p, env.media+string(filepath.Separator)), p)
		}
	}
}

func TestIsProtocol(t *testing.T) {
	assert.True(t, isProtocol("rtmp://host/app"))
	assert.True(t, isProtocol("pipe:0"))
	assert.True(t, isProtocol("File:/etc/passwd"))
	assert.False(t, isProtocol("take:1.mp4"))
	assert.False(t, isProtocol("clips/a.mp4"))
}

func TestExportWithoutTimeline(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/export", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportStatusCodes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Debounce = time.Hour })
	id := env.createSession(t)
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPut, base+"/timeline", "application/json", timelineJSON).Code)

	w := env.do(t, http.MethodPost, base+"/export", "application/json", `{"quality":"4k"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, base+"/export", "application/json", `{"width":1280}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	res := decode[resultResponse](t, w)
	assert.False(t, res.OK)
	assert.Equal(t, "configuration", res.Kind)

	env.runner.mu.Lock()
	fail := executor.Failure(executor.KindExternalTool, "ffmpeg exited with code 1", "Invalid data")
	env.runner.fail = &fail
	env.runner.mu.Unlock()

	w = env.do(t, http.MethodPost, base+"/export", "", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	res = decode[resultResponse](t, w)
	assert.Equal(t, "external_tool", res.Kind)
	assert.Equal(t, "Invalid data", res.Detail)

	w = env.do(t, http.MethodGet, base+"/export/file", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxSessions = 1 })
	env.createSession(t)
	w := env.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/api/v1/sessions/nope/preview", "/api/v1/sessions/nope/timeline"} {
		w := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := env.do(t, http.MethodDelete, "/api/v1/sessions/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewFileMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)
	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/preview/file", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentExportsLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/exports?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/exports?limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestExportRequestOptions(t *testing.T) {
	off := false
	opts, err := exportRequest{Quality: "480p", Format: "mov", FPS: 25, IncludeAudio: &off}.options()
	require.NoError(t, err)
	assert.Equal(t, compiler.FormatMOV, opts.Format)
	assert.Equal(t, 854, opts.Width)
	assert.Equal(t, 480, opts.Height)
	assert.Equal(t, 25, opts.FPS)
	assert.False(t, opts.IncludeAudio)

	opts, err = exportRequest{Width: 640, Height: 360}.options()
	require.NoError(t, err)
	assert.Equal(t, 640, opts.Width)
	assert.True(t, opts.IncludeAudio)

	_, err = exportRequest{Format: "avi"}.options()
	assert.Error(t, err)
}

func TestExportStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusOK, exportStatus(executor.Success("f", 1, 0, "")))
	assert.Equal(t, http.StatusUnprocessableEntity, exportStatus(executor.Failure(executor.KindConfiguration, "", "")))
	assert.Equal(t, http.StatusBadGateway, exportStatus(executor.Failure(executor.KindExternalTool, "", "")))
	assert.Equal(t, http.StatusInternalServerError, exportStatus(executor.Failure(executor.KindIO, "", "")))
	assert.Equal(t, http.StatusServiceUnavailable, exportStatus(executor.Failure(executor.KindCanceled, "", "")))
}
