// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/executor"
	"github.com/ManuGH/vcompose/internal/fsutil"
	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/history"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/orchestrator"
	"github.com/ManuGH/vcompose/internal/timeline"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	healthTimeout      = 2 * time.Second
)

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type scheduleResponse struct {
	Generation uint64 `json:"generation"`
}

// resultResponse is an executor.Result as seen by clients. Files are
// reported by base name only.
type resultResponse struct {
	OK         bool   `json:"ok"`
	File       string `json:"file,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type outcomeResponse struct {
	BuildID    string         `json:"build_id"`
	Generation uint64         `json:"generation,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
	Result     resultResponse `json:"result"`
}

type pipelineResponse struct {
	State string           `json:"state"`
	Last  *outcomeResponse `json:"last,omitempty"`
}

type statusResponse struct {
	Generation uint64           `json:"generation"`
	Latest     string           `json:"latest,omitempty"`
	Preview    pipelineResponse `json:"preview"`
	Export     pipelineResponse `json:"export"`
}

// exportRequest selects export settings. Explicit fields override the
// quality preset.
type exportRequest struct {
	Quality      string `json:"quality,omitempty"`
	Format       string `json:"format,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	FPS          int    `json:"fps,omitempty"`
	VideoBitrate int    `json:"video_bitrate,omitempty"`
	AudioBitrate int    `json:"audio_bitrate,omitempty"`
	IncludeAudio *bool  `json:"include_audio,omitempty"`
}

type historyResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	File       string    `json:"file"`
	Format     string    `json:"format"`
	OK         bool      `json:"ok"`
	Kind       string    `json:"kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	DurationMs int64     `json:"duration_ms"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "version": s.cfg.Version, "sessions": s.sessions.count()}
	if s.deps.History != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.History.Check(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "history store unhealthy", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "allocate session id", err)
		return
	}
	sess, err := s.newSession(id.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create session", err)
		return
	}
	if err := s.sessions.add(sess); err != nil {
		sess.orch.Close()
		_ = os.Remove(sess.dir)
		writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	logger := xlog.WithContext(xlog.ContextWithSessionID(r.Context(), sess.id), s.logger)
	logger.Info().Str(xlog.FieldEvent, "session.created").Msg("session created")
	w.Header().Set("Location", "/api/v1/sessions/"+sess.id)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.id, CreatedAt: sess.created})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, ok := s.sessions.remove(sess.id); !ok {
		writeNotFound(w, "session")
		return
	}
	sess.orch.Close()
	removePreviews(sess.dir)

	logger := xlog.WithContext(r.Context(), s.logger)
	logger.Info().Str(xlog.FieldEvent, "session.closed").Msg("session closed")
	w.WriteHeader(http.StatusNoContent)
}

// handlePutTimeline replaces the session timeline and schedules a preview.
// YAML is accepted when the Content-Type says so, JSON otherwise.
func (s *Server) handlePutTimeline(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	format := timeline.FormatJSON
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.Contains(ct, "yaml") {
		format = timeline.FormatYAML
	}
	doc, err := timeline.Decode(r.Body, format)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBodyError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid timeline document", err)
		return
	}
	tl, err := doc.Timeline()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid timeline", err)
		return
	}

	tl, err = s.resolveSources(tl)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid source", err)
		return
	}
	if err := s.refreshSources(r.Context(), sess, tl); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "probe sources", err)
		return
	}

	sess.setTimeline(tl)
	gen, err := sess.orch.SchedulePreview(tl)
	if err != nil {
		if errors.Is(err, orchestrator.ErrClosed) {
			writeNotFound(w, "session")
			return
		}
		writeError(w, http.StatusInternalServerError, "schedule preview", err)
		return
	}
	writeJSON(w, http.StatusAccepted, scheduleResponse{Generation: gen})
}

// refreshSources probes sources the session has not seen yet and hands the
// orchestrator a compiler that knows all of them.
func (s *Server) refreshSources(ctx context.Context, sess *session, tl timeline.Timeline) error {
	if s.deps.Prober == nil {
		return nil
	}
	missing := sess.unprobed(tl.SourcePaths())
	if len(missing) == 0 {
		return nil
	}
	info, err := s.deps.Prober.Sources(ctx, missing)
	if err != nil {
		return err
	}
	all := sess.addSources(info)
	base := s.deps.Compiler
	sess.orch.SetCompiler(base.WithBuilder(base.Builder().With(graph.WithSourceInfo(all))))
	return nil
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, ok := sessionFrom(r).currentTimeline()
	if !ok {
		writeNotFound(w, "timeline")
		return
	}
	writeJSON(w, http.StatusOK, timeline.DocumentFrom(s.relativeSources(tl)))
}

func (s *Server) handlePreviewStatus(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r).orch.Status()
	resp := statusResponse{
		Generation: st.Generation,
		Preview:    pipelineFrom(st.Preview),
		Export:     pipelineFrom(st.Export),
	}
	if st.LatestPreview != "" {
		resp.Latest = filepath.Base(st.LatestPreview)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewFile(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r).orch.Status()
	if st.LatestPreview == "" {
		writeNotFound(w, "preview")
		return
	}
	serveMedia(w, r, sessionFrom(r).dir, st.LatestPreview)
}

// handleExport blocks until the export finishes. The client disconnecting
// does not stop the render.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	tl, ok := sess.currentTimeline()
	if !ok {
		writeError(w, http.StatusConflict, "no timeline uploaded", nil)
		return
	}

	var req exportRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBodyError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid export options", err)
		return
	}

	res := sess.orch.Export(r.Context(), tl, opts)
	writeJSON(w, exportStatus(res), resultFrom(res))
}

func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	last := sess.orch.Status().Export.Last
	if last == nil || !last.Result.OK {
		writeNotFound(w, "export")
		return
	}
	serveMedia(w, r, sess.dir, last.Result.File)
}

func (s *Server) handleRecentExports(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxRecentLimit)
	}
	out := []historyResponse{}
	if s.deps.History != nil {
		entries, err := s.deps.History.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "read export history", err)
			return
		}
		for _, e := range entries {
			out = append(out, historyFrom(e))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (req exportRequest) options() (compiler.ExportOptions, error) {
	q, err := compiler.ParseQuality(req.Quality)
	if err != nil {
		return compiler.ExportOptions{}, err
	}
	opts := compiler.ExportOptionsForQuality(q, "")
	if req.Format != "" {
		f, err := compiler.ParseFormat(req.Format)
		if err != nil {
			return compiler.ExportOptions{}, err
		}
		opts.Format = f
	}
	if req.Width != 0 || req.Height != 0 {
		opts.Width, opts.Height = req.Width, req.Height
	}
	if req.FPS != 0 {
		opts.FPS = req.FPS
	}
	if req.VideoBitrate != 0 {
		opts.VideoBitrate = req.VideoBitrate
	}
	if req.AudioBitrate != 0 {
		opts.AudioBitrate = req.AudioBitrate
	}
	if req.IncludeAudio != nil {
		opts.IncludeAudio = *req.IncludeAudio
	}
	return opts, nil
}

// exportStatus maps a result kind onto an HTTP status.
func exportStatus(res executor.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Kind {
	case executor.KindConfiguration:
		return http.StatusUnprocessableEntity
	case executor.KindExternalTool:
		return http.StatusBadGateway
	case executor.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func resultFrom(res executor.Result) resultResponse {
	out := resultResponse{
		OK:         res.OK,
		SizeBytes:  res.SizeBytes,
		DurationMs: res.Duration.Milliseconds(),
		Message:    res.Message,
		Detail:     res.Detail,
	}
	if res.File != "" {
		out.File = filepath.Base(res.File)
	}
	if !res.OK {
		out.Kind = res.Kind.String()
	}
	return out
}

func pipelineFrom(p orchestrator.PipelineStatus) pipelineResponse {
	out := pipelineResponse{State: string(p.State)}
	if p.Last != nil {
		out.Last = &outcomeResponse{
			BuildID:    p.Last.BuildID,
			Generation: p.Last.Generation,
			FinishedAt: p.Last.Finished.UTC(),
			Result:     resultFrom(p.Last.Result),
		}
	}
	return out
}

func historyFrom(e history.Entry) historyResponse {
	return historyResponse{
		ID:         e.ID,
		SessionID:  e.SessionID,
		File:       filepath.Base(e.Output),
		Format:     e.Format,
		OK:         e.OK,
		Kind:       e.Kind,
		Message:    e.Message,
		SizeBytes:  e.SizeBytes,
		DurationMs: e.DurationMs,
		ElapsedMs:  e.ElapsedMs,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

// serveMedia streams a rendered file with range support.
func serveMedia(w http.ResponseWriter, r *http.Request, root, path string) {
	path, err := fsutil.Confine(root, path)
	if err != nil {
		writeNotFound(w, "file")
		return
	}
	f, err := os.Open(path) // #nosec G304 -- confined to the session directory
	if err != nil {
		writeNotFound(w, "file")
		return
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		writeNotFound(w, "file")
		return
	}
	if format, err := compiler.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		w.Header().Set("Content-Type", format.MIMEType())
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, filepath.Base(path), fi.ModTime(), f)
}

// removePreviews deletes preview renders and the latest link of a closed
// session. Exports are kept.
func removePreviews(dir string) {
	matches, _ := filepath.Glob(filepath.Join(dir, "preview-*"))
	matches = append(matches, filepath.Join(dir, orchestrator.LatestLink), filepath.Join(dir, orchestrator.LatestManifest))
	for _, m := range matches {
		_ = os.Remove(m)
	}
	_ = os.Remove(dir) // only succeeds when empty
}
