package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/hydro.report/internal/db"
	"github.com/banshee-data/hydro.report/internal/httputil"
	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/plot"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// RunAPI is the JSON form of a run record. Keys are only filled for a
// single run.
type RunAPI struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	WorkDir         string     `json:"work_dir"`
	Command         string     `json:"command"`
	Status          string     `json:"status"`
	ExitCode        int        `json:"exit_code"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	Keys            []KeyValue `json:"keys,omitempty"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func runToAPI(rec *simrun.Record) RunAPI {
	out := RunAPI{
		ID:              rec.ID.String(),
		Name:            rec.Name,
		WorkDir:         rec.WorkDir,
		Command:         rec.Command,
		Status:          rec.Status,
		ExitCode:        rec.ExitCode,
		Error:           rec.Error,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
		DurationSeconds: rec.Duration().Seconds(),
	}
	for _, e := range rec.Keys {
		out.Keys = append(out.Keys, KeyValue{Key: e.Key, Value: e.Value.Text()})
	}
	return out
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.history.ListRuns(r.URL.Query().Get("name"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	out := make([]RunAPI, len(runs))
	for i, rec := range runs {
		out[i] = runToAPI(rec)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// lookupRun resolves the {id} path value, writing the error response itself
// when it returns nil.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) *simrun.Record {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid run id %q", r.PathValue("id")))
		return nil
	}
	rec, err := s.history.GetRun(id)
	switch {
	case errors.Is(err, db.ErrRunNotFound):
		httputil.NotFound(w, err.Error())
		return nil
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return nil
	}
	return rec
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if rec := s.lookupRun(w, r); rec != nil {
		httputil.WriteJSON(w, http.StatusOK, runToAPI(rec))
	}
}

// runKeys renders the key database of a run as nested json (the default),
// yaml, or the flat pfidb listing.
func (s *Server) runKeys(w http.ResponseWriter, r *http.Request) {
	rec := s.lookupRun(w, r)
	if rec == nil {
		return
	}
	t, err := s.history.RunTree(rec.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to rebuild keys: %v", err))
		return
	}
	var (
		contentType string
		render      func(io.Writer) error
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		contentType, render = "application/json", t.WriteJSON
	case "yaml":
		contentType, render = "application/yaml", t.WriteYAML
	case "pfidb":
		contentType, render = "text/plain; charset=utf-8", t.Serialize
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown format %q", format))
		return
	}
	if contentType != "application/json" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("inline; filename=%q", rec.Name+formatExt(contentType)))
	}
	httputil.WriteRendered(w, contentType, render)
}

func formatExt(contentType string) string {
	if contentType == "application/yaml" {
		return ".yaml"
	}
	return keytree.DatabaseExt
}

// runReport draws every layer of one output field of a run from the files
// in its work directory.
func (s *Server) runReport(w http.ResponseWriter, r *http.Request) {
	rec := s.lookupRun(w, r)
	if rec == nil {
		return
	}
	q := r.URL.Query()
	field := q.Get("field")
	if field == "" {
		field = "press"
	}
	step := 0
	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid 'step' parameter")
			return
		}
		step = n
	}
	rep, err := plot.BuildReport(plot.Run{Dir: rec.WorkDir, Name: rec.Name}, field, step)
	switch {
	case errors.Is(err, os.ErrNotExist):
		httputil.NotFound(w, fmt.Sprintf("run %s has no %s output at step %d", rec.ID, field, step))
		return
	case err != nil:
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteRendered(w, "text/html; charset=utf-8", rep.Render)
}
