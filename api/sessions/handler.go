// Package sessions exposes session state and instruction runs over HTTP.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/core/session"
)

const maxBodyBytes = 64 << 10

// DeleteHook is notified after a session has been removed.
type DeleteHook func(ctx context.Context, id string)

type handler struct {
	mgr      *session.Manager
	onDelete DeleteHook
}

// Register mounts the session routes on mux.
func Register(mux *http.ServeMux, mgr *session.Manager, onDelete DeleteHook) {
	h := &handler{mgr: mgr, onDelete: onDelete}
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
	mux.HandleFunc("POST /api/sessions/{id}/instructions", h.instruct)
	mux.HandleFunc("POST /api/sessions/{id}/presets/{preset}", h.preset)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.reset)
	mux.HandleFunc("GET /api/sessions/{id}/routes", h.routes)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.messages)
	mux.HandleFunc("GET /api/presets", h.presets)
	mux.HandleFunc("GET /api/roster", h.roster)
	mux.HandleFunc("GET /api/score", h.score)
}

// Summary is the list representation of a session.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      int       `json:"runs"`
}

// View is the detailed representation of a session.
type View struct {
	Summary
	Office  model.Office    `json:"office"`
	Staff   []model.Staff   `json:"staff"`
	Sites   []model.Site    `json:"sites"`
	Stats   result.Stats    `json:"stats"`
	Markers []result.Marker `json:"markers"`
}

// RouteView is one staff member's route.
type RouteView struct {
	Staff model.Staff      `json:"staff"`
	Sites []model.Site     `json:"sites"`
	Path  []model.Location `json:"path"`
}

// ScoreView is the response of the score endpoint.
type ScoreView struct {
	Staff     model.StaffID `json:"staff"`
	Site      string        `json:"site"`
	Score     int           `json:"score"`
	Rationale []string      `json:"rationale"`
	Grade     result.Grade  `json:"grade"`
}

func summaryOf(s session.Session) Summary {
	return Summary{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, Runs: s.Runs}
}

func (h *handler) view(s session.Session) View {
	r := h.mgr.Roster()
	t := result.New(r.Office, r.Staff, s.Sites)
	return View{
		Summary: summaryOf(s),
		Office:  r.Office,
		Staff:   r.Staff,
		Sites:   s.Sites,
		Stats:   t.Stats(),
		Markers: t.Markers(),
	}
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(s))
}

func (h *handler) list(w http.ResponseWriter, _ *http.Request) {
	all := h.mgr.List()
	out := make([]Summary, len(all))
	for i, s := range all {
		out[i] = summaryOf(s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.mgr.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	if h.onDelete != nil {
		h.onDelete(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) instruct(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	out, err := h.mgr.Apply(r.Context(), r.PathValue("id"), body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) preset(w http.ResponseWriter, r *http.Request) {
	out, err := h.mgr.ApplyPreset(r.Context(), r.PathValue("id"), r.PathValue("preset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Reset(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *handler) routes(w http.ResponseWriter, r *http.Request) {
	t, err := h.mgr.Table(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := []RouteView{}
	for _, rt := range t.Routes() {
		out = append(out, RouteView{Staff: rt.Staff, Sites: rt.Sites, Path: rt.Path(t.Office)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Messages)
}

func (h *handler) presets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, session.Presets)
}

func (h *handler) roster(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Roster())
}

func (h *handler) score(w http.ResponseWriter, r *http.Request) {
	staffID := model.StaffID(r.URL.Query().Get("staff"))
	siteName := r.URL.Query().Get("site")
	if staffID == model.Unassigned || siteName == "" {
		http.Error(w, "staff and site are required", http.StatusBadRequest)
		return
	}
	ro := h.mgr.Roster()
	st, ok := model.IndexStaff(ro.Staff).Lookup(staffID)
	if !ok {
		http.Error(w, "unknown staff "+string(staffID), http.StatusNotFound)
		return
	}
	site, ok := ro.Site(siteName)
	if !ok {
		http.Error(w, "unknown site "+siteName, http.StatusNotFound)
		return
	}
	res := affinity.Score(st, site)
	writeJSON(w, http.StatusOK, ScoreView{
		Staff:     st.ID,
		Site:      site.Name,
		Score:     res.Score,
		Rationale: res.Rationale,
		Grade:     result.GradeOf(res.Score),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrEmptyInstruction), errors.Is(err, session.ErrUnknownPreset):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
