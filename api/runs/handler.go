package runs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/runlog"
)

// NewHandler exposes the run log via GET /api/runs. Supported filters are
// start and end (RFC 3339), session_id, staff_id, rule and limit.
func NewHandler(store runlog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []runlog.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (runlog.Query, error) {
	v := r.URL.Query()
	q := runlog.Query{
		SessionID: v.Get("session_id"),
		StaffID:   model.StaffID(v.Get("staff_id")),
	}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("rule"); s != "" {
		kind, ok := model.ParseInstructionKind(s)
		if !ok {
			return q, fmt.Errorf("unknown rule %q", s)
		}
		q.Rule = kind.String()
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, err
		}
	}
	return q, nil
}
