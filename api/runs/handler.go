// Package runs exposes the run log over HTTP.
package runs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	coremqtt "github.com/kilianp07/icusim/core/mqtt"
	"github.com/kilianp07/icusim/core/model"
	"github.com/kilianp07/icusim/core/runlog"
)

// Runner starts a simulation for a request and returns its record.
type Runner interface {
	Run(r *http.Request, req coremqtt.RunRequest) (runlog.RunRecord, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(r *http.Request, req coremqtt.RunRequest) (runlog.RunRecord, error)

// Run calls f.
func (f RunnerFunc) Run(r *http.Request, req coremqtt.RunRequest) (runlog.RunRecord, error) {
	return f(r, req)
}

// NewHandler serves /api/runs. GET lists stored runs filtered by start, end
// (RFC3339), status and limit. POST starts a run when runner is not nil.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(store runlog.Store, runner Runner, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			list(w, r, store)
		case http.MethodPost:
			if runner == nil {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			trigger(w, r, runner)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func list(w http.ResponseWriter, r *http.Request, store runlog.Store) {
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
		records = []runlog.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseQuery(r *http.Request) (runlog.RunQuery, error) {
	v := r.URL.Query()
	q := runlog.RunQuery{Status: v.Get("status")}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("invalid start")
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("invalid end")
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			return q, errors.New("invalid limit")
		}
	}
	return q, nil
}

func trigger(w http.ResponseWriter, r *http.Request, runner Runner) {
	var req coremqtt.RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	rec, err := runner.Run(r, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, rec)
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
