package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/mchmarny/loanscore/pkg/loan"
)

const (
	apiMaxBodyBytes   = 1 << 20
	apiListLimitMax   = 1000
	apiListLimitParam = "limit"
	apiWhereParam     = "where"
)

// apiError is the error body returned by the API.
type apiError struct {
	Error   string `json:"error"`
	Feature string `json:"feature,omitempty"`
	Value   string `json:"value,omitempty"`
}

// predictRequest is the body of POST /api/v1/predict.
type predictRequest struct {
	Record loan.Record `json:"record"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// writeScoringError maps prediction errors to a status. Caller input errors
// are 400 and name the offending feature; anything else is 500.
func writeScoringError(w http.ResponseWriter, err error) {
	var fe *loan.FeatureError
	if loan.IsInputError(err) && errors.As(err, &fe) {
		e := apiError{Error: err.Error(), Feature: fe.Feature}
		if fe.Value != nil {
			e.Value = fmt.Sprint(fe.Value)
		}
		writeJSON(w, http.StatusBadRequest, e)
		return
	}
	if errors.Is(err, loan.ErrDimensionMismatch) {
		slog.Error("model does not match schema", "error", err)
		writeError(w, http.StatusInternalServerError, "model does not match feature schema")
		return
	}
	slog.Error("failed to score record", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to score record")
}

func healthAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"model":   cfg.Artifact.ModelVersion(),
			"history": cfg.Store != nil,
		})
	}
}

func schemaAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, newSchemaView(cfg.Artifact.ModelVersion(), cfg.Predictor.Schema()))
	}
}

func explainAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rows, err := cfg.Predictor.Explain()
		if err != nil {
			writeScoringError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func predictAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := json.NewDecoder(http.MaxBytesReader(w, r.Body, apiMaxBodyBytes))
		d.UseNumber()
		d.DisallowUnknownFields()

		var req predictRequest
		if err := d.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Record == nil {
			writeError(w, http.StatusBadRequest, "record required")
			return
		}

		p, err := cfg.assess(r.Context(), req.Record, data.SourceAPI)
		if err != nil {
			writeScoringError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func listAssessmentsAPIHandler(store data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryParamInt(r, apiListLimitParam, historyLimitDefault)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit == 0 || limit > apiListLimitMax {
			limit = apiListLimitMax
		}

		q := data.Query{Limit: limit}
		if expr := strings.TrimSpace(r.URL.Query().Get(apiWhereParam)); expr != "" {
			f, err := data.NewFilter(expr)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			q.Filter = f
		}

		list, err := store.List(r.Context(), q)
		if err != nil {
			slog.Error("failed to list assessments", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list assessments")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getAssessmentAPIHandler(store data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, data.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assessment not found")
			return
		}
		if err != nil {
			slog.Error("failed to get assessment", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get assessment")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func statsAPIHandler(store data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), data.Query{})
		if err != nil {
			slog.Error("failed to list assessments", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to summarize assessments")
			return
		}
		writeJSON(w, http.StatusOK, data.Summarize(list))
	}
}

func queryParamInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
