package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nuturetable/nuturetable/internal/meal"
	"github.com/nuturetable/nuturetable/internal/model"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRetry reports a backend failure after the local change was undone.
func writeRetry(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadGateway, map[string]any{"error": msg, "retry": true})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data")
	}
	return nil
}

func parsePeriodParam(r *http.Request) (model.Period, error) {
	return meal.ParsePeriod(r.PathValue("period"))
}
