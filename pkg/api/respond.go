package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xeipuuv/gojsonschema"

	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Message   string   `json:"message"`
	Code      string   `json:"code"`
	Step      string   `json:"step,omitempty"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// schemaError carries the individual validation failures of a request body.
type schemaError struct {
	err     *apperr.Error
	details []string
}

func (e *schemaError) Error() string { return e.err.Error() }
func (e *schemaError) Unwrap() error { return e.err }

// errorWriter renders err as {"message", "code"}. The cause of a 5xx is
// logged, never sent.
func errorWriter(log *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		code := apperr.CodeOf(err)
		status := apperr.HTTPStatus(code)
		body := errorBody{
			Message:   apperr.Message(err),
			Code:      string(code),
			Step:      apperr.StepOf(err),
			RequestID: middleware.GetReqID(r.Context()),
		}
		var se *schemaError
		if errors.As(err, &se) {
			body.Details = se.details
		}

		attrs := []any{"method", r.Method, "path", r.URL.Path, "status", status, "code", code, "error", err}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", attrs...)
		} else {
			log.Info("request rejected", attrs...)
		}
		writeJSON(w, status, body)
	}
}

// decode reads a JSON body, validates it against schema and unmarshals it
// into dst. Any schema violation is reported as InvalidArgument with msg.
func decode(w http.ResponseWriter, r *http.Request, schema gojsonschema.JSONLoader, msg string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "Request body too large or unreadable")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return &schemaError{err: apperr.New(apperr.InvalidArgument, msg), details: []string{"request body is required"}}
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "Request body is not valid JSON")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return &schemaError{err: apperr.New(apperr.InvalidArgument, msg), details: details}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, msg)
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.InvalidArgument, fmt.Sprintf("Invalid %s", name))
	}
	return id, nil
}
