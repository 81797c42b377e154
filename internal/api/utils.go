package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"
)

const maxBodyBytes = 1_048_576

// DecodeError describes why a request body could not be decoded. Field is
// empty when the problem is not tied to one field.
type DecodeError struct {
	Field string
	Msg   string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// ErrorResponse writes the standard JSON error payload including the request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, code string, details ...string) {
	WriteJSONResponse(w, r, status, ErrorPayload{
		Error:     code,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := gojson.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		// Client already received the status code.
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

// ReadJSONBody reads at most 1MB of request body.
func ReadJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return nil, &DecodeError{Msg: fmt.Sprintf("body must not be larger than %d bytes", maxBytesError.Limit)}
		}
		return nil, &DecodeError{Msg: "body could not be read"}
	}
	return body, nil
}

// DecodeJSON strictly decodes a single JSON value into dst, rejecting unknown
// fields. Failures are returned as *DecodeError.
func DecodeJSON(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return &DecodeError{Msg: fmt.Sprintf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &DecodeError{Msg: "body contains badly-formed JSON"}
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return &DecodeError{Field: unmarshalTypeError.Field, Msg: fmt.Sprintf("must be of type %s", jsonTypeName(unmarshalTypeError.Type.String()))}
			}
			return &DecodeError{Msg: fmt.Sprintf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)}
		case errors.Is(err, io.EOF):
			return &DecodeError{Msg: "body must not be empty"}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return &DecodeError{Field: field, Msg: "unknown field"}
		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))
		default:
			return &DecodeError{Msg: fmt.Sprintf("error decoding JSON body: %v", err)}
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &DecodeError{Msg: "body must only contain a single JSON value"}
	}
	return nil
}

// DecodeJSONBody reads and strictly decodes the request body into dst.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := ReadJSONBody(w, r)
	if err != nil {
		return err
	}
	return DecodeJSON(body, dst)
}

func jsonTypeName(goType string) string {
	t := strings.TrimPrefix(goType, "*")
	switch {
	case strings.HasPrefix(t, "float"), strings.HasPrefix(t, "int"), strings.HasPrefix(t, "uint"):
		return "number"
	case t == "bool":
		return "boolean"
	case t == "string":
		return "string"
	default:
		return t
	}
}
