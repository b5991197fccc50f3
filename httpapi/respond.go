package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"careregistry/apperr"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = apperr.Validation("malformed JSON body")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errMalformedBody
	}
	return nil
}

// statusFor maps an error kind to its HTTP status. Conflicts are reported as
// 400, matching the validation style of duplicate checks.
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation, apperr.ErrConflict:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, map[string]string{"detail": "internal server error"})
		return
	}

	var fields apperr.Fields
	if errors.As(err, &fields) {
		body := make(map[string][]string, len(fields))
		for k, v := range fields {
			body[k] = []string{v}
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Fields{name: "must be a non-negative integer"}
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Fields{name: "must be true or false"}
	}
	return &b, nil
}
