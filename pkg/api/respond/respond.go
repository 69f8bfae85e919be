// Package respond writes JSON bodies and maps domain errors to HTTP status
// codes.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/phuslu/log"

	"equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/portfolio"
	"equity_valuation/pkg/core/store"
	"equity_valuation/pkg/core/utils"
	"equity_valuation/pkg/core/valuation"
)

// MaxJSONBody bounds request bodies read by Decode.
const MaxJSONBody int64 = 2 << 20

// BadRequest marks an error caused by the client's input.
type BadRequest struct{ Err error }

func (e *BadRequest) Error() string { return e.Err.Error() }
func (e *BadRequest) Unwrap() error { return e.Err }

// Invalid wraps err as a client error.
func Invalid(err error) error { return &BadRequest{Err: err} }

// JSON writes v, with NaN and infinities replaced by zero, as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(utils.Sanitize(v)); err != nil {
		log.Error().Err(err).Msg("[API] failed to encode response")
	}
}

// Error writes {"error": message} with status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Err maps err to a status and writes it. Server-side failures are logged
// and their details are not sent to the client.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("[API] request failed")
		msg = http.StatusText(status)
	case status == http.StatusBadGateway:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("[API] upstream failure")
	default:
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("[API] client error")
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		msg = "Invalid credentials"
	}
	Error(w, status, msg)
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var (
		tooBig *http.MaxBytesError
		badReq *BadRequest
		vErr   *utils.ValidationError
		apiErr *marketdata.APIError
		rlErr  *marketdata.RateLimitError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &badReq),
		errors.As(err, &vErr),
		errors.Is(err, valuation.ErrInvalidAssumptions),
		errors.Is(err, portfolio.ErrInvalidTransaction),
		errors.Is(err, ingest.ErrMissingSheet),
		errors.Is(err, ingest.ErrMissingSection),
		errors.Is(err, marketdata.ErrUnsupportedRange),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrHumanCheckFailed):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound), errors.Is(err, marketdata.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &apiErr), errors.As(err, &rlErr), errors.Is(err, marketdata.ErrFXUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNoPool):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Decode reads a JSON body of at most MaxJSONBody bytes into v and validates
// its tags. Failures are client errors; an oversized body maps to 413.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooBig.Limit, err)
		}
		return Invalid(errors.New("invalid JSON body: " + err.Error()))
	}
	if reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
		return nil
	}
	if err := utils.ValidateStruct(v); err != nil {
		return Invalid(err)
	}
	return nil
}
