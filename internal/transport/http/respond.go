package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"punchd/internal/attendance/service"
	pkgerrors "punchd/pkg/errors"
)

// WriteJSON renders a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// WriteError maps a domain error onto an HTTP status and a user-safe body.
// Out-of-area failures additionally carry the measured distance for display.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	body := errorBody{
		Error:   string(code),
		Message: pkgerrors.MessageOf(err),
	}

	var outside *service.OutsideOfficeError
	if errors.As(err, &outside) {
		d := outside.DistanceMeters
		body.DistanceMeters = &d
	}

	WriteJSON(w, statusFor(code), body)
}

func statusFor(code pkgerrors.Code) int {
	switch code {
	case pkgerrors.CodeBadRequest, pkgerrors.CodeValidation:
		return http.StatusBadRequest
	case pkgerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeConflict:
		return http.StatusConflict
	case pkgerrors.CodeQuotaExceeded:
		return http.StatusForbidden
	case pkgerrors.CodeOutOfRange:
		return http.StatusUnprocessableEntity
	case pkgerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q,"message":%q}`, errCode, errDesc)
}
