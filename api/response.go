package api

import (
	// Go Internal Packages
	"encoding/json"
	"net/http"

	// Local Packages
	errors "nfc-bank/errors"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	writeJSON(w, statusOf(kind), errorBody{Error: err.Error(), Kind: kind.String()})
}

func statusOf(kind errors.Kind) int {
	switch kind {
	case errors.Invalid, errors.Decode:
		return http.StatusBadRequest
	case errors.NotRegistered:
		return http.StatusNotFound
	case errors.PolicyRejected, errors.OwnershipConflict:
		return http.StatusConflict
	case errors.Unavailable:
		return http.StatusServiceUnavailable
	case errors.Transport, errors.WriteFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
