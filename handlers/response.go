package handlers

import (
	"encoding/json"
	"net/http"

	"task-manager/apperrors"
	"task-manager/authz"
	"task-manager/logging"
	"task-manager/middleware"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger.Errorf("Event ID: RESPONSE_ENCODE_FAILED, Description: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Logger.Errorf("Event ID: REQUEST_FAILED, Description: %s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Logger.Warnf("Event ID: REQUEST_REJECTED, Description: %s %s rejected with %d: %v", r.Method, r.URL.Path, status, err)
	}
	writeJSON(w, status, apperrors.ResponseOf(err))
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "invalid request body")
	}
	return nil
}

// actor returns the identity stored by the auth middleware.
func actor(r *http.Request) (authz.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return authz.Identity{}, apperrors.New(apperrors.KindUnauthorized, "not authenticated")
	}
	return identity, nil
}
