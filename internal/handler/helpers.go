package handler

import (
	"errors"
	"net/http"

	"quillvault/internal/domain"
	"quillvault/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var violations domain.ValidationErrors
	if errors.As(err, &violations) {
		// The full violation list rides along so clients can present
		// every error together.
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, "invalid save configuration",
			map[string]interface{}{"violations": violations})
		return
	}

	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		httputil.RespondError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrEngineDestroyed):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
