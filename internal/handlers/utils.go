package handlers

import (
	"errors"
	"log"
	"net/http"

	"gemchat-backend/internal/auth"
	"gemchat-backend/internal/blobstore"
	"gemchat-backend/internal/genai"
	"gemchat-backend/internal/services"
	"gemchat-backend/internal/store"
	"gemchat-backend/pkg/httputil"

	"github.com/google/uuid"
)

// userIDFromRequest extracts the authenticated user ID injected by the JWT
// middleware. A missing ID means the middleware did not run; respond 401 and
// report false.
func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == uuid.Nil {
		log.Println("Handler: UserID not found in request context")
		httputil.RespondError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// respondPipelineError maps send-pipeline failures onto HTTP status codes:
//
//	400 — oversized inline payload, bad attachments, malformed input
//	403 — blob storage rejected the request (CORS or credentials)
//	404 — conversation not found (or not owned by the caller)
//	4xx/5xx — upstream model failures surface with their own status (429 included)
//	500 — everything else
func respondPipelineError(w http.ResponseWriter, err error) {
	var apiErr *genai.APIError
	var upErr *blobstore.UploadError

	switch {
	case errors.Is(err, genai.ErrPayloadTooLarge):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidAttachment):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
	case errors.As(err, &apiErr):
		code := apiErr.StatusCode
		if code < 400 || code > 599 {
			code = http.StatusInternalServerError
		}
		httputil.RespondError(w, code, apiErr.Message)
	case errors.As(err, &upErr):
		switch upErr.Class {
		case blobstore.FailureAuth, blobstore.FailureCORS:
			httputil.RespondError(w, http.StatusForbidden, "Blob storage rejected the upload")
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Attachment upload failed")
		}
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "Request failed due to an internal error")
	}
}
