package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondAppError logs a workflow error and sends its raw message with a status for its kind
func respondAppError(w http.ResponseWriter, err error, userID, msg string) {
	status := statusFor(err)
	event := log.Error()
	if status < http.StatusInternalServerError {
		event = log.Warn()
	}
	event.Err(err).Str("user_id", userID).Int("status", status).Msg(msg)

	respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: apperror.CodeOf(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// readImage reads the multipart "image" file into memory, rejecting empty and oversized files
func readImage(r *http.Request, maxBytes int64) (storage.ImageRef, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, apperror.Validation("image", fmt.Sprintf("invalid multipart form: %v", err))
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, apperror.Validation("image", "image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, apperror.Validation("image", fmt.Sprintf("failed to read image: %v", err))
	}
	if len(data) == 0 {
		return nil, apperror.Validation("image", "image is empty")
	}
	if int64(len(data)) > maxBytes {
		return nil, apperror.Validation("image", fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	return storage.BytesImage{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
