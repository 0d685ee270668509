package httpapi

import (
	"net/http"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
)

type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
}

func StatusFor(code domain.Code) int {
	switch code {
	case domain.CodeSessionNotFound, domain.CodeParticipantNotFound:
		return http.StatusNotFound
	case domain.CodeParticipantAlreadyJoined, domain.CodeSessionAlreadyExists:
		return http.StatusConflict
	case domain.CodeRepository, domain.CodeUnhandled:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// MapError builds the response for err. Details carry the full error chain and
// are only exposed in development.
func MapError(err error, development bool) (int, ErrorResponse) {
	code := domain.CodeOf(err)
	body := ErrorResponse{
		ErrorCode: string(code),
		Error:     domain.PublicMessage(err),
	}
	if development {
		body.Details = err.Error()
	}
	return StatusFor(code), body
}
