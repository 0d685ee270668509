package domain

import "errors"

// Code is the stable machine-readable identifier surfaced to clients.
type Code string

const (
	CodeSessionNotFound          Code = "SESSION_NOT_FOUND"
	CodeParticipantNotFound      Code = "PARTICIPANT_NOT_FOUND"
	CodeParticipantAlreadyJoined Code = "PARTICIPANT_ALREADY_JOINED"
	CodeSessionAlreadyExists     Code = "SESSION_ALREADY_EXISTS"
	CodeSessionClosed            Code = "SESSION_CLOSED"
	CodeInvalidOperation         Code = "INVALID_OPERATION"
	CodeParticipantNotInSession  Code = "PARTICIPANT_NOT_IN_SESSION"
	CodeValidation               Code = "VALIDATION_ERROR"
	CodeRepository               Code = "REPOSITORY_ERROR"
	CodeUnhandled                Code = "UNHANDLED_ERROR"
)

// Error is a domain failure with a stable code. The package level values
// below are sentinels; callers wrap them with fmt.Errorf and match with errors.Is.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrSessionNotFound          = &Error{Code: CodeSessionNotFound, Message: "session not found"}
	ErrParticipantNotFound      = &Error{Code: CodeParticipantNotFound, Message: "participant not found"}
	ErrParticipantAlreadyJoined = &Error{Code: CodeParticipantAlreadyJoined, Message: "participant already joined"}
	ErrSessionAlreadyExists     = &Error{Code: CodeSessionAlreadyExists, Message: "session already exists"}
	ErrSessionClosed            = &Error{Code: CodeSessionClosed, Message: "session is closed"}
	ErrInvalidOperation         = &Error{Code: CodeInvalidOperation, Message: "invalid operation"}
	ErrParticipantNotInSession  = &Error{Code: CodeParticipantNotInSession, Message: "participant is not in session"}
	ErrValidation               = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrRange                    = &Error{Code: CodeValidation, Message: "position out of range"}
	ErrRepository               = &Error{Code: CodeRepository, Message: "repository failure"}
)

// CodeOf returns the code of the first domain error found in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnhandled
}

// PublicMessage is the text safe to show a client. Infrastructure and unknown
// failures collapse to a generic message.
func PublicMessage(err error) string {
	switch CodeOf(err) {
	case "":
		return ""
	case CodeRepository, CodeUnhandled:
		return "internal server error"
	default:
		return err.Error()
	}
}
