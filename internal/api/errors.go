package api

import "net/http"

// Error is the body of an API error: {"error":{"code":...,"message":...}}.
// Handler packages write the same shape with local helpers.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Router-level errors. Handlers answer their own.
var (
	ErrNotFound = &Error{
		Code:    "NOT_FOUND",
		Message: "no such API route",
		Status:  http.StatusNotFound,
	}

	ErrMethodNotAllowed = &Error{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "method not allowed on this route",
		Status:  http.StatusMethodNotAllowed,
	}
)
