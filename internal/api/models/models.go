package models

import (
	"errors"

	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/engine"
)

// User is the signed in volunteer of a request.
type User struct {
	ID       uint
	Username string
	IsAdmin  bool
}

// Response is the body of every data route.
type Response struct {
	Code engine.Code `json:"code"`
	Msg  string      `json:"msg"`
	Data any         `json:"data,omitempty"`
	// ErrorID identifies an internal error in the server log.
	ErrorID string `json:"error_id,omitempty"`
}

// Success builds a successful response carrying data.
func Success(locale config.Locale, data any) Response {
	return Response{
		Code: engine.CodeSuccess,
		Msg:  engine.CodeSuccess.Message(locale, ""),
		Data: data,
	}
}

// Failure builds the response of a failed operation.
func Failure(locale config.Locale, err error) Response {
	code := engine.ErrorCode(err)
	var id string
	var e *engine.Error
	if errors.As(err, &e) {
		id = e.SwimmerID
	}
	return Response{
		Code: code,
		Msg:  code.Message(locale, id),
	}
}
