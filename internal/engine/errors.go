package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/swim4love/swim4love/internal/config"
)

// Code is the stable numeric result code returned to clients.
type Code int

const (
	CodeSuccess            Code = 0
	CodeInvalidIDFormat    Code = 1
	CodeIDAlreadyExists    Code = 2
	CodeIDNotRegistered    Code = 3
	CodeMalformedRequest   Code = 4
	CodeDecrementBelowZero Code = 5
	CodeUnauthenticated    Code = 6
	CodeForbidden          Code = 7
	CodeNotFound           Code = 8
	CodeUsernameTaken      Code = 9
	CodeInternal           Code = -1
)

// messages holds the response text of every code per locale.
// A %s verb is replaced by the swimmer id the error refers to.
var messages = map[config.Locale]map[Code]string{
	config.LocaleEnglish: {
		CodeSuccess:            "Success",
		CodeInvalidIDFormat:    "Swimmer ID #%s has an invalid format",
		CodeIDAlreadyExists:    "Swimmer ID #%s already exists",
		CodeIDNotRegistered:    "Swimmer ID #%s is not registered",
		CodeMalformedRequest:   "Malformed request",
		CodeDecrementBelowZero: "Swimmer #%s has no laps left to remove",
		CodeUnauthenticated:    "Please log in first",
		CodeForbidden:          "Permission denied",
		CodeNotFound:           "Not found",
		CodeUsernameTaken:      "Username is already taken",
		CodeInternal:           "Internal server error",
	},
	config.LocaleChinese: {
		CodeSuccess:            "Success",
		CodeInvalidIDFormat:    "游泳者ID#%s格式不正确",
		CodeIDAlreadyExists:    "游泳者ID#%s已存在",
		CodeIDNotRegistered:    "游泳者ID#%s没有登记",
		CodeMalformedRequest:   "请求格式不正确",
		CodeDecrementBelowZero: "游泳者#%s的圈数不能再减啦",
		CodeUnauthenticated:    "请先登录",
		CodeForbidden:          "没有权限",
		CodeNotFound:           "未找到",
		CodeUsernameTaken:      "用户名已存在",
		CodeInternal:           "服务器内部错误",
	},
}

// Message returns the localized text of the code, formatted with id where the text refers to a swimmer.
func (c Code) Message(locale config.Locale, id string) string {
	catalog, ok := messages[locale]
	if !ok {
		catalog = messages[config.LocaleEnglish]
	}
	msg, ok := catalog[c]
	if !ok {
		msg = catalog[CodeInternal]
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, id)
	}
	return msg
}

// HTTPStatus maps the code to the status used on data routes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidIDFormat, CodeMalformedRequest:
		return http.StatusBadRequest
	case CodeIDAlreadyExists, CodeDecrementBelowZero, CodeUsernameTaken:
		return http.StatusConflict
	case CodeIDNotRegistered, CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error of a single operation.
type Error struct {
	Code Code
	// SwimmerID is the id the operation was called with, if any.
	SwimmerID string
	// Err is the underlying cause for internal errors.
	Err error
}

func (e *Error) Error() string {
	msg := e.Code.Message(config.LocaleEnglish, e.SwimmerID)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, id string) *Error {
	return &Error{Code: code, SwimmerID: id}
}

func internalError(err error) *Error {
	return &Error{Code: CodeInternal, Err: err}
}

// ErrorCode returns the code carried by err. Errors that are not domain errors are internal.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err is a domain error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Unauthenticated and Forbidden are returned by the access control layer.
var (
	ErrUnauthenticated = newError(CodeUnauthenticated, "")
	ErrForbidden       = newError(CodeForbidden, "")
	ErrNotFound        = newError(CodeNotFound, "")
	ErrMalformed       = newError(CodeMalformedRequest, "")
)
