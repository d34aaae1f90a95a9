package response

import (
	"errors"

	"github.com/fatflowers/iptv-crm/pkg/errs"
)

type APIResponseCode int

const (
	APIResponseCodeOK         APIResponseCode = 0
	APIResponseCodeBadRequest APIResponseCode = 40000
	APIResponseCodeNotFound   APIResponseCode = 40400
	APIResponseCodeConflict   APIResponseCode = 40900
	APIResponseCodeError      APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:         "ok",
	APIResponseCodeBadRequest: "bad request",
	APIResponseCodeNotFound:   "not found",
	APIResponseCodeConflict:   "conflict",
	APIResponseCodeError:      "internal error",
}

// APIResponse is the envelope returned by every JSON endpoint.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// CodeFor maps a service error onto an envelope code.
func CodeFor(err error) APIResponseCode {
	switch {
	case err == nil:
		return APIResponseCodeOK
	case errs.IsValidation(err):
		return APIResponseCodeBadRequest
	case errs.IsNotFound(err):
		return APIResponseCodeNotFound
	case errors.Is(err, errs.ErrConflict):
		return APIResponseCodeConflict
	default:
		return APIResponseCodeError
	}
}

// FromError builds the error envelope for err. Only the message is exposed.
func FromError(err error) *APIResponse[any] {
	return ErrorT[any](CodeFor(err), err.Error())
}
