package main

import (
	"context"
	"errors"
	"net/http"

	"textnotes/bridge"
	"textnotes/store"
)

// ErrInvalidInput is returned when a REST payload or path parameter is invalid.
var ErrInvalidInput = errors.New("invalid input")

// statusClientClosedRequest reports a request abandoned by its client.
const statusClientClosedRequest = 499

// statusFor maps a command or store error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrInvalidArgs),
		errors.Is(err, bridge.ErrUnknownCommand),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrIDSpaceExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
