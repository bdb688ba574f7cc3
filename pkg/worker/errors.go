package worker

import "errors"

// ErrRemoteUnavailable is returned when a worker cannot be reached at all
// (transport failure, including after the single retry) or when its
// backpressure queue is full.
var ErrRemoteUnavailable = errors.New("worker: remote unavailable")

// ErrHandler wraps an upstream HTTP-level error response (4xx/5xx body).
var ErrHandler = errors.New("worker: handler error")
