package dispatcher

import "errors"

// ErrPermissionDenied is returned when the Permission Engine classifies a
// call as forbidden.
var ErrPermissionDenied = errors.New("dispatcher: permission denied")

// ErrConfirmationRejected is returned when a human denies a
// requires-confirmation action.
var ErrConfirmationRejected = errors.New("dispatcher: confirmation rejected")

// ErrValidation marks a malformed or incomplete request body.
var ErrValidation = errors.New("dispatcher: validation error")
