package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"

	perrors "github.com/hopper-project/core/pkg/errors"
	"github.com/hopper-project/core/pkg/tool"
	"github.com/hopper-project/core/pkg/worker"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// classify resolves err onto spec.md §7's taxonomy. Errors built through
// pkg/errors (everything the Gate and the request handlers construct)
// carry their own Code/Retryable/Context; errors surfaced unwrapped from a
// collaborator package (pkg/worker, pkg/tool) are mapped onto the same
// taxonomy by sentinel as a fallback.
func classify(err error) (kind string, retryable bool, context map[string]any) {
	var pe *perrors.Error
	if errors.As(err, &pe) {
		return kindForCode(pe.Code), pe.Retryable, pe.Context
	}
	switch {
	case errors.Is(err, worker.ErrRemoteUnavailable):
		return "RemoteUnavailable", true, nil
	case errors.Is(err, worker.ErrHandler):
		return "HandlerError", false, nil
	case errors.Is(err, tool.ErrUnknownTool):
		return "UnknownTool", false, nil
	default:
		return "Internal", false, nil
	}
}

func kindForCode(code perrors.ErrorCode) string {
	switch code {
	case perrors.ErrCodePermissionDenied:
		return "PermissionDenied"
	case perrors.ErrCodeConfirmationReject, perrors.ErrCodeConfirmationTimeout:
		return "ConfirmationRejected"
	case perrors.ErrCodeValidation:
		return "ValidationError"
	case perrors.ErrCodeRemoteUnavailable:
		return "RemoteUnavailable"
	case perrors.ErrCodeHandlerError:
		return "HandlerError"
	case perrors.ErrCodeUnknownTool:
		return "UnknownTool"
	default:
		return "Internal"
	}
}

// errKind maps an error onto one of spec.md §7's taxonomy names.
func errKind(err error) string {
	kind, _, _ := classify(err)
	return kind
}

func statusForKind(kind string) int {
	switch kind {
	case "PermissionDenied":
		return http.StatusForbidden
	case "ConfirmationRejected":
		return http.StatusForbidden
	case "UnknownTool":
		return http.StatusNotFound
	case "RemoteUnavailable":
		return http.StatusServiceUnavailable
	case "HandlerError":
		return http.StatusBadGateway
	case "ValidationError":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	kind, retryable, context := classify(err)
	body := map[string]any{
		"error":     err.Error(),
		"kind":      kind,
		"retryable": retryable,
	}
	if len(context) > 0 {
		body["context"] = context
	}
	respondJSON(w, status, body)
}
