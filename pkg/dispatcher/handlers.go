package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/approval"
	"github.com/hopper-project/core/pkg/contextstore"
	perrors "github.com/hopper-project/core/pkg/errors"
	"github.com/hopper-project/core/pkg/hlog"
	"github.com/hopper-project/core/pkg/policy"
)

const maxBodyBytes = 1 << 20

// errValidation marks a malformed or incomplete request body.
func errValidation(msg string) error {
	return perrors.Wrap(ErrValidation, perrors.ErrCodeValidation, msg)
}

func approvalDecision(approved bool) approval.Decision {
	if approved {
		return approval.DecisionAllow
	}
	return approval.DecisionDeny
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// requestPrincipal resolves the caller identity: the authenticated bearer
// principal when auth is enabled, otherwise the request's own user_id
// (development mode only).
func requestPrincipal(r *http.Request, bodyUserID string) string {
	if p, ok := principalFromRequest(r); ok && p != "" {
		return p
	}
	return bodyUserID
}

// handleHealth aggregates every registered worker's last-known health,
// spec.md §6's `GET /health`.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	descs := s.Workers.Descriptors()
	services := make(map[string]string, len(descs))
	status := "healthy"
	for _, d := range descs {
		services[d.Name] = string(d.LastHealth)
		if d.LastHealth != "healthy" {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"services": services,
	})
}

type commandRequest struct {
	Text    string         `json:"text"`
	UserID  string         `json:"user_id"`
	Context map[string]any `json:"context"`
}

// handleCommand submits an utterance through the Agent Loop, spec.md §6's
// `POST /command`.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := requestPrincipal(r, req.UserID)
	if principal == "" || req.Text == "" {
		respondError(w, http.StatusBadRequest, errValidation("text and user_id are required"))
		return
	}

	history := s.Context.FormatHistoryForPrompt(principal, 0)
	hist := make([]agent.HistoryMessage, 0, len(history))
	for _, m := range history {
		hist = append(hist, agent.HistoryMessage{Role: m.Role, Content: m.Content})
	}

	s.logEvent(hlog.LevelInfo, hlog.CategoryCommand, "command_received", principal, map[string]any{"text": req.Text})
	result := s.Loop.Run(r.Context(), principal, req.Text, hist)
	s.logEvent(hlog.LevelInfo, hlog.CategoryCommand, "command_completed", principal, map[string]any{
		"outcome": string(result.Outcome), "actions": len(result.ActionsTaken),
	})

	actions := make([]contextstore.ActionRecord, 0, len(result.Trace))
	for _, step := range result.Trace {
		if step.Action == nil {
			continue
		}
		rec := contextstore.ActionRecord{
			ToolName:  step.Action.ToolName,
			Arguments: step.Action.Arguments,
			Reasoning: step.Action.Reasoning,
		}
		if step.Observation != nil {
			rec.Status = step.Observation.Status
		}
		actions = append(actions, rec)
	}
	_ = s.Context.AppendExchange(principal, req.Text, result.Answer, actions)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       result.Outcome == agent.OutcomeSuccess,
		"message":       result.Answer,
		"actions_taken": result.ActionsTaken,
	})
}

type contextResetRequest struct {
	UserID string `json:"user_id"`
}

// handleContextReset clears and re-creates a Session, spec.md §6's
// `POST /context`.
func (s *Server) handleContextReset(w http.ResponseWriter, r *http.Request) {
	var req contextResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, errValidation("user_id is required"))
		return
	}
	s.Context.Clear(req.UserID)
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": req.UserID,
		"context": s.Context.Stats(req.UserID),
		"created": true,
	})
}

// handleContextGet dumps a Session, spec.md §6's `GET /context/{user_id}`.
func (s *Server) handleContextGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	history := s.Context.FormatHistoryForPrompt(userID, 0)
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"context": history,
	})
}

// handleContextClear clears a Session, spec.md §6's
// `DELETE /context/{user_id}`.
func (s *Server) handleContextClear(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	s.Context.Clear(userID)
	respondJSON(w, http.StatusOK, map[string]string{"message": "context cleared for " + userID})
}

type execRequest struct {
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	Timeout   int      `json:"timeout"`
	Cwd       string   `json:"cwd"`
	Principal string   `json:"principal"` // dev-mode fallback when auth is disabled
}

// handleExec forwards a gated command straight to the executor worker,
// spec.md §6's `POST /exec`. It is gated by action-class policy and the
// banned-verb screen before the worker ever sees the request.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := requestPrincipal(r, req.Principal)
	if principal == "" {
		respondError(w, http.StatusUnauthorized, errValidation("principal required"))
		return
	}

	call := policy.ToolCall{
		Principal: principal,
		ToolName:  "run_command",
		Arguments: map[string]any{"command": req.Command, "argv": req.Args},
	}
	if err := s.Gate.Check(r.Context(), principal, call); err != nil {
		s.logEvent(hlog.LevelWarn, hlog.CategorySecurity, "exec_denied", principal, map[string]any{"command": req.Command})
		respondError(w, statusForKind(errKind(err)), err)
		return
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]any{
		"command": req.Command,
		"args":    req.Args,
		"cwd":     req.Cwd,
	})
	resp, err := s.Workers.Call(ctx, s.ExecutorWorker, "/exec", http.MethodPost, body)
	if err != nil {
		respondError(w, statusForKind(errKind(err)), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

type confirmRequest struct {
	Approved bool `json:"approved"`
}

// handleConfirm resolves a pending async confirmation, spec.md §6's
// `POST /security/confirm/{id}`.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decision := approvalDecision(req.Approved)
	if err := s.Gate.Broker.Resolve(id, decision); err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handlePending lists outstanding async confirmations, spec.md §6's
// `GET /security/pending`.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := s.Gate.Broker.Pending()
	out := make(map[string]any, len(pending))
	for _, pc := range pending {
		out[pc.ID] = map[string]any{
			"principal":  pc.Principal,
			"tool_name":  pc.ToolName,
			"risk":       pc.Request.Risk,
			"reason":     pc.Request.Reason,
			"created_at": pc.CreatedAt,
			"expires_at": pc.ExpiresAt,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": out})
}

// handleSecurityReport exposes per-principal activity stats, the
// supplemented `GET /security/report` endpoint (SPEC_FULL.md §10).
func (s *Server) handleSecurityReport(w http.ResponseWriter, r *http.Request) {
	if s.Index == nil {
		respondError(w, http.StatusServiceUnavailable, errValidation("audit index not enabled"))
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	since := time.Now().Add(-7 * 24 * time.Hour)
	stats, err := s.Index.TopPrincipals(r.Context(), since, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"top_principals": stats})
}
