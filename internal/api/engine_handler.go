package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/commandq/internal/api/shared"
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/service"
)

// Engine is the part of the lifecycle controller the HTTP surface drives.
type Engine interface {
	Submit(ctx context.Context, kind command.Kind, target command.TimelineRef, opts command.Options) (*command.Command, error)
	QueueSnapshot(q queue.Type) ([]*command.Command, error)
	Counts() map[queue.Type]int
	ClearErrorQueue(ctx context.Context) (int, error)
	Status(now time.Time) service.Status
	Stop(ctx context.Context, forceNow bool) service.State
}

// EngineHandler handles the command and queue endpoints.
type EngineHandler struct {
	engine Engine
	now    func() time.Time
}

// NewEngineHandler creates a new EngineHandler
func NewEngineHandler(engine Engine) *EngineHandler {
	return &EngineHandler{engine: engine, now: time.Now}
}

// SubmitCommand handles POST /api/commands requests
func (h *EngineHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req SubmitCommandRequest
	if err := shared.DecodeJSON(r, &req, false); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	kind, ok := command.ParseKind(req.Kind)
	if !ok {
		HandleAPIError(w, r, fmt.Errorf("%w: %q", service.ErrUnknownKind, req.Kind), "")
		return
	}

	cmd, err := h.engine.Submit(r.Context(), kind, req.Target.Ref(), command.Options{
		InForeground:     req.InForeground,
		ManuallyLaunched: req.ManuallyLaunched,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit command")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContext(r.Context()).Info("command submitted",
		"kind", cmd.Kind,
		"created_at", cmd.CreatedAt,
		"subject", subject)

	// Execution happens in the background.
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitCommandResponse{
		CreatedAt: cmd.CreatedAt,
		Kind:      string(cmd.Kind),
	})
}

// ListQueues handles GET /api/queues requests
func (h *EngineHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	counts := h.engine.Counts()
	resp := QueueCountsResponse{Queues: make(map[string]int, len(queue.Types))}
	for _, q := range queue.Types {
		resp.Queues[string(q)] = counts[q]
		resp.Total += counts[q]
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetQueue handles GET /api/queues/{queue} requests
func (h *EngineHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	q, err := queue.ParseType(chi.URLParam(r, "queue"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	cmds, err := h.engine.QueueSnapshot(q)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read queue")
		return
	}
	if cmds == nil {
		cmds = []*command.Command{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, QueueResponse{Queue: string(q), Commands: cmds})
}

// ClearErrorQueue handles DELETE /api/queues/error requests
func (h *EngineHandler) ClearErrorQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.ClearErrorQueue(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to clear error queue")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ClearQueueResponse{Cleared: n})
}

// GetState handles GET /api/state requests
func (h *EngineHandler) GetState(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.engine.Status(h.now()))
}

// StopService handles POST /api/service/stop requests. The body is optional.
func (h *EngineHandler) StopService(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := shared.DecodeJSON(r, &req, true); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	state := h.engine.Stop(r.Context(), req.Force)
	subject, _ := shared.GetSubject(r.Context())
	logger.FromContext(r.Context()).Info("stop requested",
		"force", req.Force,
		"state", state,
		"subject", subject)
	shared.RespondWithJSON(w, r, http.StatusOK, StopResponse{State: state})
}
