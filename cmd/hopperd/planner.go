package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/worker"
)

//go:generate mockgen -package=main -destination=mock_worker_caller_test.go github.com/hopper-project/core/cmd/hopperd workerCaller
type workerCaller interface {
	Call(ctx context.Context, name, endpoint, method string, body []byte) (*worker.Response, error)
}

// workerPlanner implements agent.Planner over the Service Coordinator: the
// Agent Loop is never told a worker pool exists, only that something can
// turn a prompt into planner text.
type workerPlanner struct {
	coord workerCaller
	name  string
}

type plannerRequest struct {
	Prompt string `json:"prompt"`
}

type plannerResponse struct {
	Text string `json:"text"`
}

func (p *workerPlanner) Plan(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(plannerRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("planner: encode request: %w", err)
	}
	resp, err := p.coord.Call(ctx, p.name, "/plan", http.MethodPost, body)
	if err != nil {
		if errors.Is(err, worker.ErrRemoteUnavailable) {
			return "", fmt.Errorf("%w: %v", agent.ErrPlannerUnreachable, err)
		}
		return "", err
	}
	var out plannerResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("planner: decode response: %w", err)
	}
	return out.Text, nil
}
