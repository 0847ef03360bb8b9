package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"evalconsole/internal/domain/evaluation"
)

var _ evaluation.RemoteAPI = (*Client)(nil)

func (c *Client) ListEvaluations(ctx context.Context, f evaluation.ListFilter) ([]evaluation.Evaluation, error) {
	raw, err := c.list(ctx, "evaluations", query(
		"employee_id", f.EmployeeID,
		"status", string(f.Status),
		"type", string(f.Type),
		"period", f.Period,
		"reviewer_id", f.ReviewerID,
	))
	if err != nil {
		return nil, err
	}
	return decodeList[evaluation.Evaluation](raw)
}

func (c *Client) GetEvaluation(ctx context.Context, id string) (evaluation.Evaluation, error) {
	var ev evaluation.Evaluation
	err := c.get(ctx, path("evaluations", id), nil, &ev)
	return ev, err
}

func (c *Client) CreateEvaluation(ctx context.Context, payload evaluation.NewEvaluation) (evaluation.Evaluation, error) {
	var ev evaluation.Evaluation
	err := c.do(ctx, http.MethodPost, "evaluations", payload, &ev)
	return ev, err
}

func (c *Client) UpdateEvaluation(ctx context.Context, id string, patch evaluation.EvaluationPatch) (evaluation.Evaluation, error) {
	var ev evaluation.Evaluation
	err := c.do(ctx, http.MethodPatch, path("evaluations", id), patch, &ev)
	return ev, err
}

func (c *Client) ListObjectives(ctx context.Context, evaluationID string) ([]evaluation.Objective, error) {
	raw, err := c.list(ctx, "objectives", query("evaluation_id", evaluationID))
	if err != nil {
		return nil, err
	}
	return decodeList[evaluation.Objective](raw)
}

func (c *Client) CreateObjective(ctx context.Context, payload evaluation.Objective) (evaluation.Objective, error) {
	var o evaluation.Objective
	err := c.do(ctx, http.MethodPost, "objectives", payload, &o)
	return o, err
}

func (c *Client) UpdateObjective(ctx context.Context, payload evaluation.Objective) (evaluation.Objective, error) {
	var o evaluation.Objective
	err := c.do(ctx, http.MethodPatch, path("objectives", payload.ID), payload, &o)
	return o, err
}

func (c *Client) DeleteObjective(ctx context.Context, objectiveID string) error {
	return c.do(ctx, http.MethodDelete, path("objectives", objectiveID), nil, nil)
}

func (c *Client) ListCompetencies(ctx context.Context, evaluationID string) ([]evaluation.Competency, error) {
	raw, err := c.list(ctx, "competencies", query("evaluation_id", evaluationID))
	if err != nil {
		return nil, err
	}
	return decodeList[evaluation.Competency](raw)
}

func (c *Client) CreateCompetency(ctx context.Context, payload evaluation.Competency) (evaluation.Competency, error) {
	var out evaluation.Competency
	err := c.do(ctx, http.MethodPost, "competencies", payload, &out)
	return out, err
}

func (c *Client) UpdateCompetency(ctx context.Context, payload evaluation.Competency) (evaluation.Competency, error) {
	var out evaluation.Competency
	err := c.do(ctx, http.MethodPatch, path("competencies", payload.ID), payload, &out)
	return out, err
}

func (c *Client) DeleteCompetency(ctx context.Context, competenceID string) error {
	return c.do(ctx, http.MethodDelete, path("competencies", competenceID), nil, nil)
}

func (c *Client) ListActivity(ctx context.Context, evaluationID string) ([]evaluation.RawActivity, error) {
	raw, err := c.list(ctx, "activity-logs", query("evaluation_id", evaluationID))
	if err != nil {
		return nil, err
	}
	return decodeList[evaluation.RawActivity](raw)
}

func (c *Client) AppendActivity(ctx context.Context, payload evaluation.NewActivity) error {
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, "activity-logs", payload, &ignored)
}
