package evaluation

import (
	"context"
	"time"
)

// RemoteAPI is the slice of the HR REST API the evaluation service drives.
type RemoteAPI interface {
	ListEvaluations(ctx context.Context, filter ListFilter) ([]Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (Evaluation, error)
	CreateEvaluation(ctx context.Context, payload NewEvaluation) (Evaluation, error)
	UpdateEvaluation(ctx context.Context, id string, patch EvaluationPatch) (Evaluation, error)
	ListObjectives(ctx context.Context, evaluationID string) ([]Objective, error)
	CreateObjective(ctx context.Context, payload Objective) (Objective, error)
	UpdateObjective(ctx context.Context, payload Objective) (Objective, error)
	DeleteObjective(ctx context.Context, objectiveID string) error
	ListCompetencies(ctx context.Context, evaluationID string) ([]Competency, error)
	CreateCompetency(ctx context.Context, payload Competency) (Competency, error)
	UpdateCompetency(ctx context.Context, payload Competency) (Competency, error)
	DeleteCompetency(ctx context.Context, competenceID string) error
	ListActivity(ctx context.Context, evaluationID string) ([]RawActivity, error)
	AppendActivity(ctx context.Context, payload NewActivity) error
}

// Cache namespaces, one per logical collection.
const (
	CacheEvaluation   = "evaluation"
	CacheEvaluations  = "evaluations"
	CacheObjectives   = "objectives"
	CacheCompetencies = "competencies"
	CacheActivity     = "activity"
)

// Cache is an advisory read cache. Entries are scoped to an owner so two
// users never share a response; Invalidate drops a key for every owner, or
// the whole namespace when key is empty.
type Cache interface {
	Do(ctx context.Context, namespace, owner, key string, load func(context.Context) (any, error)) (any, error)
	Invalidate(namespace, key string)
}

type noCache struct{}

func (noCache) Do(ctx context.Context, _, _, _ string, load func(context.Context) (any, error)) (any, error) {
	return load(ctx)
}

func (noCache) Invalidate(string, string) {}

// Outcome is how a persisted transition ended.
type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeCompensated Outcome = "compensated"
	OutcomeUnresolved  Outcome = "unresolved"
)

// TransitionRecord is one row of the transition journal.
type TransitionRecord struct {
	EvaluationID string
	Actor        string
	Action       Action
	From         Status
	To           Status
	Outcome      Outcome
	Error        string
	At           time.Time
}

type Journal interface {
	Record(ctx context.Context, rec TransitionRecord) error
}
