package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/requestctx"
)

// DefaultSessionCapacity bounds how many evaluations keep per-process state.
const DefaultSessionCapacity = 1024

// Session is the per-evaluation state the console keeps between requests:
// the one-shot seed flag, the in-flight transition guard and the optimistic
// entries not yet confirmed by the API.
type Session struct {
	mu       sync.Mutex
	seeded   bool
	pending  []ActivityEntry
	inFlight atomic.Bool
}

func (s *Session) addPending(entry ActivityEntry) {
	s.mu.Lock()
	s.pending = append(s.pending, entry)
	s.mu.Unlock()
}

func (s *Session) dropPending(entry ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(entry)
}

func (s *Session) dropLocked(entry ActivityEntry) {
	for i, p := range s.pending {
		if p.Action == entry.Action && p.Status == entry.Status && p.Timestamp.Equal(entry.Timestamp) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// confirm returns the pending entries still worth showing: those the
// persisted log does not contain and that are not yet stale.
func (s *Session) confirm(persisted []ActivityEntry, now time.Time) []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pending[:0]
	for _, p := range s.pending {
		matched := false
		for _, e := range persisted {
			if e.sameEvent(p) {
				matched = true
				break
			}
		}
		if matched || now.Sub(p.Timestamp) > PendingMatchWindow {
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	return append([]ActivityEntry(nil), kept...)
}

type Service struct {
	API      RemoteAPI
	Cache    Cache
	Journal  Journal
	Location *time.Location
	Now      func() time.Time

	sessions *lru.Cache[string, *Session]
	mu       sync.Mutex
}

func NewService(api RemoteAPI, cache Cache, journal Journal) *Service {
	if cache == nil {
		cache = noCache{}
	}
	sessions, err := lru.New[string, *Session](DefaultSessionCapacity)
	if err != nil {
		panic(err)
	}
	return &Service{
		API:      api,
		Cache:    cache,
		Journal:  journal,
		Location: time.UTC,
		Now:      time.Now,
		sessions: sessions,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Session returns the state for one evaluation, creating it on first use.
func (s *Service) Session(evaluationID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions.Get(evaluationID); ok {
		return sess
	}
	sess := &Session{}
	s.sessions.Add(evaluationID, sess)
	return sess
}

func cached[T any](ctx context.Context, c Cache, namespace, owner, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	value, err := c.Do(ctx, namespace, owner, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache %s: unexpected %T", namespace, value)
	}
	return out, nil
}

func (s *Service) evaluation(ctx context.Context, actor Actor, id string) (Evaluation, error) {
	return cached(ctx, s.Cache, CacheEvaluation, actor.ID, id, func(ctx context.Context) (Evaluation, error) {
		return s.API.GetEvaluation(ctx, id)
	})
}

func (s *Service) objectives(ctx context.Context, actor Actor, id string) ([]Objective, error) {
	return cached(ctx, s.Cache, CacheObjectives, actor.ID, id, func(ctx context.Context) ([]Objective, error) {
		return s.API.ListObjectives(ctx, id)
	})
}

func (s *Service) competencies(ctx context.Context, actor Actor, id string) ([]Competency, error) {
	return cached(ctx, s.Cache, CacheCompetencies, actor.ID, id, func(ctx context.Context) ([]Competency, error) {
		return s.API.ListCompetencies(ctx, id)
	})
}

func (s *Service) activity(ctx context.Context, actor Actor, id string) ([]RawActivity, error) {
	return cached(ctx, s.Cache, CacheActivity, actor.ID, id, func(ctx context.Context) ([]RawActivity, error) {
		return s.API.ListActivity(ctx, id)
	})
}

func (s *Service) invalidateEvaluation(id string) {
	s.Cache.Invalidate(CacheEvaluation, id)
	s.Cache.Invalidate(CacheActivity, id)
	s.Cache.Invalidate(CacheEvaluations, "")
}

// canView is a UX pre-check. The API enforces the real rule.
func canView(actor Actor, ev Evaluation) bool {
	if actor.Role.Privileged() {
		return true
	}
	return ev.EmployeeID == "" || ev.EmployeeID == actor.EmployeeID
}

func canEdit(actor Actor, ev Evaluation) bool {
	caps := auth.CapabilitiesFor(actor.Role)
	if caps.CanManageEvaluations() {
		return true
	}
	return caps.Can(auth.PermSelfEvaluation) && ev.Type == TypeSelf && ev.EmployeeID == actor.EmployeeID
}

type Details struct {
	Evaluation               Evaluation    `json:"evaluation"`
	Objectives               []Objective   `json:"objectives"`
	Competencies             []Competency  `json:"competencies"`
	Scores                   Scores        `json:"scores"`
	Feed                     []ActivityDay `json:"feed"`
	Progress                 Progress      `json:"progress"`
	Actions                  []Action      `json:"actions"`
	RemainingObjectiveWeight float64       `json:"remaining_objective_weight"`
	SecondaryLabel           string        `json:"secondary_label,omitempty"`
}

// Details assembles the evaluation view. A brand-new evaluation with no log
// anywhere is seeded once per session.
func (s *Service) Details(ctx context.Context, actor Actor, id string) (Details, error) {
	var (
		ev           Evaluation
		objectives   []Objective
		competencies []Competency
		logRows      []RawActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ev, err = s.evaluation(gctx, actor, id)
		return err
	})
	g.Go(func() (err error) {
		objectives, err = s.objectives(gctx, actor, id)
		return err
	})
	g.Go(func() (err error) {
		competencies, err = s.competencies(gctx, actor, id)
		return err
	})
	g.Go(func() (err error) {
		logRows, err = s.activity(gctx, actor, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Details{}, err
	}
	if !canView(actor, ev) {
		return Details{}, ErrForbidden
	}

	sess := s.Session(id)
	if NeedsSeed(ev, logRows) {
		s.seed(ctx, sess, ev, actor)
	}

	chosen := logRows
	if len(chosen) == 0 {
		chosen = ev.ActivityLog
	}
	persisted := Reconcile(Sources{API: chosen})
	feed := Reconcile(Sources{API: chosen, Pending: sess.confirm(persisted, s.now())})

	return Details{
		Evaluation:               ev,
		Objectives:               objectives,
		Competencies:             competencies,
		Scores:                   ComputeScores(objectives, competencies),
		Feed:                     GroupByDay(feed, s.Location),
		Progress:                 ProgressOf(ev.Status),
		Actions:                  AvailableActions(ev.Status, ev.Type, actor.Role),
		RemainingObjectiveWeight: RemainingObjectiveWeight(objectives, ""),
		SecondaryLabel:           ev.Status.SecondaryLabel(),
	}, nil
}

// seed persists the synthetic first entry: one log-create call and one
// status-set call. The session flag makes it fire once even when several
// requests open the evaluation together.
func (s *Service) seed(ctx context.Context, sess *Session, ev Evaluation, actor Actor) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.seeded {
		return
	}
	sess.seeded = true

	entry := SeedEntry(ev, actor, s.now())
	sess.pending = append(sess.pending, entry)
	if err := s.API.AppendActivity(ctx, ToNewActivity(ev.ID, entry)); err != nil {
		sess.seeded = false
		sess.dropLocked(entry)
		requestctx.Logger(ctx).Warn("activity seed failed", "evaluation", ev.ID, "err", err)
		return
	}
	status := StatusDraft
	if _, err := s.API.UpdateEvaluation(ctx, ev.ID, EvaluationPatch{Status: &status}); err != nil {
		requestctx.Logger(ctx).Warn("seed status update failed", "evaluation", ev.ID, "err", err)
	}
	s.invalidateEvaluation(ev.ID)
}

// Apply runs one workflow action and persists it: status first, then the
// log entry. A failed log write rolls the status back.
func (s *Service) Apply(ctx context.Context, actor Actor, id string, action Action, comment string) (TransitionResult, error) {
	return s.apply(ctx, actor, id, action, comment, nil)
}

// prepareFunc runs once the transition is known to be legal and before any
// status write. An error aborts the transition.
type prepareFunc func(ctx context.Context, ev Evaluation, objectives []Objective) error

func (s *Service) apply(ctx context.Context, actor Actor, id string, action Action, comment string, prepare prepareFunc) (TransitionResult, error) {
	sess := s.Session(id)
	if !sess.inFlight.CompareAndSwap(false, true) {
		return TransitionResult{}, ErrBusy
	}
	defer sess.inFlight.Store(false)

	ev, err := s.API.GetEvaluation(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	if !canView(actor, ev) {
		return TransitionResult{}, ErrForbidden
	}
	objectives, err := s.API.ListObjectives(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}

	res, err := Transition(TransitionRequest{
		Status:         ev.Status,
		Type:           ev.Type,
		Actor:          actor,
		Action:         action,
		Comment:        comment,
		ObjectiveCount: len(objectives),
		At:             s.now(),
	})
	if err != nil {
		return TransitionResult{}, err
	}
	if prepare != nil {
		if err := prepare(ctx, ev, objectives); err != nil {
			return TransitionResult{}, err
		}
	}

	sess.addPending(res.Entry)
	defer s.invalidateEvaluation(id)

	if res.Changed() {
		to := res.To
		if _, err := s.API.UpdateEvaluation(ctx, id, EvaluationPatch{Status: &to}); err != nil {
			sess.dropPending(res.Entry)
			return TransitionResult{}, fmt.Errorf("update evaluation status: %w", err)
		}
	}

	if err := s.API.AppendActivity(ctx, ToNewActivity(id, res.Entry)); err != nil {
		sess.dropPending(res.Entry)
		outcome := OutcomeCompensated
		if res.Changed() {
			from := res.From
			if _, cerr := s.API.UpdateEvaluation(context.WithoutCancel(ctx), id, EvaluationPatch{Status: &from}); cerr != nil {
				outcome = OutcomeUnresolved
				requestctx.Logger(ctx).Warn("status compensation failed", "evaluation", id, "from", res.To, "to", res.From, "err", cerr)
				err = errors.Join(err, cerr)
			}
		}
		s.record(ctx, id, actor, action, res, outcome, err)
		return TransitionResult{}, fmt.Errorf("append activity: %w", err)
	}

	s.record(ctx, id, actor, action, res, OutcomeCommitted, nil)
	return res, nil
}

func (s *Service) record(ctx context.Context, id string, actor Actor, action Action, res TransitionResult, outcome Outcome, cause error) {
	if s.Journal == nil {
		return
	}
	rec := TransitionRecord{
		EvaluationID: id,
		Actor:        actor.Label(),
		Action:       action,
		From:         res.From,
		To:           res.To,
		Outcome:      outcome,
		At:           s.now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := s.Journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		requestctx.Logger(ctx).Warn("transition journal failed", "evaluation", id, "err", err)
	}
}

// SubmitSelfEvaluation submits a self evaluation to the HoD. The combined
// score is pushed only after the submit passes the workflow rules, and a
// failed score update skips the submit.
func (s *Service) SubmitSelfEvaluation(ctx context.Context, actor Actor, id string) (TransitionResult, error) {
	ev, err := s.API.GetEvaluation(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	if ev.Type != TypeSelf {
		return TransitionResult{}, ErrNotSelfEvaluation
	}
	if !canEdit(actor, ev) {
		return TransitionResult{}, ErrForbidden
	}
	return s.apply(ctx, actor, id, ActionSubmit, "", func(ctx context.Context, _ Evaluation, objectives []Objective) error {
		competencies, err := s.API.ListCompetencies(ctx, id)
		if err != nil {
			return err
		}
		score := ComputeScores(objectives, competencies).Combined
		if _, err := s.API.UpdateEvaluation(ctx, id, EvaluationPatch{Score: &score}); err != nil {
			return fmt.Errorf("update evaluation score: %w", err)
		}
		s.Cache.Invalidate(CacheEvaluation, id)
		return nil
	})
}

func ValidateNewEvaluation(in NewEvaluation) error {
	var issues ValidationErrors
	if strings.TrimSpace(in.EmployeeID) == "" {
		issues.add("employee_id", "employee is required")
	}
	if !in.Type.Valid() {
		issues.add("type", "type must be one of Quarterly, Annual, Optional, Self Evaluation")
	}
	if strings.TrimSpace(in.Period) == "" {
		issues.add("period", "period is required")
	}
	return issues.err()
}

// CreateEvaluation opens a Draft and writes its Created entry. Employees may
// only open their own self evaluation.
func (s *Service) CreateEvaluation(ctx context.Context, actor Actor, in NewEvaluation) (Evaluation, error) {
	if actor.Role == auth.RoleEmployee {
		if in.EmployeeID == "" {
			in.EmployeeID = actor.EmployeeID
		}
		if in.Type != TypeSelf || in.EmployeeID != actor.EmployeeID {
			return Evaluation{}, ErrForbidden
		}
	} else if !auth.CapabilitiesFor(actor.Role).CanManageEvaluations() {
		return Evaluation{}, ErrForbidden
	}
	in.Status = StatusDraft
	if err := ValidateNewEvaluation(in); err != nil {
		return Evaluation{}, err
	}
	ev, err := s.API.CreateEvaluation(ctx, in)
	if err != nil {
		return Evaluation{}, err
	}
	s.Cache.Invalidate(CacheEvaluations, "")

	sess := s.Session(ev.ID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.seeded = true
	entry := SeedEntry(ev, actor, s.now())
	if err := s.API.AppendActivity(ctx, ToNewActivity(ev.ID, entry)); err != nil {
		// Details seeds it later.
		sess.seeded = false
		requestctx.Logger(ctx).Warn("created entry failed", "evaluation", ev.ID, "err", err)
		return ev, nil
	}
	sess.pending = append(sess.pending, entry)
	return ev, nil
}

// List returns evaluations visible to the actor. Employees only see their
// own.
func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]Evaluation, error) {
	if !actor.Role.Privileged() {
		filter.EmployeeID = actor.EmployeeID
	}
	key := strings.Join([]string{filter.EmployeeID, string(filter.Status), string(filter.Type), filter.Period, filter.ReviewerID}, "|")
	return cached(ctx, s.Cache, CacheEvaluations, actor.ID, key, func(ctx context.Context) ([]Evaluation, error) {
		return s.API.ListEvaluations(ctx, filter)
	})
}

func (s *Service) editable(ctx context.Context, actor Actor, evaluationID string) error {
	ev, err := s.evaluation(ctx, actor, evaluationID)
	if err != nil {
		return err
	}
	if !canEdit(actor, ev) {
		return ErrForbidden
	}
	if ev.Status.Terminal() {
		return ErrTerminal
	}
	return nil
}

func (s *Service) AddObjective(ctx context.Context, actor Actor, o Objective) (Objective, error) {
	o.ID = ""
	if o.Status == "" {
		o.Status = ObjectiveNotStarted
	}
	return s.saveObjective(ctx, actor, o, s.API.CreateObjective)
}

func (s *Service) UpdateObjective(ctx context.Context, actor Actor, o Objective) (Objective, error) {
	if o.ID == "" {
		return Objective{}, &ValidationError{Field: "id", Message: "objective id is required"}
	}
	return s.saveObjective(ctx, actor, o, s.API.UpdateObjective)
}

// saveObjective validates against fresh siblings before any write.
func (s *Service) saveObjective(ctx context.Context, actor Actor, o Objective, write func(context.Context, Objective) (Objective, error)) (Objective, error) {
	if o.EvaluationID == "" {
		return Objective{}, &ValidationError{Field: "evaluation_id", Message: "evaluation is required"}
	}
	o.Weight = ToPercent(o.Weight)
	if err := s.editable(ctx, actor, o.EvaluationID); err != nil {
		return Objective{}, err
	}
	siblings, err := s.API.ListObjectives(ctx, o.EvaluationID)
	if err != nil {
		return Objective{}, err
	}
	if err := ValidateObjective(o, siblings); err != nil {
		return Objective{}, err
	}
	saved, err := write(ctx, o)
	if err != nil {
		return Objective{}, err
	}
	s.Cache.Invalidate(CacheObjectives, o.EvaluationID)
	return saved, nil
}

func (s *Service) DeleteObjective(ctx context.Context, actor Actor, evaluationID, objectiveID string) error {
	if err := s.editable(ctx, actor, evaluationID); err != nil {
		return err
	}
	if err := s.API.DeleteObjective(ctx, objectiveID); err != nil {
		return err
	}
	s.Cache.Invalidate(CacheObjectives, evaluationID)
	return nil
}

func (s *Service) AddCompetency(ctx context.Context, actor Actor, c Competency) (Competency, error) {
	c.ID = ""
	return s.saveCompetency(ctx, actor, c, s.API.CreateCompetency)
}

func (s *Service) UpdateCompetency(ctx context.Context, actor Actor, c Competency) (Competency, error) {
	if c.ID == "" {
		return Competency{}, &ValidationError{Field: "id", Message: "competency id is required"}
	}
	return s.saveCompetency(ctx, actor, c, s.API.UpdateCompetency)
}

func (s *Service) saveCompetency(ctx context.Context, actor Actor, c Competency, write func(context.Context, Competency) (Competency, error)) (Competency, error) {
	if c.EvaluationID == "" {
		return Competency{}, &ValidationError{Field: "evaluation_id", Message: "evaluation is required"}
	}
	c.Weight = ToPercent(c.Weight)
	if err := s.editable(ctx, actor, c.EvaluationID); err != nil {
		return Competency{}, err
	}
	siblings, err := s.API.ListCompetencies(ctx, c.EvaluationID)
	if err != nil {
		return Competency{}, err
	}
	if err := ValidateCompetency(c, siblings); err != nil {
		return Competency{}, err
	}
	saved, err := write(ctx, c)
	if err != nil {
		return Competency{}, err
	}
	s.Cache.Invalidate(CacheCompetencies, c.EvaluationID)
	return saved, nil
}

func (s *Service) DeleteCompetency(ctx context.Context, actor Actor, evaluationID, competenceID string) error {
	if err := s.editable(ctx, actor, evaluationID); err != nil {
		return err
	}
	if err := s.API.DeleteCompetency(ctx, competenceID); err != nil {
		return err
	}
	s.Cache.Invalidate(CacheCompetencies, evaluationID)
	return nil
}
