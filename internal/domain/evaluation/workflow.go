package evaluation

import (
	"fmt"
	"strings"
	"time"

	"evalconsole/internal/domain/auth"
)

// Action is what an actor asks the workflow to do.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionComplete    Action = "complete"
	ActionAcknowledge Action = "acknowledge"
	ActionComment     Action = "comment"
)

func ParseAction(raw string) (Action, bool) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ActionSubmit, ActionApprove, ActionReject, ActionComplete, ActionAcknowledge, ActionComment:
		return action, true
	}
	return "", false
}

// Actor is the person requesting a transition.
type Actor struct {
	ID         string
	EmployeeID string
	Name       string
	Role       auth.Role
}

func ActorFromUser(user auth.UserContext) Actor {
	return Actor{ID: user.UserID, EmployeeID: user.EmployeeID, Name: user.Name, Role: user.Role}
}

// Label renders the actor the way the activity feed shows it.
func (a Actor) Label() string {
	return FormatActor(a.Role.DisplayName(), a.Name)
}

func FormatActor(role, name string) string {
	role = strings.TrimSpace(role)
	name = strings.TrimSpace(name)
	switch {
	case role == "" && name == "":
		return "System"
	case name == "":
		return role
	case role == "":
		return name
	}
	return name + " (" + role + ")"
}

type TransitionRequest struct {
	Status         Status
	Type           Type
	Actor          Actor
	Action         Action
	Comment        string
	ObjectiveCount int
	At             time.Time
}

type TransitionResult struct {
	From  Status        `json:"from"`
	To    Status        `json:"to"`
	Entry ActivityEntry `json:"entry"`
}

// Changed reports whether the transition moves the evaluation.
func (r TransitionResult) Changed() bool {
	return r.From != r.To
}

type rule struct {
	from     Status
	role     auth.Role
	action   Action
	to       Status
	log      LogAction
	selfOnly bool
}

var transitionTable = []rule{
	{from: StatusDraft, role: auth.RoleLineManager, action: ActionSubmit, to: StatusPendingHoD, log: LogSubmitted},
	{from: StatusDraft, role: auth.RoleEmployee, action: ActionSubmit, to: StatusPendingHoD, log: LogSubmittedToHoD, selfOnly: true},
	{from: StatusPendingHoD, role: auth.RoleHoD, action: ActionApprove, to: StatusPendingHR, log: LogApproved},
	{from: StatusPendingHoD, role: auth.RoleHoD, action: ActionReject, to: StatusDraft, log: LogRejected},
	{from: StatusPendingHR, role: auth.RoleHR, action: ActionApprove, to: StatusEmployeeReview, log: LogApproved},
	{from: StatusPendingHR, role: auth.RoleHR, action: ActionReject, to: StatusPendingHoD, log: LogRejected},
	{from: StatusEmployeeReview, role: auth.RoleEmployee, action: ActionAcknowledge, to: StatusApproved, log: LogApproved},
	{from: StatusApproved, role: auth.RoleHR, action: ActionComplete, to: StatusCompleted, log: LogCompleted},
}

// workflowRole folds admin into HR; the approval line has no admin step.
func workflowRole(role auth.Role) auth.Role {
	if role == auth.RoleAdmin {
		return auth.RoleHR
	}
	return role
}

func (r rule) matches(status Status, typ Type, role auth.Role, action Action) bool {
	if r.from != status || r.role != role || r.action != action {
		return false
	}
	return !r.selfOnly || typ == TypeSelf
}

// Transition decides whether an action is legal and computes its consequence.
// It has no side effects.
func Transition(req TransitionRequest) (TransitionResult, error) {
	if req.Action == ActionApprove || req.Action == ActionReject {
		if req.ObjectiveCount < MinObjectivesForDecision {
			return TransitionResult{}, fieldError("objectives", ErrInsufficientObjectives)
		}
	}
	comment := strings.TrimSpace(req.Comment)
	if (req.Action == ActionReject || req.Action == ActionComment) && comment == "" {
		return TransitionResult{}, fieldError("comment", ErrCommentRequired)
	}
	if req.Status.Terminal() {
		return TransitionResult{}, ErrTerminal
	}
	if !req.Status.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: unknown status %q", ErrTransitionNotAllowed, req.Status)
	}

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	entry := ActivityEntry{
		Actor:     req.Actor.Label(),
		Timestamp: at,
		Comment:   comment,
	}

	if req.Action == ActionComment {
		entry.Status = req.Status
		entry.Action = LogComment
		return TransitionResult{From: req.Status, To: req.Status, Entry: entry}, nil
	}

	role := workflowRole(req.Actor.Role)
	for _, r := range transitionTable {
		if !r.matches(req.Status, req.Type, role, req.Action) {
			continue
		}
		entry.Status = r.to
		entry.Action = r.log
		entry.IsRejection = r.action == ActionReject
		return TransitionResult{From: req.Status, To: r.to, Entry: entry}, nil
	}
	return TransitionResult{}, fmt.Errorf("%w: %s cannot %s an evaluation in %s", ErrTransitionNotAllowed, req.Actor.Role.DisplayName(), req.Action, req.Status)
}

// AvailableActions lists the actions the role may take from status, ignoring
// the objective-count and comment guards.
func AvailableActions(status Status, typ Type, role auth.Role) []Action {
	if status.Terminal() || !status.Valid() {
		return nil
	}
	role = workflowRole(role)
	var out []Action
	for _, r := range transitionTable {
		if r.matches(status, typ, role, r.action) {
			out = append(out, r.action)
		}
	}
	return append(out, ActionComment)
}

// StepForward and StepBack move one position along the approval line,
// clamped at both ends. They describe the line only; state changes go
// through Transition.
func StepForward(status Status) Status {
	idx := status.Index()
	if idx < 0 {
		return StatusDraft
	}
	if idx+1 >= len(Statuses) {
		return Statuses[len(Statuses)-1]
	}
	return Statuses[idx+1]
}

func StepBack(status Status) Status {
	idx := status.Index()
	if idx <= 0 {
		return StatusDraft
	}
	return Statuses[idx-1]
}

type Progress struct {
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Next     Status  `json:"next"`
	Previous Status  `json:"previous"`
}

func ProgressOf(status Status) Progress {
	idx := status.Index()
	if idx < 0 {
		idx = 0
	}
	total := len(Statuses)
	return Progress{
		Index:    idx,
		Total:    total,
		Percent:  float64(idx) / float64(total-1) * 100,
		Next:     StepForward(status),
		Previous: StepBack(status),
	}
}
