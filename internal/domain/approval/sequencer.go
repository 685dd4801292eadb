package approval

import (
	"fmt"
	"strconv"
	"time"

	"github.com/expensio/approval-engine/internal/domain/entity"
	"github.com/expensio/approval-engine/internal/domain/workflow"
)

// Action is an approver's decision on their step.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Event is a history entry the caller must append after persisting a decision.
type Event struct {
	Action   string
	Metadata map[string]string
}

// Decision is the outcome of applying one approver action. Steps is a fresh
// slice; the input is never mutated. Status is the resulting expense status
// and Trigger the state machine trigger that produced it.
type Decision struct {
	Steps   []entity.ApprovalStep
	Status  string
	Trigger workflow.Trigger
	Events  []Event
}

// CurrentSequence returns the lowest sequence number that still has a pending
// step. The second return value is false when nothing is pending: the
// workflow has nothing left to evaluate. It deliberately never falls back to
// sequence 1.
func CurrentSequence(steps []entity.ApprovalStep) (int, bool) {
	current := 0
	found := false
	for _, s := range steps {
		if s.Status != entity.StepStatusPending {
			continue
		}
		if !found || s.Sequence < current {
			current = s.Sequence
			found = true
		}
	}
	return current, found
}

// IsSequenceComplete reports whether the approvals recorded in the given
// sequence meet its percentage threshold. An empty sequence is vacuously
// complete. All steps within a sequence carry the same threshold.
func IsSequenceComplete(steps []entity.ApprovalStep, seq int) bool {
	total := 0
	approved := 0
	threshold := entity.DefaultPercentageThreshold
	for _, s := range steps {
		if s.Sequence != seq {
			continue
		}
		total++
		threshold = s.PercentageThreshold
		if s.Status == entity.StepStatusApproved {
			approved++
		}
	}
	if total == 0 {
		return true
	}
	return approved*100 >= threshold*total
}

// NextSequence returns the lowest sequence strictly greater than after that
// still has a pending step. The second return value is false when the
// workflow is exhausted.
func NextSequence(steps []entity.ApprovalStep, after int) (int, bool) {
	next := 0
	found := false
	for _, s := range steps {
		if s.Status != entity.StepStatusPending || s.Sequence <= after {
			continue
		}
		if !found || s.Sequence < next {
			next = s.Sequence
			found = true
		}
	}
	return next, found
}

// Decide applies one approver action to an expense's step list and computes
// the resulting status. A single rejection terminates the workflow
// immediately, regardless of other pending steps. When a sequence completes
// under a sub-100% threshold, its never-acted steps are marked skipped so no
// instance is left pending forever.
func Decide(steps []entity.ApprovalStep, actorID int64, action Action, comment string, now time.Time) (*Decision, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, fmt.Errorf("%w: unknown action %q, use %q or %q", ErrValidation, action, ActionApprove, ActionReject)
	}

	current, ok := CurrentSequence(steps)
	if !ok {
		return nil, fmt.Errorf("%w: no pending approval steps", ErrConflict)
	}

	idx := -1
	actorResolved := false
	for i, s := range steps {
		if s.ApproverID != actorID || s.Sequence != current {
			continue
		}
		if s.Status == entity.StepStatusPending {
			idx = i
			break
		}
		actorResolved = true
	}
	if idx < 0 {
		if actorResolved {
			return nil, fmt.Errorf("%w: step in sequence %d already handled", ErrConflict, current)
		}
		return nil, fmt.Errorf("%w: no pending step in sequence %d for actor %d", ErrNotAuthorized, current, actorID)
	}

	next := make([]entity.ApprovalStep, len(steps))
	copy(next, steps)

	actedAt := now
	next[idx].ActedAt = &actedAt
	next[idx].Comment = comment

	if action == ActionReject {
		next[idx].Status = entity.StepStatusRejected
		return &Decision{
			Steps:   next,
			Status:  entity.ExpenseStatusRejected,
			Trigger: workflow.TriggerReject,
			Events: []Event{{
				Action: entity.HistoryActionRejected,
				Metadata: map[string]string{
					"step_name": next[idx].StepName,
					"sequence":  strconv.Itoa(current),
					"comment":   comment,
				},
			}},
		}, nil
	}

	next[idx].Status = entity.StepStatusApproved

	events := []Event{{
		Action: entity.HistoryActionStepApproved,
		Metadata: map[string]string{
			"step_name": next[idx].StepName,
			"sequence":  strconv.Itoa(current),
			"comment":   comment,
		},
	}}

	if !IsSequenceComplete(next, current) {
		return &Decision{
			Steps:   next,
			Status:  entity.ExpenseStatusPartiallyApproved,
			Trigger: workflow.TriggerApproveStep,
			Events:  events,
		}, nil
	}

	// Threshold met: steps nobody acted on can never be acted on again.
	for i := range next {
		if next[i].Sequence == current && next[i].Status == entity.StepStatusPending {
			next[i].Status = entity.StepStatusSkipped
		}
	}

	nextSeq, hasNext := NextSequence(next, current)
	if !hasNext {
		events = append(events, Event{
			Action:   entity.HistoryActionFullyApproved,
			Metadata: map[string]string{"comment": comment},
		})
		return &Decision{
			Steps:   next,
			Status:  entity.ExpenseStatusApproved,
			Trigger: workflow.TriggerFullyApprove,
			Events:  events,
		}, nil
	}

	events = append(events, Event{
		Action: entity.HistoryActionSequenceCompleted,
		Metadata: map[string]string{
			"completed_sequence": strconv.Itoa(current),
			"next_sequence":      strconv.Itoa(nextSeq),
		},
	})
	return &Decision{
		Steps:   next,
		Status:  entity.ExpenseStatusPartiallyApproved,
		Trigger: workflow.TriggerApproveStep,
		Events:  events,
	}, nil
}
