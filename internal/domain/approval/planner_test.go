package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

type stubDirectory struct {
	usersByRole map[entity.Role][]*entity.User
	err         error
	calls       int
}

func (d *stubDirectory) ListByRoles(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	var out []*entity.User
	for _, role := range roles {
		out = append(out, d.usersByRole[role]...)
	}
	return out, nil
}

func i64(v int64) *int64 { return &v }

func TestPlanSteps_UnionsAndDeduplicates(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1, ManagerID: i64(20)}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{{
			Name:               "Review",
			Sequence:           1,
			IsManagerApprover:  true,
			SpecificApprovers:  []int64{20, 30}, // manager repeated on purpose
			RoleBasedApprovers: []entity.Role{entity.RoleAdmin},
		}},
	}
	dir := &stubDirectory{usersByRole: map[entity.Role][]*entity.User{
		entity.RoleAdmin: {{ID: 30, Role: entity.RoleAdmin}, {ID: 40, Role: entity.RoleAdmin}},
	}}

	steps, err := PlanSteps(context.Background(), rule, employee, dir)
	if err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}

	want := []int64{20, 30, 40}
	if len(steps) != len(want) {
		t.Fatalf("PlanSteps() produced %d instances, want %d", len(steps), len(want))
	}
	for i, id := range want {
		if steps[i].ApproverID != id {
			t.Errorf("step[%d].ApproverID = %d, want %d", i, steps[i].ApproverID, id)
		}
		if steps[i].Status != entity.StepStatusPending {
			t.Errorf("step[%d].Status = %q, want pending", i, steps[i].Status)
		}
	}
}

func TestPlanSteps_NeverIncludesExpenseOwner(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1, ManagerID: i64(20)}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{{
			Name:               "Review",
			Sequence:           1,
			SpecificApprovers:  []int64{10, 30},
			RoleBasedApprovers: []entity.Role{entity.RoleEmployee},
		}},
	}
	dir := &stubDirectory{usersByRole: map[entity.Role][]*entity.User{
		entity.RoleEmployee: {{ID: 10, Role: entity.RoleEmployee}},
	}}

	steps, err := PlanSteps(context.Background(), rule, employee, dir)
	if err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}

	for _, s := range steps {
		if s.ApproverID == employee.ID {
			t.Fatal("PlanSteps() included the expense owner as an approver")
		}
	}
	if len(steps) != 1 || steps[0].ApproverID != 30 {
		t.Fatalf("PlanSteps() = %+v, want single instance for approver 30", steps)
	}
}

func TestPlanSteps_NoDuplicateApproverSequencePairs(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1, ManagerID: i64(20)}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{
			{Name: "First", Sequence: 1, IsManagerApprover: true, SpecificApprovers: []int64{20}},
			{Name: "Second", Sequence: 2, SpecificApprovers: []int64{20}},
		},
	}

	steps, err := PlanSteps(context.Background(), rule, employee, &stubDirectory{})
	if err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}

	seen := make(map[[2]int64]bool)
	for _, s := range steps {
		key := [2]int64{s.ApproverID, int64(s.Sequence)}
		if seen[key] {
			t.Fatalf("duplicate (approver, sequence) pair: %v", key)
		}
		seen[key] = true
	}
	// Same approver in two different sequences is allowed.
	if len(steps) != 2 {
		t.Fatalf("PlanSteps() produced %d instances, want 2", len(steps))
	}
}

func TestPlanSteps_EmptyStepIsDroppedEvenIfRequired(t *testing.T) {
	// Owner is the only candidate, so the step dissolves entirely.
	employee := &entity.User{ID: 10, CompanyID: 1}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{
			{Name: "Ghost", Sequence: 1, IsRequired: true, SpecificApprovers: []int64{10}},
			{Name: "Finance", Sequence: 2, SpecificApprovers: []int64{30}},
		},
	}

	steps, err := PlanSteps(context.Background(), rule, employee, &stubDirectory{})
	if err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}
	if len(steps) != 1 || steps[0].StepName != "Finance" {
		t.Fatalf("PlanSteps() = %+v, want only the Finance step", steps)
	}
}

func TestPlanSteps_SortsBySequenceAndKeepsThreshold(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{
			{Name: "Late", Sequence: 5, SpecificApprovers: []int64{40}, PercentageThreshold: 50},
			{Name: "Early", Sequence: 2, SpecificApprovers: []int64{30}},
		},
	}

	steps, err := PlanSteps(context.Background(), rule, employee, &stubDirectory{})
	if err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("PlanSteps() produced %d instances, want 2", len(steps))
	}
	if steps[0].Sequence != 2 || steps[1].Sequence != 5 {
		t.Errorf("steps not sorted by sequence: %d, %d", steps[0].Sequence, steps[1].Sequence)
	}
	if steps[0].PercentageThreshold != 100 {
		t.Errorf("unset threshold = %d, want default 100", steps[0].PercentageThreshold)
	}
	if steps[1].PercentageThreshold != 50 {
		t.Errorf("threshold = %d, want 50", steps[1].PercentageThreshold)
	}
}

func TestPlanSteps_BatchesRoleLookups(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps: []entity.RuleStep{
			{Name: "One", Sequence: 1, RoleBasedApprovers: []entity.Role{entity.RoleManager}},
			{Name: "Two", Sequence: 2, RoleBasedApprovers: []entity.Role{entity.RoleAdmin, entity.RoleManager}},
		},
	}
	dir := &stubDirectory{usersByRole: map[entity.Role][]*entity.User{
		entity.RoleManager: {{ID: 30, Role: entity.RoleManager}},
		entity.RoleAdmin:   {{ID: 40, Role: entity.RoleAdmin}},
	}}

	if _, err := PlanSteps(context.Background(), rule, employee, dir); err != nil {
		t.Fatalf("PlanSteps() error: %v", err)
	}
	if dir.calls != 1 {
		t.Errorf("directory lookups = %d, want 1 batched call", dir.calls)
	}
}

func TestPlanSteps_DirectoryError(t *testing.T) {
	employee := &entity.User{ID: 10, CompanyID: 1}
	rule := &entity.ApprovalRule{
		CompanyID: 1,
		Steps:     []entity.RuleStep{{Name: "One", Sequence: 1, RoleBasedApprovers: []entity.Role{entity.RoleAdmin}}},
	}
	wantErr := errors.New("directory down")

	_, err := PlanSteps(context.Background(), rule, employee, &stubDirectory{err: wantErr})
	if !errors.Is(err, wantErr) {
		t.Errorf("PlanSteps() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestDefaultManagerStep(t *testing.T) {
	withManager := &entity.User{ID: 10, ManagerID: i64(20)}
	steps := DefaultManagerStep(withManager)
	if len(steps) != 1 {
		t.Fatalf("DefaultManagerStep() produced %d steps, want 1", len(steps))
	}
	s := steps[0]
	if s.ApproverID != 20 || s.Sequence != 1 || s.StepName != DefaultManagerStepName {
		t.Errorf("DefaultManagerStep() = %+v", s)
	}
	if s.PercentageThreshold != 100 || !s.IsRequired || s.Status != entity.StepStatusPending {
		t.Errorf("DefaultManagerStep() defaults = %+v", s)
	}

	if got := DefaultManagerStep(&entity.User{ID: 10}); len(got) != 0 {
		t.Errorf("DefaultManagerStep() without manager = %+v, want empty", got)
	}
}
