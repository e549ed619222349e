package logic

import (
	"errors"
	"testing"

	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/model"
)

func seedContract(t *testing.T) (*ContractLogic, *DisputeLogic, *model.Contract) {
	t.Helper()
	contractLogic, _, db := newTestLogic(t)
	contract, err := contractLogic.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create contract: %v", err)
	}
	return contractLogic, NewDisputeLogic(db), contract
}

func TestDisputeLifecycle(t *testing.T) {
	_, disputes, contract := seedContract(t)

	// 非参与方不得发起
	input := &CreateDisputeInput{ContractID: contract.ID, IssueDesc: "work not delivered"}
	if _, err := disputes.Create(input, Actor{ID: 9, Role: model.RoleClient}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("outsider dispute should be Forbidden, got %v", err)
	}

	dispute, err := disputes.Create(input, clientActor)
	if err != nil {
		t.Fatalf("Create dispute: %v", err)
	}
	if dispute.Status != model.DisputeStatusPending || dispute.Winner != model.DisputeWinnerNone {
		t.Fatalf("new dispute should be pending/none, got %+v", dispute)
	}

	// 首票推进到审理中
	dispute, err = disputes.AddVote(dispute.ID, 301, model.DisputeWinnerFreelancer, "delivery looks fine")
	if err != nil {
		t.Fatalf("AddVote: %v", err)
	}
	if dispute.Status != model.DisputeStatusUnderReview || len(dispute.Votes) != 1 {
		t.Fatalf("first vote should move to under_review, got %+v", dispute)
	}

	resolved, err := disputes.Resolve(dispute.ID, model.DisputeWinnerFreelancer)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != model.DisputeStatusResolved || resolved.Winner != model.DisputeWinnerFreelancer {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	// 裁决后既不能再投票也不能再裁决
	if _, err := disputes.AddVote(dispute.ID, 302, model.DisputeWinnerClient, ""); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("vote after resolution should be InvalidState, got %v", err)
	}
	if _, err := disputes.Resolve(dispute.ID, model.DisputeWinnerClient); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("re-resolve should be InvalidState, got %v", err)
	}
}

func TestDisputeValidation(t *testing.T) {
	_, disputes, contract := seedContract(t)

	if _, err := disputes.Create(&CreateDisputeInput{ContractID: 999, IssueDesc: "x"}, clientActor); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing contract should be NotFound, got %v", err)
	}

	dispute, err := disputes.Create(&CreateDisputeInput{ContractID: contract.ID, IssueDesc: "late"}, freelancerActor)
	if err != nil {
		t.Fatalf("participant freelancer may raise dispute: %v", err)
	}
	if _, err := disputes.AddVote(dispute.ID, 1, model.DisputeWinnerNone, ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("vote for none should be ValidationError, got %v", err)
	}
	if _, err := disputes.Resolve(dispute.ID, model.DisputeWinner("judge")); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown winner should be ValidationError, got %v", err)
	}
}
