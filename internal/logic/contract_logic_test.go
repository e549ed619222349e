package logic

import (
	"errors"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blues/fms/internal/database"
	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/model"
)

// captureNotifier 记录推送事件，测试断言用
type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	partyKey string
	event    string
}

func (n *captureNotifier) Notify(partyKey, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{partyKey: partyKey, event: event})
}

func (n *captureNotifier) has(partyKey, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.partyKey == partyKey && e.event == event {
			return true
		}
	}
	return false
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Create(&model.Client{Name: "acme", Email: "acme@example.com"}).Error; err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	if err := db.Create(&model.Freelancer{Name: "dev", Email: "dev@example.com"}).Error; err != nil {
		t.Fatalf("failed to seed freelancer: %v", err)
	}
	return db
}

func newTestLogic(t *testing.T) (*ContractLogic, *captureNotifier, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	notifier := &captureNotifier{}
	return NewContractLogic(db, notifier), notifier, db
}

var (
	clientActor     = Actor{ID: 1, Role: model.RoleClient}
	freelancerActor = Actor{ID: 1, Role: model.RoleFreelancer}
)

func validInput(tasks ...TaskInput) *CreateContractInput {
	return &CreateContractInput{
		Description:  "landing page",
		Amount:       500,
		ClientID:     1,
		FreelancerID: 1,
		Tasks:        tasks,
	}
}

func TestCreateValidatesPercentageSum(t *testing.T) {
	l, _, _ := newTestLogic(t)

	_, err := l.Create(validInput(
		TaskInput{Heading: "A", Description: "design", Percentage: 40},
		TaskInput{Heading: "B", Description: "build", Percentage: 50},
	), clientActor)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ValidationError for sum 90, got %v", err)
	}

	contract, err := l.Create(validInput(
		TaskInput{Heading: "A", Description: "design", Percentage: 40},
		TaskInput{Heading: "B", Description: "build", Percentage: 60},
	), clientActor)
	if err != nil {
		t.Fatalf("sum 100 should succeed: %v", err)
	}
	if len(contract.Tasks) != 2 || contract.IsApproved || contract.IsCompleted {
		t.Fatalf("unexpected created contract: %+v", contract)
	}
}

func TestCreateToleratesFloatNoise(t *testing.T) {
	l, _, _ := newTestLogic(t)
	_, err := l.Create(validInput(
		TaskInput{Heading: "A", Description: "a", Percentage: 33.3333},
		TaskInput{Heading: "B", Description: "b", Percentage: 33.3333},
		TaskInput{Heading: "C", Description: "c", Percentage: 33.3334},
	), clientActor)
	if err != nil {
		t.Fatalf("sum within 0.001 tolerance should succeed: %v", err)
	}
}

func TestCreateRequiresExistingParties(t *testing.T) {
	l, _, _ := newTestLogic(t)
	input := validInput()
	input.FreelancerID = 42
	if _, err := l.Create(input, clientActor); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected NotFound for missing freelancer, got %v", err)
	}
}

func TestCreateNotifiesClient(t *testing.T) {
	l, notifier, _ := newTestLogic(t)
	if _, err := l.Create(validInput(), clientActor); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !notifier.has("client:1", "contractAdded") {
		t.Fatal("client should receive contractAdded")
	}
}

func TestApprovePath(t *testing.T) {
	l, notifier, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := l.Approve(contract.ID, freelancerActor); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("freelancer approve should be Forbidden, got %v", err)
	}

	approved, err := l.Approve(contract.ID, clientActor)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !approved.IsApproved {
		t.Fatal("contract should be approved")
	}
	// 单一用途的批准路径不发通知，EditTerms 那条才发
	if notifier.has("freelancer:1", "acceptProposal") {
		t.Fatal("Approve must not emit acceptProposal")
	}

	if _, err := l.Approve(contract.ID, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("re-approve should be InvalidState, got %v", err)
	}
}

func TestEditTermsApprovesAndNotifies(t *testing.T) {
	l, notifier, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	amount := 750.0
	updated, err := l.EditTerms(contract.ID, &EditTermsInput{Amount: &amount}, clientActor)
	if err != nil {
		t.Fatalf("EditTerms: %v", err)
	}
	if !updated.IsApproved || updated.Amount != 750 {
		t.Fatalf("edit should approve and apply amount, got %+v", updated)
	}
	if !notifier.has("freelancer:1", "acceptProposal") {
		t.Fatal("EditTerms should emit acceptProposal to the freelancer")
	}
	if !notifier.has("freelancer:1", "updatedAmount") {
		t.Fatal("amount change should emit updatedAmount")
	}

	// 批准之后条款锁定
	desc := "new terms"
	if _, err := l.EditTerms(contract.ID, &EditTermsInput{Description: &desc}, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("editing approved contract should be InvalidState, got %v", err)
	}
}

func TestEditTermsForbiddenForFreelancer(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	amount := 600.0
	if _, err := l.EditTerms(contract.ID, &EditTermsInput{Amount: &amount}, freelancerActor); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("freelancer edit should be Forbidden, got %v", err)
	}
}

func TestAddTasksRequiresApproval(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tasks := []TaskInput{{Heading: "A", Description: "design", Percentage: 40}}
	if _, err := l.AddTasks(contract.ID, tasks, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("add to unapproved contract should be InvalidState, got %v", err)
	}
}

// 创建时严格校验百分比合计，后补任务不校验。
// 这是既有设计的不对称，这里把它钉住：合计 ≠ 100 也必须成功。
func TestAddTasksDoesNotEnforcePercentageSum(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := l.Approve(contract.ID, clientActor); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	updated, err := l.AddTasks(contract.ID, []TaskInput{
		{Heading: "A", Description: "design", Percentage: 40},
		{Heading: "B", Description: "build", Percentage: 30},
	}, clientActor)
	if err != nil {
		t.Fatalf("sum 70 must NOT be rejected on the add path: %v", err)
	}
	if got := updated.TaskPercentageTotal(); got != 70 {
		t.Fatalf("expected persisted total 70, got %v", got)
	}
}

// 完整场景：A40/B60，勾A直接落库；勾B无确认只返回待确认；
// 带确认重提后合同完成。
func TestConfirmationGateScenario(t *testing.T) {
	l, _, db := newTestLogic(t)
	contract, err := l.Create(validInput(
		TaskInput{Heading: "A", Description: "design", Percentage: 40},
		TaskInput{Heading: "B", Description: "build", Percentage: 60},
	), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := l.Approve(contract.ID, clientActor); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	taskA, taskB := contract.Tasks[0].ID, contract.Tasks[1].ID

	// 勾选A：不是最后一个，无需确认，直接落库
	result, err := l.ToggleTask(taskA, true, false, clientActor)
	if err != nil {
		t.Fatalf("ToggleTask A: %v", err)
	}
	if result.RequiresConfirmation || result.IsContractCompleted {
		t.Fatalf("first task must persist without confirmation: %+v", result)
	}
	if result.Task.Percentage != 100 {
		t.Fatalf("completed task forced to 100, got %v", result.Task.Percentage)
	}

	// 勾选B：最后一个，未带确认，必须短路且不落库
	result, err = l.ToggleTask(taskB, true, false, clientActor)
	if err != nil {
		t.Fatalf("ToggleTask B: %v", err)
	}
	if !result.RequiresConfirmation {
		t.Fatal("final toggle without confirmation must return requires_confirmation")
	}

	var persisted model.Task
	if err := db.First(&persisted, taskB).Error; err != nil {
		t.Fatalf("reload task B: %v", err)
	}
	if persisted.IsCompleted {
		t.Fatal("task B must not be persisted without confirmation")
	}
	var fresh model.Contract
	if err := db.First(&fresh, contract.ID).Error; err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if fresh.IsCompleted {
		t.Fatal("contract must stay incomplete without confirmation")
	}

	// 带确认重提：落库并完成合同
	result, err = l.ToggleTask(taskB, true, true, clientActor)
	if err != nil {
		t.Fatalf("ToggleTask B confirmed: %v", err)
	}
	if result.RequiresConfirmation || !result.IsContractCompleted {
		t.Fatalf("confirmed final toggle should complete the contract: %+v", result)
	}
	if err := db.First(&fresh, contract.ID).Error; err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if !fresh.IsCompleted || !fresh.IsApproved {
		t.Fatalf("completed implies approved, got %+v", fresh)
	}
}

func TestToggleTaskForbiddenForFreelancer(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(
		TaskInput{Heading: "A", Description: "design", Percentage: 100},
	), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := l.ToggleTask(contract.Tasks[0].ID, true, false, freelancerActor); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("freelancer toggle should be Forbidden, got %v", err)
	}
}

func TestCompletedImpliesApproved(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 未批准不得完成
	if _, err := l.Complete(contract.ID, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("completing unapproved contract should be InvalidState, got %v", err)
	}

	if _, err := l.Approve(contract.ID, clientActor); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	completed, err := l.Complete(contract.ID, clientActor)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !completed.IsCompleted {
		t.Fatal("contract should be completed")
	}
	if _, err := l.Complete(contract.ID, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("re-complete should be InvalidState, got %v", err)
	}
}

func TestRemoveRules(t *testing.T) {
	l, _, db := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 挂一条引用该合同的消息
	contractID := contract.ID
	msg := model.Message{Body: "proposal attached", Kind: model.MessageKindContract, ContractID: &contractID}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	// 非参与方删除：Forbidden
	outsider := Actor{ID: 99, Role: model.RoleClient}
	if err := l.Remove(contract.ID, outsider); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("outsider delete should be Forbidden, got %v", err)
	}

	// 雇主方删除未批准合同：成功，且消息引用被原子清理
	if err := l.Remove(contract.ID, clientActor); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	var cleaned model.Message
	if err := db.First(&cleaned, msg.ID).Error; err != nil {
		t.Fatalf("reload message: %v", err)
	}
	if cleaned.ContractID != nil || cleaned.Kind != model.MessageKindText {
		t.Fatalf("message reference should be detached, got %+v", cleaned)
	}

	// 已批准合同不可删除
	approved, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := l.Approve(approved.ID, clientActor); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.Remove(approved.ID, clientActor); !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("deleting approved contract should be InvalidState, got %v", err)
	}
}

func TestQueriesAreAuthorizationGated(t *testing.T) {
	l, _, _ := newTestLogic(t)
	contract, err := l.Create(validInput(), clientActor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := l.Get(contract.ID, Actor{ID: 7, Role: model.RoleClient}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("non-participant read should be Forbidden, got %v", err)
	}
	if _, err := l.Get(contract.ID, freelancerActor); err != nil {
		t.Fatalf("freelancer participant read should succeed: %v", err)
	}
	if _, err := l.ListByUser(2, clientActor); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("listing another user should be Forbidden, got %v", err)
	}

	pending, err := l.ListPending(clientActor)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending contract, got %d", len(pending))
	}

	if _, err := l.Approve(contract.ID, clientActor); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	active, err := l.ListActive(clientActor)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active contract, got %d", len(active))
	}
	completed, err := l.ListCompleted(freelancerActor)
	if err != nil {
		t.Fatalf("ListCompleted: %v", err)
	}
	if len(completed) != 0 {
		t.Fatalf("expected no completed contracts, got %d", len(completed))
	}
}
