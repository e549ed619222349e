package escrow

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func testBridge(t *testing.T) *Bridge {
	t.Helper()
	parsedABI, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	return &Bridge{
		abi:     parsedABI,
		address: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		chainID: big.NewInt(1),
		timeout: time.Second,
		counter: func(context.Context) (uint64, error) {
			return 0, errors.New("counter must not be called")
		},
	}
}

func projectCreatedTopic(b *Bridge) common.Hash {
	return b.abi.Events["ProjectCreated"].ID
}

func TestExtractProjectIDFromStructuredEvent(t *testing.T) {
	b := testBridge(t)
	receipt := &types.Receipt{
		Logs: []*types.Log{
			{
				Address: b.address,
				Topics:  []common.Hash{projectCreatedTopic(b), common.BigToHash(big.NewInt(7))},
			},
		},
	}

	id, source, err := b.extractProjectID(context.Background(), receipt)
	if err != nil {
		t.Fatalf("extractProjectID: %v", err)
	}
	if id != 7 || source != idSourceEvent {
		t.Fatalf("expected id 7 from event tier, got %d from %s", id, source)
	}
}

// 有些提供方把代理转发的日志记在别的合约地址名下，
// 或者把签名放到非首位主题——第二级必须接得住。
func TestExtractProjectIDFromRawLog(t *testing.T) {
	b := testBridge(t)
	otherAddr := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	receipt := &types.Receipt{
		Logs: []*types.Log{
			{
				Address: otherAddr,
				Topics: []common.Hash{
					common.BigToHash(big.NewInt(1234)), // 无关主题
					projectCreatedTopic(b),
					common.BigToHash(big.NewInt(9)),
				},
			},
		},
	}

	id, source, err := b.extractProjectID(context.Background(), receipt)
	if err != nil {
		t.Fatalf("extractProjectID: %v", err)
	}
	if id != 9 || source != idSourceLog {
		t.Fatalf("expected id 9 from log tier, got %d from %s", id, source)
	}
}

func TestExtractProjectIDFromRawLogData(t *testing.T) {
	b := testBridge(t)

	// 签名命中但没有后续主题：取数据区前32字节
	receipt := &types.Receipt{
		Logs: []*types.Log{
			{
				Address: b.address,
				Topics:  []common.Hash{projectCreatedTopic(b)},
				Data:    common.BigToHash(big.NewInt(11)).Bytes(),
			},
		},
	}

	id, source, err := b.extractProjectID(context.Background(), receipt)
	if err != nil {
		t.Fatalf("extractProjectID: %v", err)
	}
	if id != 11 || source != idSourceLog {
		t.Fatalf("expected id 11 from log tier, got %d from %s", id, source)
	}
}

// 回执里完全没有可解析事件时回退读计数器，
// 新项目ID = projectIdCounter - 1，并打上兜底标记。
func TestExtractProjectIDCounterFallback(t *testing.T) {
	b := testBridge(t)
	b.counter = func(context.Context) (uint64, error) { return 5, nil }

	id, source, err := b.extractProjectID(context.Background(), &types.Receipt{})
	if err != nil {
		t.Fatalf("extractProjectID: %v", err)
	}
	if id != 4 || source != idSourceCounter {
		t.Fatalf("expected id 4 from counter tier, got %d from %s", id, source)
	}
}

func TestExtractProjectIDCounterZero(t *testing.T) {
	b := testBridge(t)
	b.counter = func(context.Context) (uint64, error) { return 0, nil }

	if _, _, err := b.extractProjectID(context.Background(), &types.Receipt{}); err == nil {
		t.Fatal("zero counter must error, nothing was created")
	}
}

func TestExtractProjectIDCounterError(t *testing.T) {
	b := testBridge(t)
	b.counter = func(context.Context) (uint64, error) { return 0, errors.New("rpc down") }

	if _, _, err := b.extractProjectID(context.Background(), &types.Receipt{}); err == nil {
		t.Fatal("counter failure must surface an error")
	}
}

func TestEventTierPrefersMatchingAddress(t *testing.T) {
	b := testBridge(t)
	otherAddr := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	// 同一回执里混有别的合约发出的同名事件，第一级只认托管合约地址
	receipt := &types.Receipt{
		Logs: []*types.Log{
			{
				Address: otherAddr,
				Topics:  []common.Hash{projectCreatedTopic(b), common.BigToHash(big.NewInt(99))},
			},
			{
				Address: b.address,
				Topics:  []common.Hash{projectCreatedTopic(b), common.BigToHash(big.NewInt(3))},
			},
		},
	}

	id, source, err := b.extractProjectID(context.Background(), receipt)
	if err != nil {
		t.Fatalf("extractProjectID: %v", err)
	}
	if id != 3 || source != idSourceEvent {
		t.Fatalf("expected id 3 from event tier, got %d from %s", id, source)
	}
}
