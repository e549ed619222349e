package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/logger"
)

// 项目ID解析层级
const (
	idSourceEvent   = "event"   // 结构化事件解码
	idSourceLog     = "log"     // 原始日志主题匹配
	idSourceCounter = "counter" // projectIdCounter 兜底
)

// extractProjectID 从创建交易的回执中解析新项目ID。
// 三级策略按序尝试，第一个命中的生效；前两级都解析不出来时
// 回退读 projectIdCounter-1。不同 RPC 提供方暴露回执事件的方式
// 并不一致，三级都必须保留。
func (b *Bridge) extractProjectID(ctx context.Context, receipt *types.Receipt) (uint64, string, error) {
	strategies := []struct {
		source string
		fn     func(*types.Receipt) (uint64, bool)
	}{
		{idSourceEvent, b.idFromEvent},
		{idSourceLog, b.idFromRawLog},
	}

	for _, s := range strategies {
		if id, ok := s.fn(receipt); ok {
			return id, s.source, nil
		}
	}

	counter, err := b.counter(ctx)
	if err != nil {
		return 0, "", b.wrap("failed to read projectIdCounter after event parsing failed", err)
	}
	if counter == 0 {
		return 0, "", errs.Chain("projectIdCounter is zero, no project was created", nil)
	}
	return counter - 1, idSourceCounter, nil
}

// idFromEvent 第一级：回执日志中按合约地址+事件签名做结构化解码，
// projectId 是第一个 indexed 参数
func (b *Bridge) idFromEvent(receipt *types.Receipt) (uint64, bool) {
	eventID := b.abi.Events["ProjectCreated"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != b.address {
			continue
		}
		if len(log.Topics) < 2 || log.Topics[0] != eventID {
			continue
		}
		id := new(big.Int).SetBytes(log.Topics[1].Bytes())
		if !id.IsUint64() {
			logger.Warn("ProjectCreated projectId overflows uint64 in tx %s", log.TxHash.Hex())
			continue
		}
		return id.Uint64(), true
	}
	return 0, false
}

// idFromRawLog 第二级：不检查合约地址，在所有日志的所有主题位置里
// 找事件签名。有些提供方把代理转发的日志记在别的地址名下，
// 或者把签名放到了非首位主题。
func (b *Bridge) idFromRawLog(receipt *types.Receipt) (uint64, bool) {
	eventID := b.abi.Events["ProjectCreated"].ID
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}
		for i, topic := range log.Topics {
			if topic != eventID {
				continue
			}
			// 签名后面的下一个主题当作 projectId
			if i+1 < len(log.Topics) {
				id := new(big.Int).SetBytes(log.Topics[i+1].Bytes())
				if id.IsUint64() {
					return id.Uint64(), true
				}
			}
			// 没有后续主题时取数据区前32字节
			if len(log.Data) >= 32 {
				id := new(big.Int).SetBytes(log.Data[:32])
				if id.IsUint64() {
					return id.Uint64(), true
				}
			}
		}
	}
	return 0, false
}
