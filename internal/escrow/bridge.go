package escrow

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blues/fms/internal/config"
	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/logger"
	"github.com/blues/fms/internal/model"
)

// 托管合约ABI定义
const escrowABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "projectId", "type": "uint256"},
			{"indexed": false, "name": "client", "type": "address"},
			{"indexed": false, "name": "freelancer", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "description", "type": "string"}
		],
		"name": "ProjectCreated",
		"type": "event"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "getProject",
		"outputs": [
			{"name": "client", "type": "address"},
			{"name": "freelancer", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "isCompleted", "type": "bool"},
			{"name": "isFunded", "type": "bool"},
			{"name": "isPaid", "type": "bool"},
			{"name": "isDisputed", "type": "bool"},
			{"name": "description", "type": "string"},
			{"name": "completionPercentage", "type": "uint8"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "client", "type": "address"},
			{"name": "freelancer", "type": "address"},
			{"name": "description", "type": "string"}
		],
		"name": "createProject",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "fundProject",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "projectId", "type": "uint256"},
			{"name": "percentage", "type": "uint8"}
		],
		"name": "updateCompletionPercentage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "markProjectCompleted",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "releasePayment",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "raiseDispute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "projectId", "type": "uint256"}],
		"name": "resolveDisputeByPercentage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "projectIdCounter",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Bridge 托管桥：把内部合同操作单向翻译为链上托管合约调用。
// 每个写操作都是一笔交易并等待上链，阻塞且非幂等——
// 超时重发前必须先查链上状态，否则可能重复提交。
type Bridge struct {
	eth        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	abi        abi.ABI
	chainID    *big.Int
	timeout    time.Duration

	// projectIdCounter 查询，事件解析兜底用；测试中可替换
	counter func(ctx context.Context) (uint64, error)
}

// CreateResult 创建托管项目的结果
type CreateResult struct {
	ProjectID uint64 `json:"project_id"`
	TxHash    string `json:"tx_hash"`
	// IDSource 项目ID来自哪一级解析：event / log / counter。
	// counter 表示事件解析全部失败，走了计数器兜底
	IDSource string `json:"id_source"`
}

// Init 初始化托管桥
func Init(cfg config.ChainConfig) (*Bridge, error) {
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	b := &Bridge{
		eth:        client,
		privateKey: privateKey,
		address:    common.HexToAddress(cfg.EscrowAddress),
		abi:        parsedABI,
		chainID:    big.NewInt(cfg.ChainId),
		timeout:    timeout,
	}
	b.counter = b.projectIdCounter
	return b, nil
}

// OperatorAddress 运营方签名地址
func (b *Bridge) OperatorAddress() common.Address {
	return crypto.PubkeyToAddress(b.privateKey.PublicKey)
}

// ReadProject 读取链上托管项目。结果只承载本次查询，不落库。
func (b *Bridge) ReadProject(id uint64) (*model.ChainProject, error) {
	ctx, cancel := b.callCtx()
	defer cancel()

	values, err := b.call(ctx, "getProject", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, b.wrap("failed to read project", err)
	}
	if len(values) != 9 {
		return nil, errs.Chain("unexpected getProject output", fmt.Errorf("got %d values", len(values)))
	}

	client, _ := values[0].(common.Address)
	freelancer, _ := values[1].(common.Address)
	amount, _ := values[2].(*big.Int)
	isCompleted, _ := values[3].(bool)
	isFunded, _ := values[4].(bool)
	isPaid, _ := values[5].(bool)
	isDisputed, _ := values[6].(bool)
	description, _ := values[7].(string)
	completion, _ := values[8].(uint8)

	return &model.ChainProject{
		ID:                   id,
		Client:               client.Hex(),
		Freelancer:           freelancer.Hex(),
		Amount:               WeiToEther(amount),
		IsCompleted:          isCompleted,
		IsFunded:             isFunded,
		IsPaid:               isPaid,
		IsDisputed:           isDisputed,
		Description:          description,
		CompletionPercentage: completion,
	}, nil
}

// CreateProject 链上创建托管项目并返回新分配的项目ID。
// 不同节点/客户端库回执里的事件形态不一致，ID解析按三级顺序兜底：
// 结构化事件解码 → 原始日志主题匹配 → projectIdCounter-1。
func (b *Bridge) CreateProject(client, freelancer, description string) (*CreateResult, error) {
	if !common.IsHexAddress(client) || !common.IsHexAddress(freelancer) {
		return nil, errs.Validation("client and freelancer must be hex addresses")
	}

	receipt, txHash, err := b.transact("createProject", nil,
		common.HexToAddress(client), common.HexToAddress(freelancer), description)
	if err != nil {
		return nil, err
	}

	ctx, cancel := b.callCtx()
	defer cancel()
	id, source, err := b.extractProjectID(ctx, receipt)
	if err != nil {
		return nil, err
	}
	if source == idSourceCounter {
		logger.Warn("createProject tx %s: event parsing failed, project id %d from counter fallback", txHash, id)
	}

	return &CreateResult{ProjectID: id, TxHash: txHash, IDSource: source}, nil
}

// FundProject 注资托管项目，amount 为 ether 十进制字符串
func (b *Bridge) FundProject(id uint64, amount string) (string, error) {
	wei, err := EtherToWei(amount)
	if err != nil {
		return "", err
	}
	_, txHash, err := b.transact("fundProject", wei, new(big.Int).SetUint64(id))
	return txHash, err
}

// UpdateCompletion 同步完成进度
func (b *Bridge) UpdateCompletion(id uint64, percentage uint8) (string, error) {
	if percentage > 100 {
		return "", errs.Validation("percentage must be between 0 and 100")
	}
	_, txHash, err := b.transact("updateCompletionPercentage", nil,
		new(big.Int).SetUint64(id), percentage)
	return txHash, err
}

// MarkCompleted 标记项目完成
func (b *Bridge) MarkCompleted(id uint64) (string, error) {
	_, txHash, err := b.transact("markProjectCompleted", nil, new(big.Int).SetUint64(id))
	return txHash, err
}

// ReleasePayment 放款
func (b *Bridge) ReleasePayment(id uint64) (string, error) {
	_, txHash, err := b.transact("releasePayment", nil, new(big.Int).SetUint64(id))
	return txHash, err
}

// RaiseDispute 发起纠纷
func (b *Bridge) RaiseDispute(id uint64) (string, error) {
	_, txHash, err := b.transact("raiseDispute", nil, new(big.Int).SetUint64(id))
	return txHash, err
}

// ResolveDisputeByPercentage 按完成进度裁决纠纷
func (b *Bridge) ResolveDisputeByPercentage(id uint64) (string, error) {
	_, txHash, err := b.transact("resolveDisputeByPercentage", nil, new(big.Int).SetUint64(id))
	return txHash, err
}

// call 只读合约调用
func (b *Bridge) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	output, err := b.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &b.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	return b.abi.Unpack(method, output)
}

// transact 提交一笔状态变更交易并等待上链
func (b *Bridge) transact(method string, value *big.Int, args ...interface{}) (*types.Receipt, string, error) {
	ctx, cancel := b.callCtx()
	defer cancel()

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, "", errs.Chain("failed to pack "+method, err)
	}

	from := b.OperatorAddress()
	nonce, err := b.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, "", b.wrap("failed to fetch nonce", err)
	}
	gasPrice, err := b.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, "", b.wrap("failed to fetch gas price", err)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	gasLimit, err := b.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &b.address,
		Value:    value,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, "", b.wrap("failed to estimate gas for "+method, err)
	}

	tx := types.NewTransaction(nonce, b.address, value, gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(b.chainID), b.privateKey)
	if err != nil {
		return nil, "", errs.Chain("failed to sign "+method, err)
	}
	if err := b.eth.SendTransaction(ctx, signedTx); err != nil {
		return nil, "", b.wrap("failed to send "+method, err)
	}

	receipt, err := bind.WaitMined(ctx, b.eth, signedTx)
	if err != nil {
		return nil, "", b.wrap("failed waiting for "+method+" inclusion", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, "", errs.Chain(method+" reverted", fmt.Errorf("tx %s", signedTx.Hash().Hex()))
	}

	logger.Info("escrow %s mined in block %d, tx %s", method, receipt.BlockNumber.Uint64(), signedTx.Hash().Hex())
	return receipt, signedTx.Hash().Hex(), nil
}

// projectIdCounter 查询链上项目计数器
func (b *Bridge) projectIdCounter(ctx context.Context) (uint64, error) {
	values, err := b.call(ctx, "projectIdCounter")
	if err != nil {
		return 0, err
	}
	counter, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected projectIdCounter output %T", values[0])
	}
	return counter.Uint64(), nil
}

// callCtx 每次链上调用的显式超时上下文
func (b *Bridge) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

// wrap 分类包装链上错误，超时单独成类
func (b *Bridge) wrap(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ChainTimeout(msg, err)
	}
	return errs.Chain(msg, err)
}
