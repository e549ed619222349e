package model

// ChainProject 链上托管项目视图。权威状态始终在链上，
// 这里只承载单次查询的结果，不落库。
type ChainProject struct {
	ID                   uint64 `json:"id"`
	Client               string `json:"client"`
	Freelancer           string `json:"freelancer"`
	Amount               string `json:"amount"` // 以 ether 为单位的十进制字符串
	IsCompleted          bool   `json:"is_completed"`
	IsFunded             bool   `json:"is_funded"`
	IsPaid               bool   `json:"is_paid"`
	IsDisputed           bool   `json:"is_disputed"`
	Description          string `json:"description"`
	CompletionPercentage uint8  `json:"completion_percentage"`
}
