package escrow

import (
	"math/big"
	"strings"

	"github.com/blues/fms/internal/errs"
)

// weiPerEther 1 ether = 10^18 wei
var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// WeiToEther wei 转 ether 十进制字符串，去掉无意义的尾零
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// EtherToWei ether 十进制字符串转 wei
func EtherToWei(amount string) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, errs.Validation("invalid ether amount %q", amount)
	}
	if rat.Sign() < 0 {
		return nil, errs.Validation("ether amount must not be negative")
	}
	wei := new(big.Rat).Mul(rat, new(big.Rat).SetInt(weiPerEther))
	if !wei.IsInt() {
		return nil, errs.Validation("ether amount %q has sub-wei precision", amount)
	}
	return wei.Num(), nil
}
