package wallet

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	xerrors "TaikoMCP-Chain/internal/errors"
)

// maxAmountDigits 限制金额的有效位数与指数绝对值，科学计数法不能绕过该限制。
const maxAmountDigits = 96

// maxUnitBits 是链上金额 (uint256) 的最大位宽。
const maxUnitBits = 256

// ParseAmount 校验十进制金额字符串，拒绝非数字、负数以及位数或指数超出范围的金额。
func ParseAmount(amount string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return decimal.Decimal{}, xerrors.New(xerrors.CodeInvalidAmount, "")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, xerrors.Wrap(xerrors.CodeInvalidAmount, err, "")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, xerrors.New(xerrors.CodeInvalidAmount, "", xerrors.WithMetadata("amount", trimmed))
	}
	if exp := d.Exponent(); exp > maxAmountDigits || exp < -maxAmountDigits || d.NumDigits() > maxAmountDigits {
		return decimal.Decimal{}, xerrors.New(xerrors.CodeInvalidAmount, "amount is out of range", xerrors.WithMetadata("amount", trimmed))
	}
	return d, nil
}

// ParseUnits 将十进制金额换算为最小单位整数，小数位超过 decimals 或结果超出 uint256 时视为非法金额。
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, xerrors.New(xerrors.CodeInvalidAmount, "", xerrors.WithMetadata("amount", strings.TrimSpace(amount)))
	}
	value := shifted.BigInt()
	if value.BitLen() > maxUnitBits {
		return nil, xerrors.New(xerrors.CodeInvalidAmount, "amount exceeds uint256", xerrors.WithMetadata("amount", strings.TrimSpace(amount)))
	}
	return value, nil
}

// FormatUnits 将最小单位整数格式化为去除尾零的十进制字符串。
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}
