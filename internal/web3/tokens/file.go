package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadStatic 读取形如 {"167000": {"USDC": "0x..."}} 的代币清单，代币符号统一转为大写。
func LoadStatic(path string) (Static, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("token list path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve token list path: %w", err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open token list: %w", err)
	}
	defer file.Close()

	var raw map[string]map[string]string
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}

	list := make(Static, len(raw))
	for chain, symbols := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(chain), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token list: invalid chain id %q", chain)
		}
		entries := make(map[string]string, len(symbols))
		for sym, addr := range symbols {
			entries[strings.ToUpper(strings.TrimSpace(sym))] = strings.TrimSpace(addr)
		}
		list[id] = entries
	}
	return list, nil
}

// Chain 依次尝试每个查询源并返回第一个命中结果，全部未命中时合并各自的错误。
type Chain []Lookup

// FindToken 实现 Lookup 接口。
func (c Chain) FindToken(ctx context.Context, chainID int64, symbol string) (*Token, error) {
	var errs []error
	for _, lookup := range c {
		if lookup == nil {
			continue
		}
		token, err := lookup.FindToken(ctx, chainID, symbol)
		if err == nil {
			return token, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no token lookup configured for %s", symbol)
	}
	return nil, errors.Join(errs...)
}
