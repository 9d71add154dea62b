package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Action 标识需要提取参数的动作。
type Action string

const (
	ActionTransfer  Action = "transfer"
	ActionBalance   Action = "balance"
	ActionAnalytics Action = "analytics"
)

// ExtractRequest 描述一次参数提取的上下文。
type ExtractRequest struct {
	Action     Action
	Messages   []string
	WalletInfo string
}

// Params 是从对话中提取出的动作参数，JSON null 映射为空字符串。
type Params map[string]string

// Get 返回去除首尾空白的参数值。
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Extractor 定义了参数提取器的统一接口。
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (Params, error)
}

// maxMessages 限制拼接进提示词的历史消息条数。
const maxMessages = 10

// BuildPrompt 将动作模板与最近消息、钱包信息拼接为提示词。
func BuildPrompt(req ExtractRequest) (string, error) {
	tmpl, ok := templates[req.Action]
	if !ok {
		return "", fmt.Errorf("unsupported action %q", req.Action)
	}
	messages := req.Messages
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	var recent strings.Builder
	for _, msg := range messages {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			continue
		}
		recent.WriteString("- ")
		recent.WriteString(msg)
		recent.WriteString("\n")
	}
	replacer := strings.NewReplacer(
		"{{recentMessages}}", strings.TrimRight(recent.String(), "\n"),
		"{{walletInfo}}", strings.TrimSpace(req.WalletInfo),
	)
	return replacer.Replace(tmpl), nil
}

// ParseParams 从模型回复中解析 JSON 对象，允许外层包裹 ```json 代码块。
func ParseParams(content string) (Params, error) {
	body := strings.TrimSpace(content)
	if start := strings.Index(body, "```"); start >= 0 {
		rest := body[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		body = strings.TrimSpace(rest)
	}
	if lo, hi := strings.Index(body, "{"), strings.LastIndex(body, "}"); lo >= 0 && hi > lo {
		body = body[lo : hi+1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("parse extracted parameters: %w", err)
	}
	params := make(Params, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			params[key] = ""
		case string:
			params[key] = v
		case float64:
			params[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			params[key] = strconv.FormatBool(v)
		default:
			encoded, _ := json.Marshal(v)
			params[key] = string(encoded)
		}
	}
	return params, nil
}
