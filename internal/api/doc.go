// Package api 通过 REST 接口暴露转账、余额、合约分析与对话动作，
// 并提供链列表、健康检查与 Prometheus 指标端点。
package api
