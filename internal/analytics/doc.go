// Package analytics 将合约的索引交易历史汇总为相互重叠的 1d、7d、30d
// 活跃度概览，并渲染为对话文本。
package analytics
