// Package wallet 实现转账与余额查询前的解析逻辑：地址与名称解析、原生币/代币判定、
// 金额精度换算，以及基于会话链注册表的转账编排与余额查询。
package wallet
