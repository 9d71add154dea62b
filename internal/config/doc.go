// Package config 负责加载 TaikoMCP 的 JSON 配置文件，叠加环境变量中的密钥，
// 填充默认值并在启动前完成校验。
package config
