// Package config 提供协调引擎的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 AGENTCOORD）的顺序叠加，
// 各引擎的参数分节存放，由 coordination 包在构建 Coordinator 时映射。
package config
