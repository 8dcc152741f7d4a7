// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 agentcoord HTTP 接口的请求处理器实现。

# 概述

handlers 包实现运维与 Agent 运行时使用的 HTTP 端点：健康检查、
就绪探测、Agent 目录的查询与注册、负载上报以及邮箱积压查询。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - AgentHandler     — Agent 目录的列表、查询、注册、状态上报与邮箱积压
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - HealthCheck      — 可插拔健康检查接口（数据库、Redis 等后端探测）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
*/
package handlers
