// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentcoord 命令行入口。

# 概述

cmd/agentcoord 把协调引擎包装为可执行程序：serve 启动带健康检查
与 Prometheus 指标的 HTTP 服务，simulate 离线回放 YAML 场景并输出
报告，migrate 管理知识库的数据库迁移。

# 子命令

  - serve     — 构建 Coordinator，暴露 /health、/ready、/metrics 与 Agent 目录接口
  - simulate  — 按场景依次执行广播、四种分配策略、四种共识协议、四种同步策略与协作规划
  - migrate   — up / down / reset / steps / goto / force / version / status / info
  - version   — 输出构建信息

# 配置

--config 指定 YAML 配置文件；--env-file 指定在加载配置之前读入的
dotenv 文件（默认读取当前目录下存在的 .env）。环境变量以
AGENTCOORD_ 为前缀覆盖文件中的值。

# 中间件链

Recovery → RequestID → OTelTracing → RequestLogger → MetricsMiddleware。
Metrics 标签中的 Agent ID 路径段会被归一化为 ":id"。
*/
package main
