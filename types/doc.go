// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供协调引擎的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 directory、mailbox、
allocation、consensus、knowledge、planning 与 coordination 等上层模块
提供统一的类型契约，以避免循环依赖。

# 核心类型

  - AgentID / AgentCapabilities — Agent 标识与能力画像（技能、熟练度、负载、可用性）
  - Message / AgentGroup        — 消息与临时分组（broadcast / multicast / unicast_group）
  - DeliveryReport              — 分组投递结果，部分投递以 Failures 表示
  - Task / TaskAssignment       — 分解出的任务与分配结果
  - Vote / Decision             — 投票与共识结果
  - Dependency / CollaborativePlan — 依赖边与协作计划
  - KnowledgeFact               — 带逻辑版本的知识条目，MergeFacts 按版本合并
  - Error / ErrorCode           — 结构化错误体系（UNKNOWN_AGENT、QUORUM_NOT_REACHED 等）

# 主要能力

  - 错误工具链：AsError / IsErrorCode / GetErrorCode / IsRetryable
*/
package types
