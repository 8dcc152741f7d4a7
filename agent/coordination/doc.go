// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package coordination 是多 Agent 协调引擎的对外入口。

# 概述

Coordinator 持有 Agent 目录与邮箱系统，并把它们接入四个引擎：

	┌──────────────────────────────────────────────────────┐
	│                     Coordinator                      │
	├──────────────┬──────────────┬───────────┬────────────┤
	│  allocation  │  consensus   │ knowledge │  planning  │
	├──────────────┴──────────────┴───────────┴────────────┤
	│             directory  ·  mailbox                    │
	└──────────────────────────────────────────────────────┘

每个公共操作都会开启一个 OpenTelemetry span（名称为 "coord.<操作>"），
并在启用指标时记录 Prometheus 计数与耗时。

# 用法

	c := coordination.New(coordination.WithLogger(logger))
	defer c.Close()

	_ = c.RegisterAgent(ctx, types.AgentCapabilities{
		Agent:       types.NewAgentID("dev", "Developer"),
		Proficiency: map[string]float64{"coding": 0.9},
		Available:   true,
	})
	result, err := c.AllocateTasks(ctx, "Build a payment service", ids, allocation.SkillBased)

从应用配置装配（Redis、数据库、LLM 分解器）使用 Build。

# 投票

未通过 WithVoteCaster 指定征集器时，Coordinator 通过邮箱征集投票：
向投票者投递带 vote_request 标记的 Proposal 消息，
Agent 运行时用 consensus.ReplyVote 回复。
*/
package coordination
