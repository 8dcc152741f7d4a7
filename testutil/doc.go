// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供协调引擎测试的共享工具和辅助函数。

# 概述

testutil 包为各引擎包与命令行的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertFactsEqual / AssertJSONEqual /
    AssertErrorCode
  - 异步断言: AssertEventuallyTrue，支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON / AgentIDs

# 子包

  - testutil/mocks: MockVoteCaster（脚本化投票）与 MockKnowledgeStore
    （内存知识库），均支持 Builder 模式、错误注入与调用记录
  - testutil/fixtures: 预置团队、知识事实与任务

# 使用示例

	ctx := testutil.TestContext(t)
	caster := mocks.NewMockVoteCaster().WithVote("dev", true)
	dec, err := c.ReachConsensus(ctx, "ship it", ids, consensus.Majority, time.Second)
	testutil.AssertErrorCode(t, err, "")
*/
package testutil
