/*
包 metrics 提供基于 Prometheus 的协调引擎指标采集。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 向量，
    可注册到默认 Registry，也可通过 NewCollectorWithRegistry 注入独立 Registry。

# 主要能力

  - 协调操作：按 operation/status 统计次数与耗时，目录中的 Agent 数。
  - 邮箱：按投递模式统计送达消息数，按错误码统计失败。
  - 分配与共识：按策略统计已分配/未分配任务，按协议统计决议与选票。
  - 知识同步：推送事实数、推送失败数、最近一次同步的收敛度。
  - 规划：计划任务数与关键路径长度分布。
  - HTTP 与数据库：请求计数与耗时、连接池状态与查询耗时。
*/
package metrics
