// Package knowledge 在一组 Agent 的知识库之间传播事实。
//
// 四种策略：Full（全量并集）、Incremental（按同步游标增量）、
// Selective（按技能与主题过滤）、Gossip（成对交换、多轮收敛）。
// 各 Agent 的知识库通过 Store 接口访问，提供内存、GORM 与 Redis 实现。
// 同一 Key 的事实按 KnowledgeFact.Newer 取较新者。
package knowledge
