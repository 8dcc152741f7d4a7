// Package allocation 将目标分解出的任务分配给候选 Agent。
//
// 四种策略（RoundRobin / SkillBased / LoadBalanced / Auction）是封闭枚举，
// 通过 Assign 中的 switch 分派。每次调用在目录快照上运行，
// LoadBalanced 的负载增量只在本次调用内生效，不回写目录。
package allocation
