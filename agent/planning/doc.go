// Package planning 生成协作计划：分解目标、按技能匹配分配任务、
// 推导任务依赖并计算关键路径。
//
// 依赖图在构建时立即做拓扑排序检查，存在环时返回 CYCLIC_DEPENDENCY，
// 不会静默丢弃任何边。
package planning
