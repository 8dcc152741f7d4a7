// Package directory 提供 Agent 能力目录：注册、查询、按技能检索。
//
// 目录是协调引擎中唯一被并发写入的结构，所有写入经过单一写锁，
// 读取返回副本；Agent 不会被删除，只会被标记为不可用。
package directory
