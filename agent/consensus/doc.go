// Package consensus 向投票者征集投票并按协议聚合为决议。
//
// 协议：Majority、Unanimous、Weighted、Raft（领导者把关的多数，
// 不含日志复制与选举）。投票并发征集、受截止时间约束；
// 聚合是纯函数，结果与投票到达顺序无关。
package consensus
