// Package mailbox 提供按 Agent 划分的入站消息队列。
//
// 每个 Agent 一个 FIFO 队列，默认无界；支持单播投递、分组投递
// （broadcast / multicast / unicast_group）、非阻塞的待处理探测、
// 原子 Drain 以及阻塞式 Receive。
//
// 配置 persistence.MessageStore 后，消息先持久化再入队，Drain 时确认，
// 重启后通过 Recover 重新入队未确认消息（至少一次语义）。
package mailbox
