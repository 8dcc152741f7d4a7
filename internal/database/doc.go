// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开知识库使用的 GORM 连接，并管理连接池。

# 概述

Open 按 config.DatabaseConfig 的驱动选择方言：postgres、mysql，
以及纯 Go 的 sqlite（glebarez/sqlite，无需 CGO）。PoolManager
封装连接池参数、后台健康检查与事务重试，健康检查结果通过
metrics.Collector 上报连接数与探活耗时。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Ping/Stats/Close。
  - PoolConfig：连接池参数，PoolConfigFrom 从数据库配置派生，sqlite 固定单连接。
  - WithTransactionRetry：死锁、序列化失败、SQLITE_BUSY 等错误按指数退避重试。
*/
package database
