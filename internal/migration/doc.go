// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理知识库表（knowledge_facts、knowledge_cursors）的
版本化 Schema 迁移，支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate。

# 概述

各方言的 SQL 文件通过 embed 内嵌在 migrations/<dialect>/ 下，
由 iofs source 交给 golang-migrate 执行。生产环境使用迁移建表，
开发与测试环境也可以直接调用 knowledge.SQLStore.AutoMigrate。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/Steps/Goto/Force/Version/Status/Info。
  - CLI：agentcoord migrate 子命令使用的终端输出层。
  - AvailableMigrations：列出某方言的内嵌迁移，无需数据库连接。
  - NewMigratorFromConfig：从 config.DatabaseConfig 构建连接串并创建迁移器。
*/
package migration
