// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理协调服务 HTTP 端口的生命周期。

Manager 封装 net/http.Server：Start 非阻塞监听，Shutdown 在超时内排空请求，
Wait 在 ctx 结束、收到 SIGINT/SIGTERM 或服务异常退出时触发优雅关闭。
ConfigFrom 把应用配置的 server 段映射为监听参数。
*/
package server
