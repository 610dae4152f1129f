/*
包 server 管理进程内多个 HTTP 服务（业务 API 与指标端点）的生命周期。

Manager 统一监听、服务与优雅关闭：Start 非阻塞启动全部服务，
任一端口监听失败时释放已打开的端口；Run 阻塞直到上下文结束或
某个服务异常退出，然后在超时内排空请求并按逆序执行 OnShutdown 注册的清理函数。
*/
package server
