// Copyright (c) streamrelay Authors.
// Licensed under the MIT License.

/*
Package main provides the streamrelay server entry point.

# 概述

cmd/streamrelay 是流式反向代理的可执行入口：接收客户端 HTTP 请求，
将其转发给单一上游 origin，并把 origin 的响应体通过一条背压感知的
状态机管道（body.Producer → subscriber.Reader）重新流式返回给客户端。
程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus 指标采集
以及配置热重载。

# 核心类型

  - Server        — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - ProxyHandler  — 反向代理 HTTP handler，驱动 transport.Pump 与 body.Producer
  - Middleware    — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、RequestLogger、
    MetricsMiddleware、CORS、RateLimiter（基于 IP）、APIKeyAuth
  - 配置热重载：HotReloadManager 监听文件变更并回调
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止热更新 → 并发关闭 HTTP 与 Metrics → 关闭工作池 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
