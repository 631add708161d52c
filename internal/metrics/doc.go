// 版权所有 2024 streamrelay Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖中继自身的
HTTP 监听器与 body 流水线两大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：中继自身监听器处理的请求总数与耗时，
    按 method/path/status 分组，path 经 normalizePath 归一化以控制
    label 基数。
  - Body 流水线指标：从 origin 接收的块数/字节数、向订阅者发出的
    块数/字节数、队列深度 Gauge、终止结果（completed/terminated）计数，
    按 origin 分组。
*/
package metrics
