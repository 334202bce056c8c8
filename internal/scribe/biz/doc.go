// Package biz 提供 scribe 服务的业务逻辑层。
//
// 该包采用分层架构,将业务逻辑拆分为以下组件:
//   - Pipeline: 研究员→写作者两步智能体流水线（绑定联网搜索工具）
//   - SingleShot: 单次直出生成器,也是流水线失败后的降级策略
//   - GenerationService: 策略分发、降级与两步持久化的编排层
//   - Indexer: 表格文档解析（Excel 单元格提取 / CSV 确定性摘要）
//   - EngineBuilder / QueryEngine: 向量索引构建与流式问答
//   - EngineCache: 每会话每文件至多构建一次的查询引擎缓存
//   - SessionManager: 会话生命周期与对话记录
package biz
