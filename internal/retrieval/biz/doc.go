// Package biz 提供检索服务的业务逻辑层。
//
//   - Scorer: 计算语义、时效、可信度、类别子分数并融合为综合分数
//   - Ranker: 跨文档与 URL 合并打分结果、稳定排序并截断到 top_k
//   - Indexer: 单个来源的提取、分块、向量化、存储流水线
//   - IndexQueue: 基于工作池的后台索引队列
//   - Generator: 基于检索结果生成带引用与置信度的回答
//   - Service: 文档与 URL 的元数据管理
package biz
