package errors

// 检索服务代码: 21
// 错误码格式: AABBCCC
// - AA: 21 (检索服务)
// - BB: 类别代码
// - CCC: 序号

func init() {
	RegisterService(ServiceRetrieval, "retrieval")
}

var (
	// 请求参数错误 (类别 01)
	ErrInvalidTopK        = NewRequestErr(ServiceRetrieval, 1, "top_k must be a positive integer", "top_k 必须为正整数")
	ErrInvalidCredibility = NewRequestErr(ServiceRetrieval, 2, "credibility_score must be between 1 and 5", "可信度评分必须在 1 到 5 之间")
	ErrInvalidSourceType  = NewRequestErr(ServiceRetrieval, 3, "Unknown source type", "未知的来源类型")
	ErrUnsupportedFile    = NewRequestErr(ServiceRetrieval, 4, "Unsupported file type", "不支持的文件类型")
	ErrInvalidURL         = NewRequestErr(ServiceRetrieval, 5, "Invalid URL format", "URL 格式无效")
	ErrInvalidPage        = NewRequestErr(ServiceRetrieval, 6, "Invalid page parameters", "分页参数无效")

	// 资源错误 (类别 04)
	ErrSourceNotFound = NewNotFoundErr(ServiceRetrieval, 1, "Source item not found", "来源不存在")
	ErrChunksNotFound = NewNotFoundErr(ServiceRetrieval, 2, "Source item has no indexed chunks", "来源尚未建立索引")

	// 索引错误
	ErrExtraction  = NewUnprocessableErr(ServiceRetrieval, 1, "Text extraction failed", "文本提取失败")
	ErrIndexFailed = NewInternalErr(ServiceRetrieval, 1, "Indexing failed", "索引失败")
	ErrQueueFull   = NewRateLimitErr(ServiceRetrieval, 1, "Indexing queue is full", "索引队列已满")

	// 上游服务错误 (类别 10)
	ErrEmbeddingBackend = NewNetworkErr(ServiceRetrieval, 1, "Embedding backend unavailable", "向量服务不可用")
	ErrChatBackend      = NewNetworkErr(ServiceRetrieval, 2, "Chat backend unavailable", "对话服务不可用")
)
