package errors

import "google.golang.org/grpc/codes"

// Scribe 服务代码: 20 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 20 (Scribe 服务)
// - BB: 类别代码
// - CCC: 序号

const (
	// ServiceScribe is for the scribe content service.
	ServiceScribe = 20
)

var (
	// 请求参数错误 (类别 01)
	ErrScribeInvalidRequest   = Register(New(MakeCode(ServiceScribe, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrScribeInvalidDateRange = Register(New(MakeCode(ServiceScribe, CategoryRequest, 2), 400, codes.InvalidArgument, "Invalid date range", "日期范围无效"))
	ErrScribeUnsupportedFile  = Register(New(MakeCode(ServiceScribe, CategoryRequest, 3), 400, codes.InvalidArgument, "Unsupported file type", "不支持的文件类型"))

	// 资源错误 (类别 04)
	ErrScribeSessionNotFound = Register(New(MakeCode(ServiceScribe, CategoryResource, 1), 404, codes.NotFound, "Session not found", "会话不存在"))
	ErrScribeQueryNotFound   = Register(New(MakeCode(ServiceScribe, CategoryResource, 2), 404, codes.NotFound, "Query not found", "查询记录不存在"))
	ErrScribeDocumentMissing = Register(New(MakeCode(ServiceScribe, CategoryResource, 3), 404, codes.NotFound, "No document indexed for session", "会话尚未索引任何文档"))

	// 生成相关错误 (类别 07 - Internal)
	ErrScribeGenerateFailed = Register(New(MakeCode(ServiceScribe, CategoryInternal, 1), 500, codes.Internal, "Content generation failed", "内容生成失败"))
	ErrScribeIndexFailed    = Register(New(MakeCode(ServiceScribe, CategoryInternal, 2), 500, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrScribeEngineFailed   = Register(New(MakeCode(ServiceScribe, CategoryInternal, 3), 500, codes.Internal, "Query engine unavailable", "查询引擎不可用"))
	ErrScribeStreamFailed   = Register(New(MakeCode(ServiceScribe, CategoryInternal, 4), 500, codes.Internal, "Streaming answer failed", "流式回答失败"))

	// 外部服务错误 (类别 10 - Network)
	ErrScribeLLMUnavailable   = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), 503, codes.Unavailable, "LLM provider unavailable", "LLM 服务不可用"))
	ErrScribeStoreUnavailable = Register(New(MakeCode(ServiceScribe, CategoryNetwork, 1), 503, codes.Unavailable, "History store unavailable", "历史存储不可用"))
)
