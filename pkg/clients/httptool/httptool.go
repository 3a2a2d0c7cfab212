package httptool

// 流式响应相关的 HTTP 头常量
const (
	HeaderContentType       = "Content-Type"
	HeaderContentTypeStream = "text/event-stream;charset=utf-8"
	HeaderContentCache      = "Cache-Control"
	HeaderContentCacheNo    = "no-cache"
	HeaderContentConnection = "Connection"
	HeaderContentKeepAlive  = "keep-alive"
	HeaderContentTransfer   = "Transfer-Encoding"
	HeaderContentChunked    = "chunked"
)
