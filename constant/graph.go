package constant

// =============================================
// 对话图节点常量
// =============================================

// GraphNode 对话图节点名
type GraphNode string

const (
	// NodeSupervisor 主管节点，驱动对话并决定下一步动作
	NodeSupervisor GraphNode = "supervisor"
	// NodeTools 工具执行节点
	NodeTools GraphNode = "tools"
	// NodeSummarize 摘要压缩节点
	NodeSummarize GraphNode = "summarize_conversation"
	// NodeWriteMemory 用户画像写回节点
	NodeWriteMemory GraphNode = "write_memory"
	// NodeEnd 终止节点
	NodeEnd GraphNode = "__end__"
)

// String 返回节点的字符串值
func (n GraphNode) String() string {
	return string(n)
}

// =============================================
// 消息角色常量
// =============================================

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// =============================================
// 流式事件类型常量
// =============================================

// StreamEventKind 返回给客户端的流式片段类型
type StreamEventKind string

const (
	// StreamEventAssistant 助手回复的增量文本
	StreamEventAssistant StreamEventKind = "assistant"
	// StreamEventTool 工具执行状态
	StreamEventTool StreamEventKind = "tool"
	// StreamEventSummary 摘要压缩结果
	StreamEventSummary StreamEventKind = "summary"
	// StreamEventDone 本轮结束
	StreamEventDone StreamEventKind = "done"
)

// =============================================
// 图运行的默认阈值
// =============================================

const (
	// DefaultSummarizeThreshold 消息数超过该值时先走摘要节点
	DefaultSummarizeThreshold = 40
	// DefaultKeepRecentMessages 摘要压缩后保留的最近原始消息条数
	DefaultKeepRecentMessages = 2
	// DefaultMaxStepsPerTurn 单轮最多执行的节点步数，防止工具死循环
	DefaultMaxStepsPerTurn = 50
	// DefaultNamingThreshold 消息总数不超过该值时允许自动命名会话
	DefaultNamingThreshold = 8
)

// =============================================
// 用户画像存储常量
// =============================================

const (
	// ProfileNamespace 用户画像的命名空间
	ProfileNamespace = "user_profile"
	// ProfileKey 用户画像的固定 key
	ProfileKey = "user_details"
)

// 工具名常量
const (
	ToolRetrieve           = "retrieve"
	ToolCheckDocuments     = "check_documents"
	ToolDiagnoseCondition  = "diagnose_condition"
	ToolExplainDiagnosis   = "explain_diagnosis"
	ToolRecommendTreatment = "recommend_treatment"
)

// DefaultChatName 新建会话的占位名称
const DefaultChatName = "new chat"
