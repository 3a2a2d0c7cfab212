package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/graph"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(ctxKeyUserID).(string)
	return userID
}

// Options 图运行阈值，零值使用默认值
type Options struct {
	SummarizeThreshold int // 消息数超过该值时先压缩历史
	KeepRecentMessages int // 压缩后保留的最近消息条数
	MaxStepsPerTurn    int // 单轮最多节点步数
}

func (o *Options) withDefaults() {
	if o.SummarizeThreshold <= 0 {
		o.SummarizeThreshold = constant.DefaultSummarizeThreshold
	}
	if o.KeepRecentMessages <= 0 {
		o.KeepRecentMessages = constant.DefaultKeepRecentMessages
	}
	if o.MaxStepsPerTurn <= 0 {
		o.MaxStepsPerTurn = constant.DefaultMaxStepsPerTurn
	}
}

// Service 问诊对话服务，把主管、工具、摘要、画像写回四个节点编排成图
type Service struct {
	reasoner  Reasoner
	retriever SymptomRetriever
	profiles  ProfileStore
	runner    *graph.Runner
	tools     map[string]toolEntry
	options   Options
}

func NewService(reasoner Reasoner, retriever SymptomRetriever, profiles ProfileStore, checkpointer graph.Checkpointer, options Options) (*Service, error) {
	options.withDefaults()

	s := &Service{
		reasoner:  reasoner,
		retriever: retriever,
		profiles:  profiles,
		options:   options,
	}
	s.tools = s.buildToolRegistry()

	g := graph.NewGraph().
		AddNode(constant.NodeSupervisor, s.supervisorNode).
		AddNode(constant.NodeTools, s.toolsNode).
		AddNode(constant.NodeSummarize, s.summarizeNode).
		AddNode(constant.NodeWriteMemory, s.writeMemoryNode).
		SetEntry(func(state *graph.State) constant.GraphNode {
			if len(state.Messages) > options.SummarizeThreshold {
				return constant.NodeSummarize
			}
			return constant.NodeSupervisor
		}).
		AddEdge(constant.NodeSummarize, constant.NodeSupervisor).
		AddConditionalEdge(constant.NodeSupervisor, func(state *graph.State) constant.GraphNode {
			if last := state.LastMessage(); last != nil && len(last.ToolCalls) > 0 {
				return constant.NodeTools
			}
			return constant.NodeWriteMemory
		}).
		AddEdge(constant.NodeTools, constant.NodeSupervisor).
		AddEdge(constant.NodeWriteMemory, constant.NodeEnd)

	runner, err := graph.NewRunner(g, checkpointer, options.MaxStepsPerTurn)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// Converse 处理一轮对话，事件通过 emit 实时推给调用方
func (s *Service) Converse(ctx context.Context, userID, chatID, message string, emit graph.EmitFunc) (*graph.State, *model.Error) {
	if userID == "" || chatID == "" {
		return nil, model.NewError(model.ErrorEmptyId, fmt.Errorf("user id and chat id are required"))
	}
	if message == "" {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("message is required"))
	}

	state, err := s.runner.Invoke(withUserID(ctx, userID), chatID, model.NewUserMessage(message), emit)
	if err != nil {
		if errors.Is(err, graph.ErrThreadBusy) {
			return nil, model.NewError(model.ErrorBusy, err)
		}
		return nil, model.NewError(model.ErrorLLM, err)
	}
	return state, nil
}

// History 只读地取出会话的当前状态
func (s *Service) History(ctx context.Context, chatID string) (*graph.State, *model.Error) {
	if chatID == "" {
		return nil, model.NewError(model.ErrorEmptyId, fmt.Errorf("chat id is required"))
	}
	state, err := s.runner.Load(ctx, chatID)
	if err != nil {
		return nil, model.NewError(model.ErrorCheckpoint, err)
	}
	return state, nil
}

// supervisorNode 主管节点：带上画像与摘要调模型，结果可能是最终回复或工具调用
func (s *Service) supervisorNode(ctx context.Context, state *graph.State, emit graph.EmitFunc) error {
	systemPrompt := fmt.Sprintf(constant.SupervisorSystemPromptTemplate, s.profileText(ctx), state.Summary)

	messages := make([]openai.ChatCompletionMessage, 0, len(state.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	messages = append(messages, model.ToOpenAIMessages(state.Messages)...)

	content, toolCalls, err := s.reasoner.StreamWithTools(ctx, messages, s.toolDefinitions(), func(delta string) {
		if emit != nil && delta != "" {
			emit(&model.StreamEvent{
				Kind:    constant.StreamEventAssistant,
				Node:    constant.NodeSupervisor.String(),
				Content: delta,
			})
		}
	})
	if err != nil {
		return err
	}

	calls := make([]model.ToolCall, 0, len(toolCalls))
	for _, tc := range toolCalls {
		calls = append(calls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	state.AppendMessages(model.NewAssistantMessage(content, calls))
	return nil
}

// toolsNode 执行主管消息里的全部工具调用，每个调用产出一条 tool 消息
func (s *Service) toolsNode(ctx context.Context, state *graph.State, emit graph.EmitFunc) error {
	last := state.LastMessage()
	if last == nil || len(last.ToolCalls) == 0 {
		return fmt.Errorf("tools node reached without pending tool calls")
	}

	for _, call := range last.ToolCalls {
		result := s.dispatchTool(ctx, call)
		if emit != nil {
			emit(&model.StreamEvent{
				Kind:    constant.StreamEventTool,
				Node:    call.Name,
				Content: result,
			})
		}
		state.AppendMessages(model.NewToolMessage(call.ID, call.Name, result))
	}
	return nil
}

// summarizeNode 历史过长时压缩：生成（或扩展）摘要，只保留最近几条消息
func (s *Service) summarizeNode(ctx context.Context, state *graph.State, emit graph.EmitFunc) error {
	instruction := constant.SummaryCreatePrompt
	if state.Summary != "" {
		instruction = fmt.Sprintf(constant.SummaryExtendPromptTemplate, state.Summary)
	}

	messages := model.ToOpenAIMessages(state.Messages)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: instruction,
	})

	summary, err := s.reasoner.CompleteContent(ctx, messages)
	if err != nil {
		return err
	}

	state.Summary = summary
	state.KeepRecentMessages(s.options.KeepRecentMessages)

	if emit != nil {
		emit(&model.StreamEvent{
			Kind:    constant.StreamEventSummary,
			Node:    constant.NodeSummarize.String(),
			Content: summary,
		})
	}
	return nil
}

// writeMemoryNode 回合结束后把对话里的新事实写回用户画像
// 画像写回失败不影响已经给出的回复，记日志并作为告警带回给调用方
func (s *Service) writeMemoryNode(ctx context.Context, state *graph.State, _ graph.EmitFunc) error {
	userID := userIDFrom(ctx)
	if userID == "" {
		return nil
	}
	if err := s.profiles.Reconcile(ctx, userID, state.Messages); err != nil {
		log.Warnf("Profile reconcile for user=%s failed: %v", userID, err)
		state.AddWarning("profile update failed: " + err.Error())
	}
	return nil
}
