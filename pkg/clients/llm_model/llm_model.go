package llm_model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"healthcare_assistant/pkg/tools"
)

const (
	clientNameChatModel = "chat_model"
)

// ClientChatModel 大模型聊天客户端
type ClientChatModel struct {
	config *Config
}

// StreamDelta 流式回调，收到一段助手增量文本时触发
type StreamDelta func(content string)

// NewClient 创建聊天模型客户端
func NewClient(config *Config) *ClientChatModel {
	return &ClientChatModel{config: config}
}

func (zc *ClientChatModel) newOpenAIClient() *openai.Client {
	defaultReq := openai.DefaultConfig(zc.config.Token)
	defaultReq.BaseURL = zc.config.V1Addr
	return openai.NewClientWithConfig(defaultReq)
}

// @Description 封装非流式调用，直接返回完整结果
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success *openai.ChatCompletionResponse
// @Success error
func (zc *ClientChatModel) PostChatCompletionsNonStream(c context.Context, messages []openai.ChatCompletionMessage) (*openai.ChatCompletionResponse, error) {
	client := zc.newOpenAIClient()

	request := openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		Stream:      false,
	}

	zc.debugDumpRequest(request)

	response, err := client.CreateChatCompletion(c, request)
	if err != nil {
		log.Errorf("%s chat completion error: %v", clientNameChatModel, err)
		return nil, err
	}

	zc.debugDumpResponse(response)

	return &response, nil
}

// @Description 封装非流式调用，只返回响应内容字符串
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success string
// @Success error
func (zc *ClientChatModel) PostChatCompletionsNonStreamContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	response, err := zc.PostChatCompletionsNonStream(c, messages)
	if err != nil {
		return "", err
	}

	if response == nil {
		log.Errorf("%s chat completion response is nil", clientNameChatModel)
		return "", fmt.Errorf("chat completion response is nil")
	}

	if len(response.Choices) == 0 {
		log.Errorf("%s chat completion response has no choices", clientNameChatModel)
		return "", fmt.Errorf("chat completion response has no choices")
	}

	content := response.Choices[0].Message.Content
	if content == "" {
		log.Warnf("%s chat completion response content is empty", clientNameChatModel)
	}

	return content, nil
}

// @Description 封装 JSON 模式的结构化调用，返回 JSON 字符串
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success string
// @Success error
func (zc *ClientChatModel) PostChatCompletionsJSONContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	client := zc.newOpenAIClient()

	request := openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	zc.debugDumpRequest(request)

	response, err := client.CreateChatCompletion(c, request)
	if err != nil {
		log.Errorf("%s structured completion error: %v", clientNameChatModel, err)
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion response has no choices")
	}

	return response.Choices[0].Message.Content, nil
}

// @Description 流式调用，支持工具声明；增量文本通过 onDelta 回调返回，
// 工具调用片段在流结束后聚合成完整的 ToolCall 列表
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Param toolDefs []openai.Tool
// @Param onDelta StreamDelta
// @Success string 聚合后的完整回复文本
// @Success []openai.ToolCall
// @Success error
func (zc *ClientChatModel) PostChatCompletionsStreamWithTools(
	c context.Context,
	messages []openai.ChatCompletionMessage,
	toolDefs []openai.Tool,
	onDelta StreamDelta,
) (string, []openai.ToolCall, error) {
	client := zc.newOpenAIClient()

	request := openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		Stream:      true,
	}
	if len(toolDefs) > 0 {
		request.Tools = toolDefs
	}

	zc.debugDumpRequest(request)

	stream, err := client.CreateChatCompletionStream(c, request)
	if err != nil {
		log.Errorf("%s stream creation error: %v", clientNameChatModel, err)
		return "", nil, err
	}
	defer tools.ErrorWithPrintContext(stream.Close, "close stream")

	var content string
	// 工具调用按 index 聚合，参数分片按序拼接
	type toolCallAcc struct {
		id        string
		name      string
		arguments string
	}
	accumulated := make(map[int]*toolCallAcc)

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Errorf("%s stream.Recv error: %v", clientNameChatModel, err)
			return "", nil, err
		}

		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := accumulated[idx]
			if !ok {
				acc = &toolCallAcc{}
				accumulated[idx] = acc
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			acc.arguments += tc.Function.Arguments
		}
	}

	if len(accumulated) == 0 {
		return content, nil, nil
	}

	indexes := make([]int, 0, len(accumulated))
	for idx := range accumulated {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	toolCalls := make([]openai.ToolCall, 0, len(accumulated))
	for _, idx := range indexes {
		acc := accumulated[idx]
		toolCalls = append(toolCalls, openai.ToolCall{
			ID:   acc.id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      acc.name,
				Arguments: acc.arguments,
			},
		})
	}

	return content, toolCalls, nil
}

// debug 出完整的请求参数，json格式（仅在 debug 级别时序列化）
func (zc *ClientChatModel) debugDumpRequest(request openai.ChatCompletionRequest) {
	if log.GetLevel() != log.DebugLevel {
		return
	}
	requestJson, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		log.Errorf("%s chat completion request json marshal error: %v", clientNameChatModel, err)
		return
	}
	// 直接输出格式化的 JSON 到标准输出，避免日志系统转义换行符
	if _, err := fmt.Fprintf(os.Stdout, "[DEBUG] %s chat completion request:\n%s\n", clientNameChatModel, string(requestJson)); err != nil {
		log.Warnf("%s failed to write debug output: %v", clientNameChatModel, err)
	}
}

// debug 出完整的响应内容，json格式（仅在 debug 级别时序列化）
func (zc *ClientChatModel) debugDumpResponse(response openai.ChatCompletionResponse) {
	if log.GetLevel() != log.DebugLevel {
		return
	}
	responseJson, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		log.Errorf("%s chat completion response json marshal error: %v", clientNameChatModel, err)
		return
	}
	if _, err := fmt.Fprintf(os.Stdout, "[DEBUG] %s chat completion response:\n%s\n", clientNameChatModel, string(responseJson)); err != nil {
		log.Warnf("%s failed to write debug output: %v", clientNameChatModel, err)
	}
}
