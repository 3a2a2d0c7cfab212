package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	log "github.com/sirupsen/logrus"

	"healthcare_assistant/constant"
	"healthcare_assistant/model"
	"healthcare_assistant/pkg/vectorstore"
)

// SymptomRetriever 症状知识检索
type SymptomRetriever interface {
	SimilaritySearch(ctx context.Context, query string) (*vectorstore.SymptomRecord, error)
}

// toolFunc 工具实现，入参是模型给的 JSON 字符串
type toolFunc func(ctx context.Context, arguments string) (string, error)

type toolEntry struct {
	definition openai.Tool
	run        toolFunc
}

// buildToolRegistry 注册医疗问诊的五个工具
func (s *Service) buildToolRegistry() map[string]toolEntry {
	registry := make(map[string]toolEntry)

	registry[constant.ToolRetrieve] = toolEntry{
		definition: functionTool(constant.ToolRetrieve,
			"Retrieve the most similar known symptom with its possible conditions and follow-up questions.",
			map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "The symptom rewritten in clear medical terminology"},
			}, []string{"query"}),
		run: s.runRetrieve,
	}

	registry[constant.ToolCheckDocuments] = toolEntry{
		definition: functionTool(constant.ToolCheckDocuments,
			"Check whether the retrieved documents are relevant to the user's symptoms.",
			map[string]jsonschema.Definition{
				"symptoms":  {Type: jsonschema.String, Description: "The symptoms described by the user"},
				"documents": {Type: jsonschema.String, Description: "The documents returned by the retrieve tool"},
			}, []string{"symptoms", "documents"}),
		run: s.runCheckDocuments,
	}

	registry[constant.ToolDiagnoseCondition] = toolEntry{
		definition: functionTool(constant.ToolDiagnoseCondition,
			"Provide a likely diagnosis based on the symptoms and the follow-up Q&A.",
			map[string]jsonschema.Definition{
				"symptoms":         {Type: jsonschema.String, Description: "All symptoms the user reported"},
				"followup_answers": {Type: jsonschema.String, Description: "The follow-up questions with the user's answers"},
			}, []string{"symptoms", "followup_answers"}),
		run: s.runDiagnose,
	}

	registry[constant.ToolExplainDiagnosis] = toolEntry{
		definition: functionTool(constant.ToolExplainDiagnosis,
			"Explain a previously provided diagnosis to the user.",
			map[string]jsonschema.Definition{
				"diagnosis":        {Type: jsonschema.String, Description: "The diagnosis to explain"},
				"symptoms":         {Type: jsonschema.String, Description: "All symptoms the user reported"},
				"followup_answers": {Type: jsonschema.String, Description: "The follow-up questions with the user's answers"},
			}, []string{"diagnosis", "symptoms", "followup_answers"}),
		run: s.runExplain,
	}

	registry[constant.ToolRecommendTreatment] = toolEntry{
		definition: functionTool(constant.ToolRecommendTreatment,
			"Recommend lifestyle changes or medical advice for a diagnosis.",
			map[string]jsonschema.Definition{
				"diagnosis": {Type: jsonschema.String, Description: "The diagnosis to recommend treatment for"},
			}, []string{"diagnosis"}),
		run: s.runRecommend,
	}

	return registry
}

func functionTool(name, description string, properties map[string]jsonschema.Definition, required []string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: properties,
				Required:   required,
			},
		},
	}
}

func (s *Service) toolDefinitions() []openai.Tool {
	definitions := make([]openai.Tool, 0, len(s.tools))
	for _, name := range []string{
		constant.ToolRetrieve,
		constant.ToolCheckDocuments,
		constant.ToolDiagnoseCondition,
		constant.ToolExplainDiagnosis,
		constant.ToolRecommendTreatment,
	} {
		definitions = append(definitions, s.tools[name].definition)
	}
	return definitions
}

// dispatchTool 按名字执行工具，未知工具名返回给模型一条错误文本而不是失败
func (s *Service) dispatchTool(ctx context.Context, call model.ToolCall) string {
	entry, ok := s.tools[call.Name]
	if !ok {
		log.Warnf("Model requested unknown tool %s", call.Name)
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}

	result, err := entry.run(ctx, call.Arguments)
	if err != nil {
		log.Warnf("Tool %s failed: %v", call.Name, err)
		return fmt.Sprintf("tool %s failed: %v", call.Name, err)
	}
	return result
}

type retrieveArguments struct {
	Query string `json:"query"`
}

func (s *Service) runRetrieve(ctx context.Context, arguments string) (string, error) {
	args := &retrieveArguments{}
	if err := json.Unmarshal([]byte(arguments), args); err != nil {
		return "", fmt.Errorf("parse retrieve arguments: %w", err)
	}

	record, err := s.retriever.SimilaritySearch(ctx, args.Query)
	if err != nil {
		return "", err
	}
	if record == nil {
		return constant.NoRelevantDocumentsFound, nil
	}

	details := fmt.Sprintf("Possible conditions: %s. Follow-up questions: %s",
		record.Conditions, strings.Join(record.FollowUpQuestions, " "))
	return fmt.Sprintf(constant.RetrievedDocumentTemplate, record.Symptom, details), nil
}

type checkDocumentsArguments struct {
	Symptoms  string `json:"symptoms"`
	Documents string `json:"documents"`
}

func (s *Service) runCheckDocuments(ctx context.Context, arguments string) (string, error) {
	args := &checkDocumentsArguments{}
	if err := json.Unmarshal([]byte(arguments), args); err != nil {
		return "", fmt.Errorf("parse check_documents arguments: %w", err)
	}

	prompt := fmt.Sprintf(constant.CheckDocumentsPromptTemplate, args.Symptoms, args.Documents)
	return s.reasoner.CompleteContent(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

type diagnoseArguments struct {
	Symptoms        string `json:"symptoms"`
	FollowupAnswers string `json:"followup_answers"`
}

func (s *Service) runDiagnose(ctx context.Context, arguments string) (string, error) {
	args := &diagnoseArguments{}
	if err := json.Unmarshal([]byte(arguments), args); err != nil {
		return "", fmt.Errorf("parse diagnose_condition arguments: %w", err)
	}

	prompt := fmt.Sprintf(constant.DiagnosePromptTemplate, args.Symptoms, args.FollowupAnswers, s.profileText(ctx))
	return s.reasoner.CompleteContent(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

type explainArguments struct {
	Diagnosis       string `json:"diagnosis"`
	Symptoms        string `json:"symptoms"`
	FollowupAnswers string `json:"followup_answers"`
}

func (s *Service) runExplain(ctx context.Context, arguments string) (string, error) {
	args := &explainArguments{}
	if err := json.Unmarshal([]byte(arguments), args); err != nil {
		return "", fmt.Errorf("parse explain_diagnosis arguments: %w", err)
	}

	prompt := fmt.Sprintf(constant.ExplainPromptTemplate, args.Diagnosis, args.Symptoms, args.FollowupAnswers, s.profileText(ctx))
	return s.reasoner.CompleteContent(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

type recommendArguments struct {
	Diagnosis string `json:"diagnosis"`
}

func (s *Service) runRecommend(ctx context.Context, arguments string) (string, error) {
	args := &recommendArguments{}
	if err := json.Unmarshal([]byte(arguments), args); err != nil {
		return "", fmt.Errorf("parse recommend_treatment arguments: %w", err)
	}

	prompt := fmt.Sprintf(constant.RecommendPromptTemplate, args.Diagnosis, s.profileText(ctx))
	return s.reasoner.CompleteContent(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

// profileText 取当前用户画像文本，取不到时返回空串
func (s *Service) profileText(ctx context.Context) string {
	userID := userIDFrom(ctx)
	if userID == "" {
		return constant.EmptyString
	}
	userProfile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		log.Warnf("Load profile for user=%s failed: %v", userID, err)
		return constant.EmptyString
	}
	return userProfile.Format()
}
