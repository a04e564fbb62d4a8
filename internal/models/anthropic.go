package models

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/claybowl/taygency/internal/config"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 4096
)

// ToolErrorMarker prefixes tool results that report a failed call.
// Providers that support it flag such results as errors.
const ToolErrorMarker = "[TOOL_ERROR]"

// AnthropicChatModel implements model.ToolCallingChatModel using Anthropic's SDK.
type AnthropicChatModel struct {
	client    anthropic.Client
	modelName string
	maxTokens int
	tools     []*schema.ToolInfo
}

// NewAnthropic creates a new Anthropic ToolCallingChatModel.
func NewAnthropic(_ context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	opts := []option.RequestOption{option.WithRequestTimeout(DefaultCallTimeout)}
	switch auth.Kind {
	case AuthBearerToken:
		opts = append(opts, option.WithAuthToken(auth.Value))
	default:
		opts = append(opts, option.WithAPIKey(auth.Value))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout.Duration() > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout.Duration()))
	}

	return &AnthropicChatModel{
		client:    anthropic.NewClient(opts...),
		modelName: modelName,
		maxTokens: maxTokens,
	}, nil
}

func (m *AnthropicChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (outMsg *schema.Message, err error) {
	ctx = callbacks.EnsureRunInfo(ctx, "Anthropic", components.ComponentOfChatModel)

	cbInput := &model.CallbackInput{
		Messages: messages,
		Tools:    m.tools,
		Config:   &model.Config{Model: m.modelName},
	}
	ctx = callbacks.OnStart(ctx, cbInput)
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	resp, err := m.client.Messages.New(ctx, m.buildParams(messages, opts))
	if err != nil {
		return nil, HandleError(err)
	}

	outMsg = convertResponse(resp)
	usage := outMsg.ResponseMeta.Usage
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message: outMsg,
		Config:  cbInput.Config,
		TokenUsage: &model.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	})
	return outMsg, nil
}

// Stream delivers the complete response as a single chunk. The orchestrator
// only needs whole turns.
func (m *AnthropicChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *AnthropicChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &AnthropicChatModel{
		client:    m.client,
		modelName: m.modelName,
		maxTokens: m.maxTokens,
		tools:     tools,
	}, nil
}

func (m *AnthropicChatModel) buildParams(messages []*schema.Message, opts []model.Option) anthropic.MessageNewParams {
	maxTokens := m.maxTokens
	options := model.GetCommonOptions(&model.Options{MaxTokens: &maxTokens}, opts...)
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		maxTokens = *options.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: int64(maxTokens),
		Messages:  convertMessages(messages),
	}
	for _, msg := range messages {
		if msg.Role == schema.System {
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		}
	}

	for _, tool := range m.tools {
		toolParam := anthropic.ToolUnionParamOfTool(convertToolSchema(tool), tool.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = param.NewOpt(tool.Desc)
		}
		params.Tools = append(params.Tools, toolParam)
	}
	return params
}

func convertToolSchema(tool *schema.ToolInfo) anthropic.ToolInputSchemaParam {
	inputSchema := anthropic.ToolInputSchemaParam{}
	if tool.ParamsOneOf == nil {
		return inputSchema
	}

	jsonSchema, err := tool.ParamsOneOf.ToJSONSchema()
	if err != nil || jsonSchema == nil {
		return inputSchema
	}
	schemaBytes, err := json.Marshal(jsonSchema)
	if err != nil {
		return inputSchema
	}
	var schemaMap struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if json.Unmarshal(schemaBytes, &schemaMap) != nil {
		return inputSchema
	}
	inputSchema.Properties = schemaMap.Properties
	inputSchema.Required = schemaMap.Required
	return inputSchema
}

// convertMessages maps the history onto alternating user and assistant
// turns. Consecutive tool results become one user turn, since Anthropic
// expects every result of an assistant turn in the next message.
func convertMessages(messages []*schema.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			continue
		case schema.Tool:
			isError := strings.HasPrefix(msg.Content, ToolErrorMarker)
			pending = append(pending, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
		case schema.Assistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return out
}

func convertResponse(resp *anthropic.Message) *schema.Message {
	prompt := int(resp.Usage.InputTokens)
	completion := int(resp.Usage.OutputTokens)
	result := &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			},
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			args := "{}"
			if raw, err := json.Marshal(block.Input); err == nil && string(raw) != "null" {
				args = string(raw)
			}
			result.ToolCalls = append(result.ToolCalls, schema.ToolCall{
				ID:       block.ID,
				Function: schema.FunctionCall{Name: block.Name, Arguments: args},
			})
		}
	}

	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		result.ResponseMeta.FinishReason = "tool_calls"
	case anthropic.StopReasonMaxTokens:
		result.ResponseMeta.FinishReason = "length"
	default:
		result.ResponseMeta.FinishReason = "stop"
	}
	return result
}

var _ model.ToolCallingChatModel = (*AnthropicChatModel)(nil)
