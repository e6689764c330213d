package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/normanking/enola/internal/tools"
)

// OpenAIModel implements Model over the OpenAI chat completions API
// with function calling.
type OpenAIModel struct {
	client      openai.Client
	model       string
	baseURL     string
	temperature float64
	timeout     time.Duration
}

// OpenAIOption customizes the client.
type OpenAIOption func(*OpenAIModel)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(m *OpenAIModel) { m.temperature = t }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(m *OpenAIModel) { m.timeout = d }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(m *OpenAIModel) { m.baseURL = url }
}

// NewOpenAIModel creates a chat completion client for the given model.
func NewOpenAIModel(apiKey, model string, opts ...OpenAIOption) *OpenAIModel {
	m := &OpenAIModel{
		model:       model,
		temperature: 0.2,
		timeout:     60 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if m.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(m.baseURL))
	}
	m.client = openai.NewClient(clientOpts...)
	return m
}

// Complete sends the full turn log plus the active tool schemas and
// returns the assistant turn the model produced.
func (m *OpenAIModel) Complete(ctx context.Context, turns []Turn, specs []*tools.Spec) (Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Messages:    toMessages(turns),
		Temperature: openai.Float(m.temperature),
	}
	if len(specs) > 0 {
		params.Tools = toToolParams(specs)
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Turn{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Turn{}, fmt.Errorf("chat completion: empty choices")
	}

	msg := completion.Choices[0].Message
	calls := make([]ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments degrade to an empty map; the registry
			// reports missing parameters back to the model.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return AssistantTurn(msg.Content, calls...), nil
}

func toMessages(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case RoleAssistant:
			messages = append(messages, assistantMessage(t))
		case RoleTool:
			messages = append(messages, openai.ToolMessage(t.Content, t.ToolCallID))
		}
	}
	return messages
}

func assistantMessage(t Turn) openai.ChatCompletionMessageParamUnion {
	if len(t.ToolCalls) == 0 {
		return openai.AssistantMessage(t.Content)
	}
	param := openai.ChatCompletionAssistantMessageParam{}
	if t.Content != "" {
		param.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(t.Content),
		}
	}
	for _, call := range t.ToolCalls {
		args, err := json.Marshal(call.Args)
		if err != nil {
			args = []byte("{}")
		}
		param.ToolCalls = append(param.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &param}
}

func toToolParams(specs []*tools.Spec) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.SchemaMap()),
			},
		})
	}
	return params
}
