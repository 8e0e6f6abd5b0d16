package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// BedrockClient talks to Anthropic models hosted on AWS Bedrock.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockClient creates a Bedrock client using the ambient AWS credential
// chain.
func NewBedrockClient(ctx context.Context, modelID string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}
	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// Chat sends the turn history and returns the assistant's reply as a turn.
func (b *BedrockClient) Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error) {
	messages, systemPrompt := convertTurnsToBedrockMessages(turns)

	body, err := buildBedrockRequest(messages, systemPrompt, available)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	return processBedrockResponse(resp.Body)
}

// convertTurnsToBedrockMessages converts the turn history to the Anthropic
// message shape Bedrock expects.
func convertTurnsToBedrockMessages(turns []session.Turn) ([]map[string]interface{}, string) {
	var messages []map[string]interface{}
	var systemPrompt string

	for _, turn := range turns {
		switch turn.Role {
		case session.RoleSystem:
			systemPrompt = turn.Content
		case session.RoleUser:
			messages = append(messages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": turn.Content},
				},
			})
		case session.RoleAssistant:
			var blocks []map[string]interface{}
			if turn.Content != "" {
				blocks = append(blocks, map[string]interface{}{
					"type": "text", "text": turn.Content,
				})
			}
			for _, tc := range turn.ToolCalls {
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": tc.Args,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": blocks,
			})
		case session.RoleTool:
			if len(turn.ToolCalls) == 1 && turn.ToolCalls[0].ID != "" {
				messages = append(messages, map[string]interface{}{
					"role": "user",
					"content": []map[string]interface{}{
						{
							"type":        "tool_result",
							"tool_use_id": turn.ToolCalls[0].ID,
							"content":     turn.Content,
						},
					},
				})
			} else {
				messages = append(messages, map[string]interface{}{
					"role": "user",
					"content": []map[string]interface{}{
						{"type": "text", "text": turn.Content},
					},
				})
			}
		}
	}

	return messages, systemPrompt
}

// buildBedrockRequest assembles the InvokeModel body.
func buildBedrockRequest(messages []map[string]interface{}, systemPrompt string, available []tools.Tool) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        anthropicMaxTokens,
		"messages":          messages,
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}
	if len(available) > 0 {
		var decls []map[string]interface{}
		for _, t := range available {
			decls = append(decls, map[string]interface{}{
				"name":         t.Name(),
				"description":  t.Description(),
				"input_schema": t.Parameters(),
			})
		}
		request["tools"] = decls
	}
	return json.Marshal(request)
}

// processBedrockResponse converts an InvokeModel response body into a
// session.Turn.
func processBedrockResponse(body []byte) (*session.Turn, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	contentArray, ok := response["content"].([]interface{})
	if !ok || len(contentArray) == 0 {
		return nil, errors.Wrapf(errors.ErrNoChoices, "empty Bedrock response")
	}

	var content string
	var calls []session.ToolCall

	for i, item := range contentArray {
		block, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch block["type"] {
		case "text":
			if text, ok := block["text"].(string); ok {
				content += text
			}
		case "tool_use":
			name, _ := block["name"].(string)
			input, _ := block["input"].(map[string]interface{})
			if name == "" {
				continue
			}
			id, _ := block["id"].(string)
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", i, name)
			}
			calls = append(calls, session.ToolCall{ID: id, Name: name, Args: input})
		}
	}

	return &session.Turn{
		Role:      session.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}, nil
}
