// Package llmdemo provides a conversational reply generator over
// Volcengine's Ark Responses API for the example talk_session handler in
// cmd/stackchandoll, which selects it via `-llm-provider=ark` as an
// alternative to the Gemini backend wired directly in its main.go.
package llmdemo

import (
	"context"
	"fmt"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model/responses"
)

// ArkChat wraps an Ark Responses API client scoped to one model.
type ArkChat struct {
	client *arkruntime.Client
	model  string
}

// NewArkChat builds a chat client from an Ark API key and model id.
func NewArkChat(apiKey, model string) *ArkChat {
	return &ArkChat{
		client: arkruntime.NewClientWithApiKey(apiKey),
		model:  model,
	}
}

// Reply asks the model for a short conversational reply to utterance. The
// prompt is deliberately minimal; system-level persona text is the
// caller's concern.
func (c *ArkChat) Reply(ctx context.Context, utterance string) (string, error) {
	req := &responses.ResponsesRequest{
		Model: c.model,
		Input: &responses.ResponsesInput{
			Union: &responses.ResponsesInput_ListValue{
				ListValue: &responses.InputItemList{ListValue: []*responses.InputItem{{
					Union: &responses.InputItem_InputMessage{
						InputMessage: &responses.ItemInputMessage{
							Role: responses.MessageRole_user,
							Content: []*responses.ContentItem{
								{
									Union: &responses.ContentItem_Text{
										Text: &responses.ContentItemText{
											Type: responses.ContentItemType_input_text,
											Text: utterance,
										},
									},
								},
							},
						},
					},
				}}},
			},
		},
	}

	resp, err := c.client.CreateResponses(ctx, req, arkruntime.WithProjectName("stackchan-talk-session"))
	if err != nil {
		return "", fmt.Errorf("ark API error: %w", err)
	}
	if len(resp.Output) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	for _, item := range resp.Output {
		msg := item.GetOutputMessage()
		if msg == nil || len(msg.Content) == 0 {
			continue
		}
		if text := msg.Content[0].GetText(); text != nil {
			return text.Text, nil
		}
	}
	return "", fmt.Errorf("no text content found in model response")
}
