// Package gpt drafts suggested expert replies.
package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"atsboost/internal/models"
)

const systemPrompt = "You assist a resume optimization expert. Draft a short, friendly reply " +
	"the expert could send to the client. Do not invent scores or guarantees."

// maxHistory bounds how much of the thread is sent for context.
const maxHistory = 12

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// DraftReply suggests the expert's next message for the given thread.
func (c *Client) DraftReply(ctx context.Context, thread []models.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(thread),
		MaxTokens:   400,
		Temperature: 0.5,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("draft reply: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from GPT API")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(thread []models.Message) []openai.ChatCompletionMessage {
	if len(thread) > maxHistory {
		thread = thread[len(thread)-maxHistory:]
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(thread)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range thread {
		role := openai.ChatMessageRoleUser
		if m.IsExpert {
			role = openai.ChatMessageRoleAssistant
		}
		content := m.Content
		if m.AttachmentURL != "" {
			content += " (attachment: " + m.AttachmentURL + ")"
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	return msgs
}
