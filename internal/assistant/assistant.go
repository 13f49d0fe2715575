package assistant

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/craftora/marketplace/internal/logging"
	"github.com/craftora/marketplace/internal/models"
)

const fallbackReply = "I'm sorry, I'm having trouble answering right now. Please try again later."

// Client chats about the catalog through an OpenAI-compatible LLM endpoint.
type Client struct {
	api   *openai.Client
	model string
}

func New(apiKey, baseURL, model string) *Client {
	if apiKey == "" {
		return &Client{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Chat grounds the model on a compact catalog snapshot. API failures degrade
// to a polite canned reply instead of erroring the request.
func (c *Client) Chat(ctx context.Context, userMessage string, catalog []models.Product) string {
	if c == nil || c.api == nil {
		return fallbackReply
	}

	var sb strings.Builder
	for _, p := range catalog {
		stock := "In Stock"
		if p.Stock == 0 {
			stock = "Out of Stock"
		}
		fmt.Fprintf(&sb, "- %s (%s): $%.2f - %s\n", p.Title, p.Category, p.Price, stock)
	}

	system := fmt.Sprintf(`You are a helpful and friendly shopping assistant for the Craftora furniture marketplace.

Here is the current product catalog:
%s
Help customers find products, answer questions about prices and availability, and recommend items.
- Be concise and polite.
- If asked about a product not in the list, say you don't have it.
- Do not invent products.`, sb.String())

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		logging.FromContext(ctx).Error("assistant request failed", "error", err)
		return fallbackReply
	}
	return resp.Choices[0].Message.Content
}
