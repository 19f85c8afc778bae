package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/frame"
)

type fakeChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (c *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.req = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.content}}},
	}, nil
}

func TestParseFragments_CodeFenceAndClipping(t *testing.T) {
	content := "```json\n" + `{"fragments": [
		{"text": "Sign In", "confidence": 92, "x": 10, "y": 20, "w": 60, "h": 14},
		{"text": "Footer", "confidence": 80, "x": 90, "y": 95, "w": 40, "h": 20},
		{"text": "Offscreen", "confidence": 99, "x": 500, "y": 500, "w": 10, "h": 10},
		{"text": "Ratio", "confidence": 0.7, "x": 0, "y": 0, "w": 5, "h": 5}
	]}` + "\n```"

	fragments, err := parseFragments(content, frame.Resolution{Width: 100, Height: 100})
	require.NoError(t, err)
	require.Len(t, fragments, 3)

	assert.Equal(t, "Sign In", fragments[0].Text)
	assert.Equal(t, image.Rect(10, 20, 70, 34), fragments[0].Box)
	assert.Equal(t, image.Rect(90, 95, 100, 100), fragments[1].Box)
	assert.InDelta(t, 70.0, fragments[2].Confidence, 1e-9)
}

func TestParseFragments_Invalid(t *testing.T) {
	_, err := parseFragments("I could not read the image", frame.Resolution{Width: 10, Height: 10})
	assert.Error(t, err)
}

func TestVisionEngine_Recognize(t *testing.T) {
	chat := &fakeChat{content: `{"fragments": [{"text": "Email", "confidence": 88, "x": 1, "y": 2, "w": 30, "h": 10}]}`}
	engine := NewVisionEngine(chat, "", []string{"eng"})

	fragments, err := engine.Recognize(context.Background(), testFrame())
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "Email", fragments[0].Text)

	assert.Equal(t, openai.GPT4oMini, chat.req.Model)
	require.Len(t, chat.req.Messages, 1)
	parts := chat.req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "100x100")
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
}

func TestVisionEngine_APIError(t *testing.T) {
	engine := NewVisionEngine(&fakeChat{err: errors.New("rate limited")}, "gpt-4o", nil)

	_, err := engine.Recognize(context.Background(), testFrame())
	assert.ErrorContains(t, err, "rate limited")
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(EngineConfig{Kind: EngineNone})
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = NewEngine(EngineConfig{Kind: EngineVision})
	assert.Error(t, err, "vision needs an API key")

	_, err = NewEngine(EngineConfig{Kind: "paddle"})
	assert.Error(t, err)

	e, err = NewEngine(EngineConfig{Kind: EngineVision, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "vision:"+openai.GPT4oMini, e.Name())
}
