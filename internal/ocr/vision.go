package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dreamup/ui-locator/internal/frame"
)

// ChatClient is the subset of the OpenAI client the vision engine needs
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// VisionEngine uses a vision-capable chat model as an OCR engine
type VisionEngine struct {
	client    ChatClient
	model     string
	languages []string
}

// NewVisionEngine creates a vision OCR engine. An empty model selects GPT-4o mini.
func NewVisionEngine(client ChatClient, model string, languages []string) *VisionEngine {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &VisionEngine{
		client:    client,
		model:     model,
		languages: languages,
	}
}

// NewOpenAIVisionEngine creates a vision engine backed by the OpenAI API
func NewOpenAIVisionEngine(apiKey, model string, languages []string) (*VisionEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	return NewVisionEngine(openai.NewClient(apiKey), model, languages), nil
}

// Name identifies the engine in logs
func (v *VisionEngine) Name() string {
	return "vision:" + v.model
}

func (v *VisionEngine) prompt(res frame.Resolution) string {
	langs := "any language"
	if len(v.languages) > 0 {
		langs = strings.Join(v.languages, ", ")
	}
	return fmt.Sprintf(`You are an OCR engine. Read every visible piece of text in this screenshot (%s).

The screenshot resolution is %dx%d pixels with origin (0,0) at the TOP-LEFT corner.
X increases going RIGHT, Y increases going DOWN.

Return one fragment per word group as it appears on screen (a button label, a field label,
a link, a heading line). For each fragment give the EXACT pixel bounding box.

Return ONLY a JSON object with this exact format:
{
  "fragments": [
    {"text": "Sign In", "confidence": 0-100, "x": left, "y": top, "w": width, "h": height}
  ]
}

List fragments in reading order: top to bottom, then left to right.`, langs, res.Width, res.Height)
}

// Recognize sends the frame to the model and parses the fragment list
func (v *VisionEngine) Recognize(ctx context.Context, f *frame.Frame) ([]Fragment, error) {
	data, err := f.PNG()
	if err != nil {
		return nil, err
	}
	imageBase64 := base64.StdEncoding.EncodeToString(data)

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: v.prompt(f.Resolution()),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:image/png;base64,%s", imageBase64),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		MaxTokens:   2000,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	return parseFragments(resp.Choices[0].Message.Content, f.Resolution())
}

// parseFragments decodes the model's JSON, tolerating markdown code fences.
// Boxes are clipped to the frame; boxes entirely outside it are dropped.
func parseFragments(content string, res frame.Resolution) ([]Fragment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result struct {
		Fragments []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
			X          int     `json:"x"`
			Y          int     `json:"y"`
			W          int     `json:"w"`
			H          int     `json:"h"`
		} `json:"fragments"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse vision response: %w (content: %s)", err, content)
	}

	bounds := image.Rect(0, 0, res.Width, res.Height)
	fragments := make([]Fragment, 0, len(result.Fragments))
	for _, fr := range result.Fragments {
		box := image.Rect(fr.X, fr.Y, fr.X+fr.W, fr.Y+fr.H).Intersect(bounds)
		if box.Empty() {
			continue
		}
		conf := fr.Confidence
		// some models answer on a 0-1 scale despite the prompt
		if conf > 0 && conf <= 1 {
			conf *= 100
		}
		fragments = append(fragments, Fragment{
			Text:       fr.Text,
			Confidence: conf,
			Box:        box,
		})
	}
	return fragments, nil
}
