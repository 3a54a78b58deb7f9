package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client implements VisionEngine against the Generative Language API.
type Client struct {
	client    *genai.Client
	modelName string
}

// NewClient creates a Gemini-backed vision engine. Credentials come from the
// GEMINI_API_KEY environment variable unless an explicit key is given.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	const op = "NewClient"

	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, WrapGeminiError(op, ErrMissingAPIKey, "")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, WrapGeminiError(op, err, "failed to create genai client")
	}

	return &Client{client: client, modelName: modelName}, nil
}

// Name implements VisionEngine.
func (c *Client) Name() string { return "gemini" }

// Generate implements VisionEngine: one prompt-plus-image request with the
// given output-token ceiling.
func (c *Client) Generate(ctx context.Context, prompt string, imageJPEG []byte, maxOutputTokens int32) (Response, error) {
	const op = "Generate"

	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(DefaultTemperature)
	model.SetTopP(DefaultTopP)
	model.SetTopK(DefaultTopK)
	model.SetMaxOutputTokens(maxOutputTokens)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData("jpeg", imageJPEG),
	)
	if err != nil {
		return nil, WrapGeminiError(op, err, fmt.Sprintf("model %s", c.modelName))
	}

	return &genaiResponse{resp: resp}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// genaiResponse adapts *genai.GenerateContentResponse to the Response
// contract.
type genaiResponse struct {
	resp *genai.GenerateContentResponse
}

// Text is the direct accessor: it succeeds only when the first candidate's
// content is a plain text part.
func (r *genaiResponse) Text() (string, error) {
	cand := r.candidate()
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text, ok := cand.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("first part is %T, not text", cand.Content.Parts[0])
	}
	return string(text), nil
}

// Parts walks the structured candidate content and collects every text part.
func (r *genaiResponse) Parts() []string {
	cand := r.candidate()
	if cand == nil || cand.Content == nil {
		return nil
	}
	var parts []string
	for _, p := range cand.Content.Parts {
		if text, ok := p.(genai.Text); ok && text != "" {
			parts = append(parts, string(text))
		}
	}
	return parts
}

// FinishReason maps the API's termination state onto the adapter's enum.
func (r *genaiResponse) FinishReason() FinishReason {
	cand := r.candidate()
	if cand == nil {
		// No candidates at all usually means the prompt was blocked.
		if r.resp != nil && r.resp.PromptFeedback != nil &&
			r.resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return FinishSafety
		}
		return FinishOther
	}
	switch cand.FinishReason {
	case genai.FinishReasonStop:
		return FinishComplete
	case genai.FinishReasonMaxTokens:
		return FinishMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return FinishSafety
	default:
		return FinishOther
	}
}

func (r *genaiResponse) candidate() *genai.Candidate {
	if r.resp == nil || len(r.resp.Candidates) == 0 {
		return nil
	}
	return r.resp.Candidates[0]
}

// ModelName reports the configured model, trimmed of any "models/" prefix.
func (c *Client) ModelName() string {
	return strings.TrimPrefix(c.modelName, "models/")
}
