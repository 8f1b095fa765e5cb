package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"transaction-audit-engine/models"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

const promptVisibility = `
You are **GEPP Audit Visibility Gate**, a vision-enabled expert deciding whether the waste contents of a collection photo can be assessed at all.

########################################
# 1. MISSION
########################################
For every input image you MUST:

Step 1: ========: Decide whether the waste contents are directly visible. A photo of an open bag, an open bin, or loose material is "clear". A closed opaque bag, a closed container, a photo of packaging only, or an image where the contents cannot be seen is "opaque". A corrupt, dark, blurred or unrelated image is "unknown".
Step 2: ========: Output a **single, valid JSON object** and nothing else.

########################################
# 2. OUTPUT SCHEMA
{
  "visibility": "<clear | opaque | unknown>",
  "reason":     "<one short sentence explaining the call>"
}
########################################

# 3. OUTPUT RULES
* JSON only — no wrapping markdown.
* Never guess "clear" when in doubt; prefer "opaque" or "unknown".
`

const promptClassify = `
You are **GEPP Audit Content Classifier**, a vision-enabled expert that inspects a waste-collection photo whose contents are visible.

########################################
# 1. MISSION
########################################
For every input image you MUST:

Step 1: ========: Determine the dominant material category present. Categories: general, organic, recyclable, hazardous.
Step 2: ========: Estimate the contamination percentage: how much of the load, by volume, is foreign material that does not belong to the dominant category (0-100).
Step 3: ========: List the foreign materials you can identify as short descriptors.
Step 4: ========: Flag whether any hazardous material (chemicals, batteries, medical waste, e-waste) is visible anywhere in the load.
Step 5: ========: Output a **single, valid JSON object** and nothing else.

########################################
# 2. OUTPUT SCHEMA
{
  "main_content":        "<general | organic | recyclable | hazardous>",
  "contamination_pct":   <0-100>,
  "contamination_items": ["<descriptor 1>", "<descriptor 2>"],
  "haz_detected":        <true | false>
}
########################################

# 3. OUTPUT RULES
* JSON only — no wrapping markdown.
* contamination_items must be empty when contamination_pct is 0.
* haz_detected refers to any visible hazardous item, even in trace amounts.
`

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client represents an OpenAI API client
type Client struct {
	apiKey string
	model  string
	client *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

// SourceName identifies this provider in debug trails
func (c *Client) SourceName() string {
	return "ChatGPT"
}

// CheckVisibility asks the vision model whether the image contents are assessable.
func (c *Client) CheckVisibility(ctx context.Context, imageRef string) (string, error) {
	return c.complete(ctx, promptVisibility, imageRef, "")
}

// ClassifyContents asks the vision model what the image contains.
func (c *Client) ClassifyContents(ctx context.Context, imageRef string, claimed models.Category) (string, error) {
	hint := fmt.Sprintf("The submitter claimed this load is %q waste. Do not let the claim bias your reading; report what is actually visible.", claimed.String())
	return c.complete(ctx, promptClassify, imageRef, hint)
}

func (c *Client) complete(ctx context.Context, systemPrompt, imageRef, userHint string) (string, error) {
	textPrompt := TextContent{
		Type: "text",
		Text: systemPrompt,
	}

	imagePrompt := ImageContent{
		Type: "image_url",
		ImageURL: ImageURL{
			URL: imageRef,
		},
	}

	userContent := []any{imagePrompt}
	if userHint != "" {
		userContent = append(userContent, TextContent{Type: "text", Text: userHint})
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "system",
				Content: []any{
					textPrompt,
				},
			},
			{
				Role:    "user",
				Content: userContent,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openAIEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// Extract the text content from the response
	content := chatResp.Choices[0].Message.Content
	if contentStr, ok := content.(string); ok {
		return contentStr, nil
	}

	// If content is not a string, try to marshal it back to JSON
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	return string(contentJSON), nil
}
