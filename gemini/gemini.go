package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"transaction-audit-engine/models"
)

const promptVisibility = `
You are **GEPP Audit Visibility Gate**, a vision-enabled expert deciding whether the waste contents of a collection photo can be assessed at all.

A photo of an open bag, an open bin, or loose material is "clear". A closed opaque bag, a closed container, a photo of packaging only, or an image where the contents cannot be seen is "opaque". A corrupt, dark, blurred or unrelated image is "unknown". Never guess "clear" when in doubt.

Output a single, valid JSON object and nothing else:
{
  "visibility": "<clear | opaque | unknown>",
  "reason":     "<one short sentence explaining the call>"
}
`

const promptClassify = `
You are **GEPP Audit Content Classifier**, a vision-enabled expert that inspects a waste-collection photo whose contents are visible.

Determine the dominant material category (general, organic, recyclable, hazardous), estimate the contamination percentage (how much of the load by volume is foreign material, 0-100), list the foreign materials you can identify, and flag any visible hazardous item (chemicals, batteries, medical waste, e-waste) even in trace amounts.

Output a single, valid JSON object and nothing else:
{
  "main_content":        "<general | organic | recyclable | hazardous>",
  "contamination_pct":   <0-100>,
  "contamination_items": ["<descriptor 1>", "<descriptor 2>"],
  "haz_detected":        <true | false>
}
`

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type geminiRequest struct {
	Contents []content `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client represents a Gemini API client
type Client struct {
	apiKey string
	model  string
	http   *http.Client
}

// NewClient creates a new Gemini client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{},
	}
}

// SourceName identifies this provider in debug trails
func (c *Client) SourceName() string {
	return "Gemini"
}

// CheckVisibility asks the vision model whether the image contents are assessable.
func (c *Client) CheckVisibility(ctx context.Context, imageRef string) (string, error) {
	parts := []part{
		{Text: promptVisibility},
		{FileData: &fileData{MimeType: "image/jpeg", FileURI: imageRef}},
	}
	return c.generateContent(ctx, geminiRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
}

// ClassifyContents asks the vision model what the image contains.
func (c *Client) ClassifyContents(ctx context.Context, imageRef string, claimed models.Category) (string, error) {
	hint := fmt.Sprintf("The submitter claimed this load is %q waste. Do not let the claim bias your reading; report what is actually visible.", claimed.String())
	parts := []part{
		{Text: promptClassify},
		{Text: hint},
		{FileData: &fileData{MimeType: "image/jpeg", FileURI: imageRef}},
	}
	return c.generateContent(ctx, geminiRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
}

func (c *Client) generateContent(ctx context.Context, body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequestWithContext(ctx, "POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}
