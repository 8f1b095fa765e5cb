package parser

import (
	"encoding/json"
	"errors"
	"strings"

	"transaction-audit-engine/models"
)

// visibilityPayload is the JSON shape the vision providers return for a
// visibility check.
type visibilityPayload struct {
	Visibility string `json:"visibility"`
	Reason     string `json:"reason"`
}

// classifyPayload is the JSON shape the vision providers return for a
// content classification.
type classifyPayload struct {
	MainContent        string   `json:"main_content"`
	ContaminationPct   float64  `json:"contamination_pct"`
	ContaminationItems []string `json:"contamination_items"`
	HazDetected        bool     `json:"haz_detected"`
}

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks. Providers
// occasionally wrap their output in ``` fences despite being told not to.
func ExtractJSONFromMarkdown(response string) string {
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseVisibility parses a provider response into a VisibilityResult.
// Anything the provider reports that is not literally "clear" or "opaque"
// reads back as unknown; an unparseable response is an error so the caller
// can retry before degrading.
func ParseVisibility(response string) (*models.VisibilityResult, error) {
	jsonContent := ExtractJSONFromMarkdown(strings.TrimSpace(response))

	var payload visibilityPayload
	if err := json.Unmarshal([]byte(jsonContent), &payload); err != nil {
		return nil, errors.New("failed to parse visibility response: " + err.Error())
	}
	if payload.Visibility == "" {
		return nil, errors.New("visibility is required")
	}

	status := models.VisibilityUnknown
	switch strings.ToLower(strings.TrimSpace(payload.Visibility)) {
	case "clear":
		status = models.VisibilityClear
	case "opaque":
		status = models.VisibilityOpaque
	}

	return &models.VisibilityResult{
		Status: status,
		Reason: payload.Reason,
		Raw:    response,
	}, nil
}

// ParseClassify parses a provider response into a ClassifyResult.
func ParseClassify(response string) (*models.ClassifyResult, error) {
	jsonContent := ExtractJSONFromMarkdown(strings.TrimSpace(response))

	var payload classifyPayload
	if err := json.Unmarshal([]byte(jsonContent), &payload); err != nil {
		return nil, errors.New("failed to parse classify response: " + err.Error())
	}
	if payload.MainContent == "" {
		return nil, errors.New("main_content is required")
	}
	if payload.ContaminationPct < 0 || payload.ContaminationPct > 100 {
		return nil, errors.New("contamination_pct must be between 0 and 100")
	}

	return &models.ClassifyResult{
		MainContent:        models.CategoryFromName(strings.ToLower(strings.TrimSpace(payload.MainContent))),
		ContaminationPct:   payload.ContaminationPct,
		ContaminationItems: payload.ContaminationItems,
		HazDetected:        payload.HazDetected,
		Raw:                response,
	}, nil
}
