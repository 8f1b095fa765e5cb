package vision

import (
	"context"

	"transaction-audit-engine/models"
)

// Client abstracts a vision provider used by the audit engine.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// CheckVisibility asks whether the waste contents of the referenced image
	// are visibly assessable, and returns a single JSON string per the
	// visibility schema.
	CheckVisibility(ctx context.Context, imageRef string) (string, error)
	// ClassifyContents determines the dominant material category visible in
	// the referenced image, given the category the submitter claimed, and
	// returns a single JSON string per the classify schema. Only called for
	// images the visibility gate reported clear.
	ClassifyContents(ctx context.Context, imageRef string, claimed models.Category) (string, error)
	// SourceName returns a short provider label kept in the debug trail
	// (e.g., "ChatGPT", "Gemini").
	SourceName() string
}
