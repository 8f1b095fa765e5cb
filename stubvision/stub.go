package stubvision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"transaction-audit-engine/models"
)

// Client is a deterministic, no-network vision stub intended for CI and local
// end-to-end tests. It interprets synthetic image references produced by the
// mock evidence generator so the full pipeline (gating, classification,
// decision, persistence) runs without a provider.
//
// Reference grammar:
//
//	mock://<visibility>/<category>?pct=<0-100>&haz=<0|1>&items=<a,b,c>
//	mock://error/...   always fails (exercises the retry/degrade path)
//
// Any reference outside the mock:// scheme reads as an unknown source.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

func (c *Client) CheckVisibility(ctx context.Context, imageRef string) (string, error) {
	u, err := url.Parse(imageRef)
	if err != nil || u.Scheme != "mock" {
		return marshal(map[string]any{
			"visibility": "unknown",
			"reason":     "image comes from an unrecognized source",
		})
	}

	switch u.Host {
	case "error":
		return "", fmt.Errorf("stub provider failure for %s", imageRef)
	case "clear":
		return marshal(map[string]any{
			"visibility": "clear",
			"reason":     "contents fully visible",
		})
	case "opaque":
		return marshal(map[string]any{
			"visibility": "opaque",
			"reason":     "closed opaque bag, contents not assessable",
		})
	default:
		return marshal(map[string]any{
			"visibility": "unknown",
			"reason":     "image unreadable",
		})
	}
}

func (c *Client) ClassifyContents(ctx context.Context, imageRef string, claimed models.Category) (string, error) {
	u, err := url.Parse(imageRef)
	if err != nil || u.Scheme != "mock" {
		return "", fmt.Errorf("stub cannot classify non-mock reference %q", imageRef)
	}
	if u.Host == "error" {
		return "", fmt.Errorf("stub provider failure for %s", imageRef)
	}

	category := strings.Trim(u.Path, "/")
	if category == "" {
		category = claimed.String()
	}

	q := u.Query()
	pct := 0.0
	if v := q.Get("pct"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			pct = f
		}
	}
	haz := q.Get("haz") == "1"
	items := []string{}
	if v := q.Get("items"); v != "" {
		items = strings.Split(v, ",")
	}

	return marshal(map[string]any{
		"main_content":        category,
		"contamination_pct":   pct,
		"contamination_items": items,
		"haz_detected":        haz,
	})
}

func marshal(out map[string]any) (string, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
