package notion

import (
	"context"
	"fmt"
	"net/http"

	"SelfLetter/internal/config"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// Sink creates one page per summary in the destination database.
type Sink struct {
	client     *Client
	databaseID string
	props      config.DestProperties
}

var _ ports.SummarySink = (*Sink)(nil)

// NewSink wires the destination database and its property names.
func NewSink(client *Client, databaseID string, props config.DestProperties) *Sink {
	return &Sink{client: client, databaseID: databaseID, props: props}
}

// Save creates the summary page.
func (s *Sink) Save(ctx context.Context, result domain.SummaryResult) error {
	props := map[string]any{}
	if s.props.Title != "" {
		props[s.props.Title] = map[string]any{
			"title": []richText{{Type: "text", Text: &textContent{Content: result.Title}}},
		}
	}
	if s.props.URL != "" && result.SourceURL != "" {
		props[s.props.URL] = map[string]string{"url": result.SourceURL}
	}
	if s.props.Type != "" {
		props[s.props.Type] = map[string]any{"select": map[string]string{"name": string(result.SourceKind)}}
	}
	if s.props.Summary != "" {
		props[s.props.Summary] = map[string]any{"rich_text": richTextChunks(result.SummaryText)}
	}
	if s.props.Date != "" && !result.GeneratedAt.IsZero() {
		props[s.props.Date] = map[string]any{"date": map[string]string{"start": result.GeneratedAt.Format("2006-01-02")}}
	}

	body := map[string]any{
		"parent":     map[string]string{"database_id": s.databaseID},
		"properties": props,
	}
	if err := s.client.do(ctx, http.MethodPost, "/v1/pages", body, nil); err != nil {
		return fmt.Errorf("create summary page: %w", err)
	}
	return nil
}
