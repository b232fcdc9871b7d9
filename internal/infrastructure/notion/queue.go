package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"SelfLetter/internal/config"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// Queue reads pending links from the inbox database and writes their state
// back into the configured properties.
type Queue struct {
	client     *Client
	databaseID string
	props      config.SourceProperties
}

var _ ports.InboxQueue = (*Queue)(nil)

// NewQueue wires the inbox database and its property names.
func NewQueue(client *Client, databaseID string, props config.SourceProperties) *Queue {
	return &Queue{client: client, databaseID: databaseID, props: props}
}

type queryRequest struct {
	Filter      map[string]any `json:"filter"`
	PageSize    int            `json:"page_size"`
	StartCursor string         `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Pending returns up to limit pages whose done checkbox is unset, following
// pagination cursors.
func (q *Queue) Pending(ctx context.Context, limit int) ([]domain.InboxItem, error) {
	var (
		items  []domain.InboxItem
		cursor string
	)
	path := "/v1/databases/" + url.PathEscape(q.databaseID) + "/query"

	for {
		size := maxPageSize
		if limit > 0 && limit-len(items) < size {
			size = limit - len(items)
		}

		var resp queryResponse
		err := q.client.do(ctx, http.MethodPost, path, queryRequest{
			Filter: map[string]any{
				"property": q.props.Done,
				"checkbox": map[string]bool{"equals": false},
			},
			PageSize:    size,
			StartCursor: cursor,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("query inbox: %w", err)
		}

		for _, p := range resp.Results {
			items = append(items, q.decode(p))
		}
		q.client.debug("notion inbox page", "results", len(resp.Results), "has_more", resp.HasMore)

		if !resp.HasMore || resp.NextCursor == "" || (limit > 0 && len(items) >= limit) {
			break
		}
		cursor = resp.NextCursor
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (q *Queue) decode(p page) domain.InboxItem {
	item := domain.InboxItem{ID: p.ID}

	if prop, ok := p.Properties[q.props.URL]; ok {
		switch {
		case prop.URL != nil:
			item.URL = *prop.URL
		case len(prop.RichText) > 0:
			item.URL = plainText(prop.RichText)
		}
	}
	if q.props.Title != "" {
		if prop, ok := p.Properties[q.props.Title]; ok {
			switch {
			case len(prop.Title) > 0:
				item.Title = plainText(prop.Title)
			case len(prop.RichText) > 0:
				item.Title = plainText(prop.RichText)
			}
		}
	}
	if prop, ok := p.Properties[q.props.Done]; ok && prop.Checkbox != nil {
		item.Processed = *prop.Checkbox
	}
	if q.props.Retry != "" {
		if prop, ok := p.Properties[q.props.Retry]; ok && prop.Number != nil {
			item.RetryCount = int(*prop.Number)
		}
	}
	if q.props.Error != "" {
		if prop, ok := p.Properties[q.props.Error]; ok {
			item.LastError = plainText(prop.RichText)
		}
	}
	return item
}

// Update writes the item state. When the database lacks the optional error or
// retry properties the write is repeated with the done checkbox only.
func (q *Queue) Update(ctx context.Context, id string, update domain.ItemUpdate) error {
	props := map[string]any{
		q.props.Done: map[string]bool{"checkbox": update.Processed},
	}
	optional := false
	if q.props.Error != "" {
		props[q.props.Error] = map[string]any{"rich_text": richTextChunks(update.LastError)}
		optional = true
	}
	if q.props.Retry != "" {
		props[q.props.Retry] = map[string]int{"number": update.RetryCount}
		optional = true
	}

	path := "/v1/pages/" + url.PathEscape(id)
	err := q.client.do(ctx, http.MethodPatch, path, map[string]any{"properties": props}, nil)

	var apiErr *APIError
	if err != nil && optional && errors.As(err, &apiErr) && apiErr.missingProperty() {
		q.client.warn("optional inbox property missing, writing done flag only", "page", id, "error", apiErr.Message)
		err = q.client.do(ctx, http.MethodPatch, path, map[string]any{
			"properties": map[string]any{
				q.props.Done: map[string]bool{"checkbox": update.Processed},
			},
		}, nil)
	}
	if err != nil {
		return fmt.Errorf("update page %s: %w", id, err)
	}
	return nil
}
