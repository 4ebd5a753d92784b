package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nao1215/pushfanout/pkg/httpclient"
)

// appendRequest はEvent Storeへのイベント追記リクエストのJSON構造。
type appendRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// Publisher はEvent Storeにイベントを追記する。
type Publisher struct {
	client *httpclient.Client
}

// NewPublisher は新しいPublisherを生成する。
func NewPublisher(client *httpclient.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish はイベントをEvent Storeの /api/v1/events に追記する。
func (p *Publisher) Publish(ctx context.Context, e *Event) error {
	req := appendRequest{
		AggregateID:   e.AggregateID,
		AggregateType: string(e.AggregateType),
		EventType:     string(e.EventType),
		Data:          e.Data,
	}
	if err := p.client.PostJSON(ctx, "/api/v1/events", req, nil); err != nil {
		return fmt.Errorf("イベント %s の送信に失敗: %w", e.EventType, err)
	}
	return nil
}
