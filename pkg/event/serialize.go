package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New はdataをJSONにしたイベントを生成する。IDはUUID、作成日時はUTC。
func New(aggregateID string, aggregateType AggregateType, eventType Type, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%sイベントのデータをシリアライズできません: %w", eventType, err)
	}
	return &Event{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewPushDispatched は配信1回分の集計を記録するイベントを生成する。
func NewPushDispatched(dispatchID string, data PushDispatchedData) (*Event, error) {
	return New(dispatchID, AggregateTypeDispatch, TypePushDispatched, data)
}

// NewDeliveryTokenInvalidated は無効と判定されたトークンを記録するイベントを生成する。
func NewDeliveryTokenInvalidated(token, dispatchID, reason string) (*Event, error) {
	return New(token, AggregateTypeDeliveryToken, TypeDeliveryTokenInvalidated, DeliveryTokenInvalidatedData{
		DispatchID: dispatchID,
		Reason:     reason,
	})
}

// DecodeData はイベントのデータをTとして読み出す。
func DecodeData[T any](e *Event) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(e.Data, v); err != nil {
		return nil, fmt.Errorf("%sイベントのデータを読み出せません: %w", e.EventType, err)
	}
	return v, nil
}
