package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeDispatch は1回のファンアウト配信を表す。
	AggregateTypeDispatch AggregateType = "Dispatch"
	// AggregateTypeDeliveryToken はプッシュ配信トークンを表す。
	AggregateTypeDeliveryToken AggregateType = "DeliveryToken"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypePushDispatched はファンアウト配信が完了したことを表す。
	TypePushDispatched Type = "PushDispatched"
	// TypeDeliveryTokenInvalidated はプロバイダがトークンを恒久的に無効と判定したことを表す。
	// トークンを管理するサービスはこのイベントを受けてトークンを削除する。
	TypeDeliveryTokenInvalidated Type = "DeliveryTokenInvalidated"
)

// Event はEvent Storeに永続化される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// PushDispatchedData はPushDispatchedイベントのデータ。
type PushDispatchedData struct {
	// Kind は配信の種類（task_added, single, multicast）。
	Kind string `json:"kind"`
	// ProjectID はタスク追加通知の場合の対象プロジェクト。
	ProjectID string `json:"project_id,omitempty"`
	// SuccessCount は成功した配信数。
	SuccessCount int `json:"success_count"`
	// FailureCount は失敗した配信数。
	FailureCount int `json:"failure_count"`
	// TotalAttempted は配信を試みた件数。
	TotalAttempted int `json:"total_attempted"`
	// Partial は期限切れで途中までしか配信できなかったかどうか。
	Partial bool `json:"partial,omitempty"`
}

// DeliveryTokenInvalidatedData はDeliveryTokenInvalidatedイベントのデータ。
type DeliveryTokenInvalidatedData struct {
	// DispatchID は無効判定が出た配信のID。
	DispatchID string `json:"dispatch_id"`
	// Reason はプロバイダが返したエラーメッセージ。
	Reason string `json:"reason"`
}
