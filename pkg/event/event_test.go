package event

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/pushfanout/pkg/httpclient"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("PushDispatchedDataでイベントを生成できること", func(t *testing.T) {
		t.Parallel()

		before := time.Now().UTC()
		ev, err := NewPushDispatched("dispatch-1", PushDispatchedData{
			Kind:           "task_added",
			ProjectID:      "p1",
			SuccessCount:   2,
			FailureCount:   1,
			TotalAttempted: 3,
		})
		after := time.Now().UTC()
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.AggregateID != "dispatch-1" || ev.AggregateType != AggregateTypeDispatch || ev.EventType != TypePushDispatched {
			t.Errorf("イベント = %+v", ev)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		data, err := DecodeData[PushDispatchedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if data.Kind != "task_added" || data.TotalAttempted != 3 {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("シリアライズできないデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("x", AggregateTypeDispatch, TypePushDispatched, make(chan int)); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("IDはイベントごとに異なること", func(t *testing.T) {
		t.Parallel()

		a, _ := New("x", AggregateTypeDispatch, TypePushDispatched, nil)
		b, _ := New("x", AggregateTypeDispatch, TypePushDispatched, nil)
		if a.ID == b.ID {
			t.Errorf("IDが重複: %s", a.ID)
		}
	})
}

// TestDecodeData は不正なデータのデシリアライズを検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	ev := &Event{Data: json.RawMessage(`{invalid`)}
	if _, err := DecodeData[DeliveryTokenInvalidatedData](ev); err == nil {
		t.Fatal("DecodeData()がエラーを返すべきだが、nilが返った")
	}
}

// TestPublish はEvent Storeへの送信を検証する。
func TestPublish(t *testing.T) {
	t.Parallel()

	t.Run("追記リクエストが送信されること", func(t *testing.T) {
		t.Parallel()

		var got appendRequest
		var path string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		ev, err := NewDeliveryTokenInvalidated("tok-1", "d1", "unregistered")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		if err := NewPublisher(httpclient.New(ts.URL)).Publish(t.Context(), ev); err != nil {
			t.Fatalf("Publish()でエラーが発生: %v", err)
		}
		if path != "/api/v1/events" {
			t.Errorf("path = %q, want /api/v1/events", path)
		}
		if got.AggregateID != "tok-1" || got.EventType != string(TypeDeliveryTokenInvalidated) || got.AggregateType != "DeliveryToken" {
			t.Errorf("request = %+v", got)
		}
	})

	t.Run("Event Storeがエラーを返した場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		ev, _ := New("x", AggregateTypeDispatch, TypePushDispatched, PushDispatchedData{})
		if err := NewPublisher(httpclient.New(ts.URL)).Publish(t.Context(), ev); err == nil {
			t.Fatal("Publish()がエラーを返すべきだが、nilが返った")
		}
	})
}
