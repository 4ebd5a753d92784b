package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/pushfanout/internal/push"
)

// newTestProvider はテスト用のプロバイダサーバーとクライアントを生成する。
func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTP {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	p, err := New(Config{BaseURL: ts.URL + "/", ServerKey: "test-key"})
	if err != nil {
		t.Fatalf("New()でエラーが発生: %v", err)
	}
	return p
}

// TestNew はクライアント生成時の設定検証を確認する。
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ベースURLが未設定の場合はエラー", cfg: Config{ServerKey: "k"}, wantErr: true},
		{name: "サーバーキーが未設定の場合はエラー", cfg: Config{BaseURL: "http://x"}, wantErr: true},
		{name: "両方設定されていれば成功", cfg: Config{BaseURL: "http://x", ServerKey: "k"}, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg)
			if tt.wantErr && !errors.Is(err, ErrProviderConfig) {
				t.Errorf("エラー: got %v, want ErrProviderConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("エラー: got %v, want nil", err)
			}
		})
	}
}

// TestSendOne は個別送信を検証する。
func TestSendOne(t *testing.T) {
	t.Parallel()

	t.Run("送信に成功するとメッセージ名が返る", func(t *testing.T) {
		t.Parallel()
		var gotAuth, gotPath string
		var gotReq sendRequest
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(sendResponse{Name: "messages/1"})
		})

		id, err := p.SendOne(t.Context(), push.Payload{Token: "tok", Title: "t", Data: map[string]string{"k": "v"}})
		if err != nil {
			t.Fatalf("SendOne()でエラーが発生: %v", err)
		}
		if id != "messages/1" {
			t.Errorf("id: got %s, want messages/1", id)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("Authorization: got %q", gotAuth)
		}
		if gotPath != sendPath {
			t.Errorf("path: got %s, want %s", gotPath, sendPath)
		}
		if gotReq.Message.Token != "tok" || gotReq.Message.Data["k"] != "v" {
			t.Errorf("message: got %+v", gotReq.Message)
		}
	})

	tests := []struct {
		name   string
		status int
		body   string
		want   push.ErrorCode
	}{
		{name: "410はトークン無効", status: http.StatusGone, body: `{}`, want: push.CodeInvalidToken},
		{name: "404はトークン無効", status: http.StatusNotFound, body: ``, want: push.CodeInvalidToken},
		{name: "400でUNREGISTEREDはトークン無効", status: http.StatusBadRequest, body: `{"error":{"code":"UNREGISTERED","message":"gone"}}`, want: push.CodeInvalidToken},
		{name: "400でコード不明は不明なエラー", status: http.StatusBadRequest, body: `{"error":{"code":"WHAT","message":"?"}}`, want: push.CodeUnknown},
		{name: "401は認証エラー", status: http.StatusUnauthorized, body: ``, want: push.CodeAuth},
		{name: "429はレート制限", status: http.StatusTooManyRequests, body: ``, want: push.CodeQuotaExceeded},
		{name: "503は到達不能", status: http.StatusServiceUnavailable, body: ``, want: push.CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := p.SendOne(t.Context(), push.Payload{Token: "tok"})
			var perr *push.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("ProviderErrorが返るべき: got %v", err)
			}
			if perr.Code != tt.want {
				t.Errorf("Code: got %s, want %s", perr.Code, tt.want)
			}
		})
	}

	t.Run("接続できない場合は到達不能", func(t *testing.T) {
		t.Parallel()
		p, err := New(Config{BaseURL: "http://127.0.0.1:1", ServerKey: "k"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		_, err = p.SendOne(t.Context(), push.Payload{Token: "tok"})
		var perr *push.ProviderError
		if !errors.As(err, &perr) || perr.Code != push.CodeUnavailable {
			t.Errorf("エラー: got %v, want unavailable", err)
		}
	})
}

// TestSendBulk は一括送信を検証する。
func TestSendBulk(t *testing.T) {
	t.Parallel()

	t.Run("結果が入力順に正規化される", func(t *testing.T) {
		t.Parallel()
		var gotCount int
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != sendEachPath {
				t.Errorf("path: got %s, want %s", r.URL.Path, sendEachPath)
			}
			var req sendEachRequest
			json.NewDecoder(r.Body).Decode(&req)
			gotCount = len(req.Messages)
			fmt.Fprint(w, `{"responses":[
				{"success":true,"message_id":"m0"},
				{"success":false,"error":{"code":"UNREGISTERED","message":"gone"}},
				{"success":false,"error":{"code":"QUOTA_EXCEEDED","message":"slow down"}},
				{"success":false}
			]}`)
		})

		results, err := p.SendBulk(t.Context(), []push.Payload{{Token: "a"}, {Token: "b"}, {Token: "c"}, {Token: "d"}})
		if err != nil {
			t.Fatalf("SendBulk()でエラーが発生: %v", err)
		}
		if gotCount != 4 {
			t.Errorf("送信件数: got %d, want 4", gotCount)
		}
		if len(results) != 4 {
			t.Fatalf("結果件数: got %d, want 4", len(results))
		}
		if results[0].Err != nil || results[0].MessageID != "m0" {
			t.Errorf("results[0]: got %+v", results[0])
		}
		if results[1].Err == nil || results[1].Err.Code != push.CodeInvalidToken {
			t.Errorf("results[1]: got %+v", results[1])
		}
		if results[2].Err == nil || results[2].Err.Code != push.CodeQuotaExceeded {
			t.Errorf("results[2]: got %+v", results[2])
		}
		if results[3].Err == nil || results[3].Err.Code != push.CodeUnknown {
			t.Errorf("results[3]: got %+v", results[3])
		}
	})

	t.Run("一括送信API自体の失敗はエラーとして返る", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := p.SendBulk(t.Context(), []push.Payload{{Token: "a"}})
		var perr *push.ProviderError
		if !errors.As(err, &perr) || perr.Code != push.CodeUnavailable {
			t.Errorf("エラー: got %v, want unavailable", err)
		}
	})

	t.Run("上限を超える件数は送信しない", func(t *testing.T) {
		t.Parallel()
		called := false
		p := newTestProvider(t, func(http.ResponseWriter, *http.Request) { called = true })

		_, err := p.SendBulk(t.Context(), make([]push.Payload, push.MaxBulkSize+1))
		if err == nil {
			t.Error("上限超過でエラーが返るべき")
		}
		if called {
			t.Error("上限超過なのにAPIが呼ばれた")
		}
	})
}
