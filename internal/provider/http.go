// Package provider はプッシュ配信プロバイダのHTTPクライアントを提供する。
//
// プロバイダのエラーはすべてpush.ProviderErrorに正規化して返すため、
// 配信エンジン側で異なる形のエラーを分岐する必要はない。
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/pushfanout/internal/push"
	"github.com/nao1215/pushfanout/pkg/httpclient"
)

// ErrProviderConfig はプロバイダクライアントの設定が不正な場合のエラー。
var ErrProviderConfig = errors.New("invalid push provider configuration")

const (
	// sendPath は個別送信APIのパス。
	sendPath = "/v1/messages:send"
	// sendEachPath は一括送信APIのパス。
	sendEachPath = "/v1/messages:sendEach"
)

// Config はプロバイダクライアントの設定。
type Config struct {
	// BaseURL はプロバイダAPIのベースURL。
	BaseURL string
	// ServerKey はプロバイダのサーバーキー。Bearerトークンとして送信する。
	ServerKey string
	// Timeout は1リクエストあたりのタイムアウト。0の場合は既定値を使う。
	Timeout time.Duration
}

// HTTP はJSON over HTTPでプロバイダに送信するpush.Providerの実装。
// 並行呼び出しに対して安全。
type HTTP struct {
	client *httpclient.Client
}

var _ push.Provider = (*HTTP)(nil)

// New は新しいプロバイダクライアントを生成する。
// ベースURLかサーバーキーが未設定の場合はErrProviderConfigを返す。
func New(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: ベースURLが未設定です", ErrProviderConfig)
	}
	if cfg.ServerKey == "" {
		return nil, fmt.Errorf("%w: サーバーキーが未設定です", ErrProviderConfig)
	}

	opts := []httpclient.Option{httpclient.WithBearerToken(cfg.ServerKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Timeout))
	}
	return &HTTP{
		client: httpclient.New(strings.TrimRight(cfg.BaseURL, "/"), opts...),
	}, nil
}

// sendRequest は個別送信APIのリクエストボディ。
type sendRequest struct {
	Message push.Payload `json:"message"`
}

// sendResponse は個別送信APIのレスポンスボディ。
type sendResponse struct {
	// Name はプロバイダが払い出したメッセージ名（例: "messages/0:1500415314455276%31bd1c9631bd1c96"）。
	Name string `json:"name"`
}

// sendEachRequest は一括送信APIのリクエストボディ。
type sendEachRequest struct {
	Messages []push.Payload `json:"messages"`
}

// sendEachResponse は一括送信APIのレスポンスボディ。
type sendEachResponse struct {
	Responses []sendEachResult `json:"responses"`
}

// sendEachResult は一括送信の1件分の結果。
type sendEachResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

// apiError はプロバイダのエラー表現。
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorEnvelope は2xx以外の応答ボディ。
type errorEnvelope struct {
	Error apiError `json:"error"`
}

// SendOne は1件を送信し、メッセージIDを返す。
func (h *HTTP) SendOne(ctx context.Context, p push.Payload) (string, error) {
	var resp sendResponse
	if err := h.client.PostJSON(ctx, sendPath, sendRequest{Message: p}, &resp); err != nil {
		return "", classify(err)
	}
	return resp.Name, nil
}

// SendBulk はまとめて送信し、入力順の結果を返す。
// 一括送信API自体の失敗のみerrorとして返す。
func (h *HTTP) SendBulk(ctx context.Context, ps []push.Payload) ([]push.Result, error) {
	if len(ps) > push.MaxBulkSize {
		return nil, &push.ProviderError{
			Code:    push.CodeUnknown,
			Message: fmt.Sprintf("一括送信の上限を超えています: %d > %d", len(ps), push.MaxBulkSize),
		}
	}

	var resp sendEachResponse
	if err := h.client.PostJSON(ctx, sendEachPath, sendEachRequest{Messages: ps}, &resp); err != nil {
		return nil, classify(err)
	}

	results := make([]push.Result, len(resp.Responses))
	for i, r := range resp.Responses {
		if r.Success {
			results[i] = push.Result{MessageID: r.MessageID}
			continue
		}
		e := r.Error
		if e == nil {
			e = &apiError{Code: "UNKNOWN", Message: "no error detail"}
		}
		results[i] = push.Result{Err: &push.ProviderError{Code: codeFromAPI(e.Code), Message: e.Message}}
	}
	return results, nil
}

// classify はHTTPクライアントのエラーをProviderErrorに正規化する。
func classify(err error) *push.ProviderError {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		// ステータスコードを受け取れていないものは通信障害とみなす
		return &push.ProviderError{Code: push.CodeUnavailable, Message: err.Error(), Err: err}
	}

	var env errorEnvelope
	_ = json.Unmarshal(se.Body, &env)
	msg := env.Error.Message
	if msg == "" {
		msg = http.StatusText(se.StatusCode)
	}

	code := codeFromStatus(se.StatusCode)
	if env.Error.Code != "" {
		if c := codeFromAPI(env.Error.Code); c != push.CodeUnknown {
			code = c
		}
	}
	return &push.ProviderError{Code: code, Message: msg, Err: err}
}

// codeFromStatus はHTTPステータスコードからエラーコードを決める。
func codeFromStatus(status int) push.ErrorCode {
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return push.CodeInvalidToken
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return push.CodeAuth
	case status == http.StatusTooManyRequests:
		return push.CodeQuotaExceeded
	case status >= http.StatusInternalServerError:
		return push.CodeUnavailable
	default:
		return push.CodeUnknown
	}
}

// codeFromAPI はプロバイダのエラーコード文字列からエラーコードを決める。
func codeFromAPI(code string) push.ErrorCode {
	switch strings.ToUpper(code) {
	case "UNREGISTERED", "INVALID_ARGUMENT", "NOT_FOUND", "INVALID_REGISTRATION":
		return push.CodeInvalidToken
	case "THIRD_PARTY_AUTH_ERROR", "SENDER_ID_MISMATCH", "UNAUTHENTICATED", "PERMISSION_DENIED":
		return push.CodeAuth
	case "QUOTA_EXCEEDED", "RESOURCE_EXHAUSTED":
		return push.CodeQuotaExceeded
	case "UNAVAILABLE", "INTERNAL":
		return push.CodeUnavailable
	default:
		return push.CodeUnknown
	}
}
