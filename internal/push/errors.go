package push

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound はプロジェクトが存在しない場合のエラー。
	ErrProjectNotFound = errors.New("project not found")
	// ErrAdminUserNotFound はオーナーのユーザーレコードが存在しない場合のエラー。
	ErrAdminUserNotFound = errors.New("admin user not found")
	// ErrNoOwnerConfigured はプロジェクトにオーナーが設定されていない場合のエラー。
	// 一時的な障害ではなくデータ不整合を表す。
	ErrNoOwnerConfigured = errors.New("no owner configured")
	// ErrProviderUnavailable はどの配信経路でもプロバイダに到達できなかった場合のエラー。
	ErrProviderUnavailable = errors.New("push provider unavailable")
	// ErrNotFound はストアにレコードが存在しないことを表す。
	// Store実装はこのエラーをラップして返すこと。
	ErrNotFound = errors.New("record not found")
)

// ErrorCode はプロバイダのエラーを分類したコード。
type ErrorCode string

const (
	// CodeInvalidToken はトークンが無効または期限切れで、今後も使えないことを表す。
	CodeInvalidToken ErrorCode = "invalid_token"
	// CodeAuth はプロバイダの認証に失敗したことを表す。
	CodeAuth ErrorCode = "auth"
	// CodeQuotaExceeded はレート制限に達したことを表す。
	CodeQuotaExceeded ErrorCode = "quota_exceeded"
	// CodeUnavailable はプロバイダに到達できないことを表す。
	CodeUnavailable ErrorCode = "unavailable"
	// CodeCanceled は呼び出し元の期限切れやキャンセルで未送信に終わったことを表す。
	CodeCanceled ErrorCode = "canceled"
	// CodeUnknown はその他のエラー。
	CodeUnknown ErrorCode = "unknown"
)

// Permanent は再送しても成功しない種類のエラーかどうかを返す。
// trueの場合、呼び出し元はトークンの削除を検討すべきである。
func (c ErrorCode) Permanent() bool {
	return c == CodeInvalidToken
}

// ProviderError はプロバイダ呼び出しの失敗を1つの形に正規化したエラー。
type ProviderError struct {
	// Code は分類済みのエラーコード。
	Code ErrorCode
	// Message はプロバイダから返されたメッセージ。
	Message string
	// Err は元になったエラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Code, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError は任意のエラーをProviderErrorに正規化する。
// ProviderErrorでないエラーはCodeUnknownとして扱う。
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProviderError{Code: CodeUnknown, Message: err.Error(), Err: err}
}

// failedOutcome はエラーから失敗結果を組み立てる。
func failedOutcome(token string, err error) Outcome {
	perr := AsProviderError(err)
	return Outcome{
		Token:        token,
		Success:      false,
		ErrorCode:    perr.Code,
		ErrorMessage: perr.Message,
	}
}
