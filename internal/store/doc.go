// Package store はプッシュ通知の受信者ストアのクライアントを提供する。
//
// プロジェクトとユーザーのレコードを読み取り専用で参照する。
// ローカルのSQLiteを使うSQLiteと、外部のレコードサービスにHTTPで問い合わせるRemoteの2つの実装がある。
// どちらもレコードが存在しない場合はpush.ErrNotFoundをラップしたエラーを返す。
package store
