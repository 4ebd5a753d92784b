// Package notification はプッシュ配信サービスのHTTPサーバーを提供する。
//
// タスク追加通知、単一トークンへの送信、複数トークンへの一斉送信を受け付け、
// 配信結果を配信ログに記録する。配信に成功した通知はユーザーごとの受信箱として
// 一覧取得や既読管理ができる。
package notification
