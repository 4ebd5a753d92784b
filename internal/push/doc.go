// Package push はプッシュ通知のファンアウト配信エンジンを提供する。
//
// イベントから通知先を解決し（Resolver）、通知先ごとのペイロードを組み立て（Builder）、
// チャンク単位の一括送信と個別送信へのフォールバックで配信し（Dispatcher）、
// 通知先ごとの結果を集計する（Summarize, Correlate）。
// ストアとプロバイダはインターフェースとして注入する。
package push
