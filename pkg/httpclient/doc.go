// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// プッシュ配信プロバイダへの送信、外部の受信者ストアからのレコード取得、
// Event Storeへのイベント送信など、JSONを用いたHTTP通信のパターンを統一する。
// 2xx以外の応答はStatusErrorとして返すため、呼び出し側でステータスコードによる分類ができる。
package httpclient
