// Package middleware はプッシュ配信APIで使用するGinミドルウェアを提供する。
//
// JWT認証、パニックリカバリ、CORS、リクエストごとの配信期限を含む。
package middleware
