package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// issuer はこのサービスが発行するトークンのiss。
	issuer = "pushfanout"
	// keyUserID はGinコンテキストに格納するユーザーIDのキー。
	keyUserID = "user_id"
	// keyEmail はGinコンテキストに格納するメールアドレスのキー。
	keyEmail = "email"
)

// Claims は認証トークンのクレームを表す。
// Emailはタスク追加通知で「操作したユーザー」として扱われる。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateJWT はユーザー情報から有効期限ttlのトークンを生成する。
func GenerateJWT(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		UserID: userID,
		Email:  email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// HS256以外の署名方式は拒否する。
func JWTAuth(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearerトークンが必要です",
			})
			return
		}

		claims := &Claims{}
		if _, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, jwt.WithIssuer(issuer)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(keyUserID, claims.UserID)
		c.Set(keyEmail, claims.Email)
		c.Next()
	}
}

// GetUserID はJWTAuthが設定したユーザーIDを返す。
func GetUserID(c *gin.Context) string {
	return c.GetString(keyUserID)
}

// GetEmail はJWTAuthが設定したメールアドレスを返す。
func GetEmail(c *gin.Context) string {
	return c.GetString(keyEmail)
}
