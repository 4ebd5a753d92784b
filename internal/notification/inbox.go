package notification

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/pushfanout/pkg/middleware"
)

// inboxItem は受信箱に表示する通知のJSONレスポンス構造。
type inboxItem struct {
	// ID は配信レコードの識別子。
	ID string `json:"id"`
	// DispatchID は配信要求の識別子。
	DispatchID string `json:"dispatch_id"`
	// Kind は配信の種類。
	Kind string `json:"kind"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Link は通知のリンク先。
	Link string `json:"link,omitempty"`
	// IsRead は既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は配信日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

func toInboxItems(ds []Delivery) []inboxItem {
	items := make([]inboxItem, 0, len(ds))
	for _, d := range ds {
		items = append(items, inboxItem{
			ID:         d.ID,
			DispatchID: d.DispatchID,
			Kind:       d.Kind,
			Title:      d.Title,
			Body:       d.Body,
			Link:       d.Link,
			IsRead:     d.IsRead,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		})
	}
	return items
}

// handleList は認証済みユーザーに届いた通知の一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		ds, err := s.queries.ListInbox(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("[Push] 通知一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toInboxItems(ds))
	}
}

// handleListUnread は認証済みユーザーの未読通知の一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		ds, err := s.queries.ListUnread(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			log.Printf("[Push] 未読通知一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toInboxItems(ds))
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
// 他のユーザー宛ての通知は操作できない。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		d, err := s.queries.GetDelivery(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrDeliveryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			log.Printf("[Push] 通知取得エラー: %v", err)
			return
		}
		if d.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		}

		if err := s.queries.MarkAsRead(c.Request.Context(), d.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("[Push] 通知既読処理エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの通知をすべて既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		n, err := s.queries.MarkAllAsRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("[Push] 全通知既読処理エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "updated": n})
	}
}
