package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/pushfanout/internal/push"
	"github.com/nao1215/pushfanout/pkg/event"
	"github.com/nao1215/pushfanout/pkg/httpclient"
	"github.com/nao1215/pushfanout/pkg/middleware"
)

// 配信の種類。配信ログとイベントに記録する。
const (
	kindTaskAdded = "task_added"
	kindSingle    = "single"
	kindMulticast = "multicast"
)

// taskRequest はタスク追加通知のリクエストボディ。
type taskRequest struct {
	// TaskID は追加されたタスクのID。
	TaskID string `json:"task_id" binding:"required"`
	// Title はタスクのタイトル。通知の本文になる。
	Title string `json:"title" binding:"required"`
	// Description はタスクの説明。
	Description string `json:"description"`
}

// notificationBody は送信する通知内容のリクエストボディ。
type notificationBody struct {
	Title    string         `json:"title" binding:"required"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data"`
	ImageURL string         `json:"image_url"`
	Icon     string         `json:"icon"`
	Badge    string         `json:"badge"`
	Sound    string         `json:"sound"`
}

func (n notificationBody) toNotification() push.Notification {
	return push.Notification{
		Title:    n.Title,
		Body:     n.Body,
		Data:     n.Data,
		ImageURL: n.ImageURL,
		Icon:     n.Icon,
		Badge:    n.Badge,
		Sound:    n.Sound,
	}
}

// sendRequest は単一トークンへの送信リクエストのボディ。
type sendRequest struct {
	notificationBody
	// Token は配信先トークン。
	Token string `json:"token" binding:"required"`
}

// multicastRequest は複数トークンへの一斉送信リクエストのボディ。
type multicastRequest struct {
	notificationBody
	// Tokens は配信先トークンの一覧。
	Tokens []string `json:"tokens" binding:"required"`
}

// dispatchRecord は配信ログとイベントに残す1回分の配信。
type dispatchRecord struct {
	kind      string
	projectID string
	title     string
	body      string
	// link は配信したPayloadと同じ絶対URL。
	link string
	// userIDs はoutcomesと同じ並びの通知先ユーザー。トークン直接指定の場合はnil。
	userIDs []string
	summary push.Summary
}

// handleTaskAdded はプロジェクトへのタスク追加を関係者へ通知するハンドラ。
// 操作したユーザーはJWTのメールアドレスで判定する。
func (s *Server) handleTaskAdded() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		projectID := c.Param("id")
		ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
		result, err := s.notifier.NotifyTaskAdded(ctx, projectID, middleware.GetEmail(c), push.Task{
			ID:          req.TaskID,
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil && result.Summary.Outcomes == nil {
			// 通知先の解決に失敗した場合は誰にも送信していない
			s.abort(c, err)
			return
		}

		userIDs := make([]string, len(result.Recipients))
		for i, r := range result.Recipients {
			userIDs[i] = r.Identifier
		}
		dispatchID := s.record(c.Request.Context(), dispatchRecord{
			kind:      kindTaskAdded,
			projectID: projectID,
			title:     result.Notification.Title,
			body:      result.Notification.Body,
			link:      s.builder.Build(result.Notification, "").Link,
			userIDs:   userIDs,
			summary:   result.Summary,
		})

		resp := gin.H{
			"dispatch_id": dispatchID,
			"summary":     result.Summary,
			"recipients":  result.Recipients,
		}
		if err != nil {
			s.abortWith(c, err, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleSend は単一トークンへ通知を送信するハンドラ。
// 配信の失敗はoutcomeとして200で返す。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		outcome, err := s.notifier.NotifySingle(c.Request.Context(), req.Token, req.toNotification())
		if err != nil {
			s.abort(c, err)
			return
		}

		dispatchID := s.record(c.Request.Context(), dispatchRecord{
			kind:    kindSingle,
			title:   req.Title,
			body:    req.Body,
			link:    s.builder.Build(req.toNotification(), "").Link,
			summary: push.Summarize([]push.Outcome{outcome}),
		})
		c.JSON(http.StatusOK, gin.H{
			"dispatch_id": dispatchID,
			"outcome":     outcome,
		})
	}
}

// handleMulticast は複数トークンへ同じ通知を送信するハンドラ。
func (s *Server) handleMulticast() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req multicastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		summary, err := s.notifier.NotifyMany(c.Request.Context(), req.Tokens, req.toNotification())
		if errors.Is(err, push.ErrNoTokens) {
			s.abort(c, err)
			return
		}

		dispatchID := s.record(c.Request.Context(), dispatchRecord{
			kind:    kindMulticast,
			title:   req.Title,
			body:    req.Body,
			link:    s.builder.Build(req.toNotification(), "").Link,
			summary: summary,
		})

		resp := gin.H{
			"dispatch_id": dispatchID,
			"summary":     summary,
		}
		if err != nil {
			s.abortWith(c, err, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// record は配信結果を配信ログに保存し、Event Storeへイベントを送信する。
// どちらの失敗もログに記録するだけで、配信自体の結果は変えない。
// リクエストの期限が切れていても記録できるよう、キャンセルを引き継がない。
func (s *Server) record(ctx context.Context, rec dispatchRecord) string {
	ctx = context.WithoutCancel(ctx)
	dispatchID := uuid.New().String()
	now := time.Now().UTC()

	rows := make([]Delivery, 0, len(rec.summary.Outcomes))
	for i, o := range rec.summary.Outcomes {
		d := Delivery{
			ID:           uuid.New().String(),
			DispatchID:   dispatchID,
			Kind:         rec.kind,
			Token:        o.Token,
			Title:        rec.title,
			Body:         rec.body,
			Link:         rec.link,
			Success:      o.Success,
			MessageID:    o.MessageID,
			ErrorCode:    string(o.ErrorCode),
			ErrorMessage: o.ErrorMessage,
			CreatedAt:    now,
		}
		if i < len(rec.userIDs) {
			d.UserID = rec.userIDs[i]
		}
		rows = append(rows, d)
	}
	if err := s.queries.CreateDeliveries(ctx, rows); err != nil {
		log.Printf("[Push] 配信ログの保存に失敗: dispatch=%s: %v", dispatchID, err)
	}

	s.publish(ctx, dispatchID, rec)
	return dispatchID
}

// publish はPushDispatchedイベントと、無効と判定されたトークンごとの
// DeliveryTokenInvalidatedイベントを送信する。
func (s *Server) publish(ctx context.Context, dispatchID string, rec dispatchRecord) {
	if s.publisher == nil {
		return
	}

	events := make([]*event.Event, 0, 1)
	ev, err := event.NewPushDispatched(dispatchID, event.PushDispatchedData{
		Kind:           rec.kind,
		ProjectID:      rec.projectID,
		SuccessCount:   rec.summary.SuccessCount,
		FailureCount:   rec.summary.FailureCount,
		TotalAttempted: rec.summary.TotalAttempted,
		Partial:        rec.summary.Partial,
	})
	if err != nil {
		log.Printf("[Push] イベントの生成に失敗: %v", err)
		return
	}
	events = append(events, ev)

	for _, token := range push.StaleTokens(rec.summary) {
		ev, err := event.NewDeliveryTokenInvalidated(token, dispatchID, string(push.CodeInvalidToken))
		if err != nil {
			log.Printf("[Push] イベントの生成に失敗: %v", err)
			continue
		}
		events = append(events, ev)
	}

	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Printf("[Push] %v", err)
		}
	}
}

// abort はエラーに対応するステータスコードでリクエストを終了する。
func (s *Server) abort(c *gin.Context, err error) {
	s.abortWith(c, err, gin.H{})
}

// abortWith はエラー情報をbodyに加えてリクエストを終了する。
// 途中までの配信結果を返す場合に使う。
func (s *Server) abortWith(c *gin.Context, err error, body gin.H) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[Push] 配信要求の処理に失敗: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	body["error"] = err.Error()
	body["code"] = code
	c.JSON(status, body)
}

// errorStatus はエラーをHTTPステータスコードとエラーコードに変換する。
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, push.ErrProjectNotFound):
		return http.StatusNotFound, "project_not_found"
	case errors.Is(err, push.ErrAdminUserNotFound):
		return http.StatusNotFound, "admin_user_not_found"
	case errors.Is(err, push.ErrNoOwnerConfigured):
		return http.StatusConflict, "no_owner_configured"
	case errors.Is(err, push.ErrNoTokens):
		return http.StatusBadRequest, "no_tokens"
	case errors.Is(err, push.ErrProviderUnavailable):
		return http.StatusBadGateway, "provider_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// dispatchDelivery は配信ログ1行分のJSONレスポンス構造。
type dispatchDelivery struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id,omitempty"`
	Token        string `json:"token"`
	Success      bool   `json:"success"`
	MessageID    string `json:"message_id,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleGetDispatch は配信要求1件分の配信ログを送信順に返すハンドラ。
func (s *Server) handleGetDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		dispatchID := c.Param("id")
		ds, err := s.queries.ListByDispatch(c.Request.Context(), dispatchID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配信ログの取得に失敗しました"})
			log.Printf("[Push] 配信ログ取得エラー: %v", err)
			return
		}
		if len(ds) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "配信が見つかりません"})
			return
		}

		first := ds[0]
		deliveries := make([]dispatchDelivery, 0, len(ds))
		for _, d := range ds {
			deliveries = append(deliveries, dispatchDelivery{
				ID:           d.ID,
				UserID:       d.UserID,
				Token:        d.Token,
				Success:      d.Success,
				MessageID:    d.MessageID,
				ErrorCode:    d.ErrorCode,
				ErrorMessage: d.ErrorMessage,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"dispatch_id": dispatchID,
			"kind":        first.Kind,
			"title":       first.Title,
			"body":        first.Body,
			"link":        first.Link,
			"created_at":  first.CreatedAt.Format(time.RFC3339),
			"deliveries":  deliveries,
		})
	}
}
