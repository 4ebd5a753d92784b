package notification

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/pushfanout/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrDeliveryNotFound は配信レコードが存在しない場合のエラー。
var ErrDeliveryNotFound = errors.New("delivery not found")

// Delivery は配信ログの1行を表す。
type Delivery struct {
	// ID は配信レコードの一意識別子。
	ID string
	// DispatchID は配信要求ごとの識別子。
	DispatchID string
	// Kind は配信の種類。
	Kind string
	// UserID は通知先のユーザー。
	UserID string
	// Token は配信先トークン。
	Token string
	// Title は通知のタイトル。
	Title string
	// Body は通知の本文。
	Body string
	// Link は通知のリンク先。
	Link string
	// Success は配信に成功したかどうか。
	Success bool
	// MessageID はプロバイダのメッセージID。
	MessageID string
	// ErrorCode は失敗時のエラーコード。
	ErrorCode string
	// ErrorMessage は失敗時のエラーメッセージ。
	ErrorMessage string
	// IsRead は既読状態。
	IsRead bool
	// CreatedAt は配信日時。
	CreatedAt time.Time
}

// Queries は配信ログへのクエリを実行する。
type Queries struct {
	db *sql.DB
}

// NewQueries はマイグレーションを適用してQueriesを生成する。
func NewQueries(ctx context.Context, db *sql.DB) (*Queries, error) {
	if _, err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		return nil, fmt.Errorf("配信ログのマイグレーションに失敗: %w", err)
	}
	return &Queries{db: db}, nil
}

const deliveryColumns = `id, dispatch_id, kind, user_id, token, title, body, link,
	success, message_id, error_code, error_message, is_read, created_at`

// CreateDeliveries は配信結果を1トランザクションで保存する。
func (q *Queries) CreateDeliveries(ctx context.Context, ds []Delivery) (err error) {
	if len(ds) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO deliveries (`+deliveryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("INSERT文の準備に失敗: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range ds {
		if _, err = stmt.ExecContext(ctx,
			d.ID, d.DispatchID, d.Kind, d.UserID, d.Token, d.Title, d.Body, d.Link,
			boolToInt(d.Success), d.MessageID, d.ErrorCode, d.ErrorMessage, boolToInt(d.IsRead), d.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("配信レコード %s の保存に失敗: %w", d.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// ListInbox はユーザーに届いた通知を新しい順に返す。
func (q *Queries) ListInbox(ctx context.Context, userID string) ([]Delivery, error) {
	return q.list(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		WHERE user_id = ? AND success = 1 ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListUnread はユーザーに届いた未読の通知を新しい順に返す。
func (q *Queries) ListUnread(ctx context.Context, userID string) ([]Delivery, error) {
	return q.list(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		WHERE user_id = ? AND success = 1 AND is_read = 0 ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListByDispatch は配信要求1件分のレコードを送信順に返す。
func (q *Queries) ListByDispatch(ctx context.Context, dispatchID string) ([]Delivery, error) {
	return q.list(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE dispatch_id = ? ORDER BY rowid`, dispatchID)
}

// GetDelivery は配信レコードを1件取得する。
func (q *Queries) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	d, err := scanDelivery(q.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Delivery{}, fmt.Errorf("delivery %s: %w", id, ErrDeliveryNotFound)
	}
	if err != nil {
		return Delivery{}, fmt.Errorf("配信レコードの取得に失敗: %w", err)
	}
	return d, nil
}

// MarkAsRead は配信レコードを既読にする。
func (q *Queries) MarkAsRead(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `UPDATE deliveries SET is_read = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("既読処理に失敗: %w", err)
	}
	return nil
}

// MarkAllAsRead はユーザーの通知をすべて既読にし、更新件数を返す。
func (q *Queries) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE deliveries SET is_read = 1 WHERE user_id = ? AND success = 1 AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("全件既読処理に失敗: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]Delivery, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("配信レコード一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ds := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("配信レコードの読み込みに失敗: %w", err)
		}
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信レコード一覧の取得に失敗: %w", err)
	}
	return ds, nil
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(r rowScanner) (Delivery, error) {
	var (
		d       Delivery
		success int
		isRead  int
	)
	err := r.Scan(&d.ID, &d.DispatchID, &d.Kind, &d.UserID, &d.Token, &d.Title, &d.Body, &d.Link,
		&success, &d.MessageID, &d.ErrorCode, &d.ErrorMessage, &isRead, &d.CreatedAt)
	d.Success = success != 0
	d.IsRead = isRead != 0
	return d, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
