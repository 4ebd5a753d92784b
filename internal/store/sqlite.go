package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/nao1215/pushfanout/internal/push"
	"github.com/nao1215/pushfanout/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite はSQLiteに保存されたプロジェクトとユーザーを参照するストア。
type SQLite struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

var _ push.Store = (*SQLite)(nil)

// OpenSQLite はdsnのSQLiteデータベースを開き、マイグレーションを適用する。
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite は開いたデータベースにマイグレーションを適用してストアを生成する。
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		return nil, fmt.Errorf("受信者ストアのマイグレーションに失敗: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetProject はプロジェクトとメンバー一覧を取得する。
func (s *SQLite) GetProject(ctx context.Context, id string) (*push.Project, error) {
	p := &push.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_identifier FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.OwnerIdentifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, push.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_identifier FROM project_members WHERE project_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("メンバーの読み込みに失敗: %w", err)
		}
		p.MemberIdentifiers = append(p.MemberIdentifiers, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗: %w", err)
	}
	return p, nil
}

// GetUser はユーザーを取得する。
func (s *SQLite) GetUser(ctx context.Context, id string) (*push.User, error) {
	u := &push.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT identifier, email, delivery_token FROM users WHERE identifier = ?`, id,
	).Scan(&u.Identifier, &u.Email, &u.DeliveryToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, push.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}
