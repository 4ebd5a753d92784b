package push

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Store はプロジェクトとユーザーのレコードを参照する読み取り専用ストア。
// 実装は並行呼び出しに対して安全でなければならない。
// レコードが存在しない場合はErrNotFoundをラップしたエラーを返す。
type Store interface {
	GetProject(ctx context.Context, id string) (*Project, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

// Resolver はイベントから通知先の集合を解決する。
//
// オーナーが操作した場合はオーナー以外の全メンバーへ、
// それ以外のユーザーが操作した場合はオーナーのみへ通知する。
type Resolver struct {
	store Store
}

// NewResolver は新しいResolverを生成する。
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve はプロジェクトと操作ユーザーから通知先の集合を解決する。
// actingUserはメールアドレスで指定し、オーナーのメールアドレスと比較される。
// 通知先が0件でもエラーにはならない。
func (r *Resolver) Resolve(ctx context.Context, projectID, actingUser string) (RecipientSet, error) {
	_, set, err := r.resolve(ctx, projectID, actingUser)
	return set, err
}

// resolve はResolveの本体。通知文面の組み立て用に読み込んだプロジェクトも返す。
func (r *Resolver) resolve(ctx context.Context, projectID, actingUser string) (*Project, RecipientSet, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, nil, fmt.Errorf("プロジェクトの取得に失敗: %w", err)
	}

	if project.OwnerIdentifier == "" {
		return nil, nil, fmt.Errorf("%w: project=%s", ErrNoOwnerConfigured, projectID)
	}

	owner, err := r.store.GetUser(ctx, project.OwnerIdentifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrAdminUserNotFound, project.OwnerIdentifier)
		}
		return nil, nil, fmt.Errorf("オーナーの取得に失敗: %w", err)
	}

	actingIsOwner := owner.Email != "" && owner.Email == actingUser

	var (
		candidates []*User
		// skip は通知先から外すトークン。操作したオーナー自身の端末には送らない。
		skip []string
	)
	if actingIsOwner {
		candidates, err = r.loadMembers(ctx, project)
		if err != nil {
			return nil, nil, err
		}
		skip = append(skip, owner.DeliveryToken)
	} else {
		candidates = []*User{owner}
	}

	set := dedupe(candidates, skip...)
	if len(set) == 0 {
		log.Printf("[Push] 到達可能な通知先がありません: project=%s, acting_is_owner=%t", projectID, actingIsOwner)
	}
	return project, set, nil
}

// loadMembers はオーナーを除く全メンバーのユーザーレコードを取得する。
// レコードが見つからないメンバーはスキップする。
func (r *Resolver) loadMembers(ctx context.Context, project *Project) ([]*User, error) {
	users := make([]*User, 0, len(project.MemberIdentifiers))
	for _, id := range project.MemberIdentifiers {
		if id == project.OwnerIdentifier {
			continue
		}
		u, err := r.store.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Printf("[Push] メンバーのユーザーレコードが存在しないためスキップ: project=%s, user=%s", project.ID, id)
				continue
			}
			return nil, fmt.Errorf("メンバー %s の取得に失敗: %w", id, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// dedupe はトークンを持たないユーザーを除外し、トークンで重複を排除する。
// skipのトークンを持つユーザーも除外する。最初に現れた順序を保つ。
func dedupe(users []*User, skip ...string) RecipientSet {
	seen := make(map[string]struct{}, len(users)+len(skip))
	for _, token := range skip {
		if token != "" {
			seen[token] = struct{}{}
		}
	}
	set := make(RecipientSet, 0, len(users))
	for _, u := range users {
		if !u.Reachable() {
			continue
		}
		if _, ok := seen[u.DeliveryToken]; ok {
			continue
		}
		seen[u.DeliveryToken] = struct{}{}
		set = append(set, Recipient{
			Identifier:    u.Identifier,
			DeliveryToken: u.DeliveryToken,
			DisplayLabel:  displayLabel(u),
		})
	}
	return set
}

func displayLabel(u *User) string {
	if u.Email != "" {
		return u.Email
	}
	return u.Identifier
}
