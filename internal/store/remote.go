package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/pushfanout/internal/push"
	"github.com/nao1215/pushfanout/pkg/httpclient"
)

// Remote は外部のレコードサービスにHTTPで問い合わせるストア。
//
// GET /api/v1/projects/{id} と GET /api/v1/users/{id} を呼び出し、
// 404はpush.ErrNotFoundとして扱う。
type Remote struct {
	client *httpclient.Client
}

var _ push.Store = (*Remote)(nil)

// NewRemote は新しいRemoteストアを生成する。
func NewRemote(client *httpclient.Client) *Remote {
	return &Remote{client: client}
}

// GetProject はプロジェクトを取得する。
func (r *Remote) GetProject(ctx context.Context, id string) (*push.Project, error) {
	var p push.Project
	if err := r.client.GetJSON(ctx, "/api/v1/projects/"+url.PathEscape(id), &p); err != nil {
		return nil, notFoundOr(err, "project", id)
	}
	return &p, nil
}

// GetUser はユーザーを取得する。
func (r *Remote) GetUser(ctx context.Context, id string) (*push.User, error) {
	var u push.User
	if err := r.client.GetJSON(ctx, "/api/v1/users/"+url.PathEscape(id), &u); err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return &u, nil
}

// notFoundOr は404をpush.ErrNotFoundに変換し、それ以外はラップして返す。
func notFoundOr(err error, kind, id string) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", kind, id, push.ErrNotFound)
	}
	return fmt.Errorf("%s %s の取得に失敗: %w", kind, id, err)
}
