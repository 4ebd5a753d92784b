package push

import (
	"errors"
	"testing"
)

// newProjectStore はオーナーと2名のメンバーを持つプロジェクトを用意する。
func newProjectStore() *fakeStore {
	s := newFakeStore()
	s.addUser("owner", "owner@example.com", "tok-owner")
	s.addUser("alice", "alice@example.com", "tok-alice")
	s.addUser("bob", "bob@example.com", "tok-bob")
	s.projects["p1"] = &Project{
		ID:                "p1",
		Name:              "Project One",
		OwnerIdentifier:   "owner",
		MemberIdentifiers: []string{"owner", "alice", "bob"},
	}
	return s
}

// TestResolve は通知先解決のロール規則を検証する。
func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("オーナーが操作した場合はオーナー以外の全メンバーが通知先になる", func(t *testing.T) {
		t.Parallel()
		r := NewResolver(newProjectStore())

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 2 {
			t.Fatalf("通知先の件数: got %d, want 2", len(set))
		}
		if set[0].Identifier != "alice" || set[1].Identifier != "bob" {
			t.Errorf("通知先: got %v, want [alice bob]", set)
		}
		if set[0].DeliveryToken != "tok-alice" {
			t.Errorf("DeliveryToken: got %s, want tok-alice", set[0].DeliveryToken)
		}
		if set[0].DisplayLabel != "alice@example.com" {
			t.Errorf("DisplayLabel: got %s, want alice@example.com", set[0].DisplayLabel)
		}
	})

	t.Run("オーナーと同じトークンを持つメンバーには送らない", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.addUser("alias", "alias@example.com", "tok-owner")
		s.projects["p1"].MemberIdentifiers = []string{"alias", "alice"}
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 1 || set[0].Identifier != "alice" {
			t.Errorf("通知先: got %v, want [alice]", set)
		}
		for _, rcpt := range set {
			if rcpt.DeliveryToken == "tok-owner" {
				t.Errorf("オーナーのトークンが含まれている: %v", set)
			}
		}
	})

	t.Run("トークンを持たないメンバーは除外される", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.addUser("bob", "bob@example.com", "")
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 1 || set[0].Identifier != "alice" {
			t.Errorf("通知先: got %v, want [alice]", set)
		}
	})

	t.Run("メンバーが操作した場合はオーナーのみが通知先になる", func(t *testing.T) {
		t.Parallel()
		r := NewResolver(newProjectStore())

		set, err := r.Resolve(t.Context(), "p1", "alice@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 1 {
			t.Fatalf("通知先の件数: got %d, want 1", len(set))
		}
		if set[0].Identifier != "owner" || set[0].DeliveryToken != "tok-owner" {
			t.Errorf("通知先: got %+v, want owner", set[0])
		}
	})

	t.Run("未知のユーザーが操作した場合もオーナーのみが通知先になる", func(t *testing.T) {
		t.Parallel()
		r := NewResolver(newProjectStore())

		set, err := r.Resolve(t.Context(), "p1", "stranger@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 1 || set[0].Identifier != "owner" {
			t.Errorf("通知先: got %v, want [owner]", set)
		}
	})

	t.Run("オーナーがトークンを持たない場合は通知先が空になる", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.addUser("owner", "owner@example.com", "")
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "alice@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 0 {
			t.Errorf("通知先の件数: got %d, want 0", len(set))
		}
	})

	t.Run("重複したメンバーは1件にまとめられる", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		// carolはaliceと同じ端末トークンを共有している
		s.addUser("carol", "carol@example.com", "tok-alice")
		s.projects["p1"].MemberIdentifiers = []string{"alice", "bob", "alice", "carol"}
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		tokens := set.Tokens()
		if len(tokens) != 2 || tokens[0] != "tok-alice" || tokens[1] != "tok-bob" {
			t.Errorf("トークン: got %v, want [tok-alice tok-bob]", tokens)
		}
	})

	t.Run("メンバーのレコードが存在しない場合はスキップされる", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.projects["p1"].MemberIdentifiers = []string{"alice", "ghost", "bob"}
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 2 {
			t.Errorf("通知先の件数: got %d, want 2", len(set))
		}
	})

	t.Run("オーナーがメンバーに含まれなくても通知先から除外される", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.projects["p1"].MemberIdentifiers = []string{"alice"}
		r := NewResolver(s)

		set, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if err != nil {
			t.Fatalf("Resolve()でエラーが発生: %v", err)
		}
		if len(set) != 1 || set[0].Identifier != "alice" {
			t.Errorf("通知先: got %v, want [alice]", set)
		}
	})
}

// TestResolveErrors は通知先解決のエラーを検証する。
func TestResolveErrors(t *testing.T) {
	t.Parallel()

	t.Run("プロジェクトが存在しない場合はErrProjectNotFound", func(t *testing.T) {
		t.Parallel()
		r := NewResolver(newProjectStore())

		_, err := r.Resolve(t.Context(), "missing", "owner@example.com")
		if !errors.Is(err, ErrProjectNotFound) {
			t.Errorf("エラー: got %v, want ErrProjectNotFound", err)
		}
	})

	t.Run("オーナー未設定の場合はErrNoOwnerConfigured", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		s.projects["p1"].OwnerIdentifier = ""
		r := NewResolver(s)

		_, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if !errors.Is(err, ErrNoOwnerConfigured) {
			t.Errorf("エラー: got %v, want ErrNoOwnerConfigured", err)
		}
	})

	t.Run("オーナーのレコードが存在しない場合はErrAdminUserNotFound", func(t *testing.T) {
		t.Parallel()
		s := newProjectStore()
		delete(s.users, "owner")
		r := NewResolver(s)

		_, err := r.Resolve(t.Context(), "p1", "alice@example.com")
		if !errors.Is(err, ErrAdminUserNotFound) {
			t.Errorf("エラー: got %v, want ErrAdminUserNotFound", err)
		}
	})

	t.Run("ストアの障害はそのまま伝播する", func(t *testing.T) {
		t.Parallel()
		storeErr := errors.New("connection refused")
		s := newProjectStore()
		s.err = storeErr
		r := NewResolver(s)

		_, err := r.Resolve(t.Context(), "p1", "owner@example.com")
		if !errors.Is(err, storeErr) {
			t.Errorf("エラー: got %v, want %v", err, storeErr)
		}
		if errors.Is(err, ErrProjectNotFound) {
			t.Error("ストア障害をErrProjectNotFoundとして扱うべきではない")
		}
	})
}
