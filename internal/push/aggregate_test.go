package push

import "testing"

// TestSummarize は集計処理を検証する。
func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("成功と失敗が数えられる", func(t *testing.T) {
		t.Parallel()
		s := Summarize([]Outcome{
			{Token: "a", Success: true, MessageID: "1"},
			{Token: "b", ErrorCode: CodeInvalidToken},
			{Token: "c", Success: true, MessageID: "2"},
		})
		if s.SuccessCount != 2 || s.FailureCount != 1 || s.TotalAttempted != 3 {
			t.Errorf("集計: got %+v", s)
		}
	})

	t.Run("空の結果は全て0になる", func(t *testing.T) {
		t.Parallel()
		s := Summarize(nil)
		if s.SuccessCount != 0 || s.FailureCount != 0 || s.TotalAttempted != 0 {
			t.Errorf("集計: got %+v", s)
		}
	})
}

// TestCorrelate は通知先と結果の対応付けを検証する。
func TestCorrelate(t *testing.T) {
	t.Parallel()

	recipients := RecipientSet{
		{Identifier: "alice", DeliveryToken: "ta", DisplayLabel: "alice@example.com"},
		{Identifier: "bob", DeliveryToken: "tb", DisplayLabel: "bob"},
	}
	outcomes := []Outcome{
		{Token: "ta", Success: true, MessageID: "m1"},
		{Token: "tb", ErrorCode: CodeUnavailable},
	}

	reports := Correlate(recipients, outcomes)
	if len(reports) != 2 {
		t.Fatalf("件数: got %d, want 2", len(reports))
	}
	if reports[0].Identifier != "alice" || reports[0].Outcome.MessageID != "m1" {
		t.Errorf("reports[0]: got %+v", reports[0])
	}
	if reports[1].DisplayLabel != "bob" || reports[1].Outcome.ErrorCode != CodeUnavailable {
		t.Errorf("reports[1]: got %+v", reports[1])
	}

	if got := Correlate(recipients, outcomes[:1]); len(got) != 1 {
		t.Errorf("件数が異なる場合: got %d, want 1", len(got))
	}
}

// TestStaleTokens は恒久的に無効なトークンの抽出を検証する。
func TestStaleTokens(t *testing.T) {
	t.Parallel()

	s := Summarize([]Outcome{
		{Token: "ok", Success: true},
		{Token: "dead", ErrorCode: CodeInvalidToken},
		{Token: "busy", ErrorCode: CodeQuotaExceeded},
	})
	got := StaleTokens(s)
	if len(got) != 1 || got[0] != "dead" {
		t.Errorf("StaleTokens: got %v, want [dead]", got)
	}
}
