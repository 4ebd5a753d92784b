package push

// Summarize は配信結果一覧から集計を作る。副作用はない。
func Summarize(outcomes []Outcome) Summary {
	s := Summary{
		TotalAttempted: len(outcomes),
		Outcomes:       outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
	}
	return s
}

// Correlate は通知先と配信結果を位置で対応付ける。
// Dispatcherは入力順を保つため、同じ順序で作られたRecipientSetとそのまま突き合わせられる。
// 件数が異なる場合は短い方に合わせる。
func Correlate(recipients RecipientSet, outcomes []Outcome) []RecipientReport {
	n := min(len(recipients), len(outcomes))
	reports := make([]RecipientReport, n)
	for i := range n {
		reports[i] = RecipientReport{Recipient: recipients[i], Outcome: outcomes[i]}
	}
	return reports
}

// StaleTokens は恒久的に使えないと判定されたトークンを返す。
// 呼び出し元はこれらのトークンへの再送をやめ、削除を検討する。
func StaleTokens(s Summary) []string {
	var tokens []string
	for _, o := range s.Outcomes {
		if o.Permanent() {
			tokens = append(tokens, o.Token)
		}
	}
	return tokens
}
