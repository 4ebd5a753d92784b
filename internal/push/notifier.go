package push

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrNoTokens は送信先トークンが1件も指定されていない場合のエラー。
var ErrNoTokens = errors.New("no delivery tokens")

// TaskAddedResult はタスク追加通知の結果。
type TaskAddedResult struct {
	// Summary は配信結果の集計。
	Summary Summary `json:"summary"`
	// Recipients は通知先ごとの結果。
	Recipients []RecipientReport `json:"recipients"`
	// Notification は送信した通知内容。通知先がいない場合はゼロ値。
	Notification Notification `json:"-"`
}

// Notifier は解決・組み立て・配信・集計をまとめた呼び出し口。
// 保持するハンドルはすべて並行利用に安全なため、リクエスト間で共有してよい。
type Notifier struct {
	resolver   *Resolver
	builder    *Builder
	dispatcher *Dispatcher
}

// NewNotifier は新しいNotifierを生成する。
func NewNotifier(resolver *Resolver, builder *Builder, dispatcher *Dispatcher) *Notifier {
	return &Notifier{
		resolver:   resolver,
		builder:    builder,
		dispatcher: dispatcher,
	}
}

// NotifyTaskAdded はプロジェクトへのタスク追加を関係者へ通知する。
// 解決エラーの場合は誰にも送信せずにエラーを返す。
// 配信がプロバイダ到達不能や期限切れで中断した場合も、途中までの結果を返す。
func (n *Notifier) NotifyTaskAdded(ctx context.Context, projectID, actingUser string, task Task) (TaskAddedResult, error) {
	project, recipients, err := n.resolver.resolve(ctx, projectID, actingUser)
	if err != nil {
		return TaskAddedResult{}, err
	}

	if len(recipients) == 0 {
		return TaskAddedResult{
			Summary:    Summarize([]Outcome{}),
			Recipients: []RecipientReport{},
		}, nil
	}

	content := taskAddedNotification(project, task)
	summary, err := n.dispatcher.Dispatch(ctx, n.builder.BuildAll(content, recipients.Tokens()))
	result := TaskAddedResult{
		Summary:      summary,
		Recipients:   Correlate(recipients, summary.Outcomes),
		Notification: content,
	}

	log.Printf("[Push] タスク追加通知を配信: project=%s, task=%s, success=%d, failure=%d",
		projectID, task.ID, summary.SuccessCount, summary.FailureCount)
	if err != nil {
		return result, fmt.Errorf("タスク追加通知の配信が中断されました: %w", err)
	}
	return result, nil
}

// NotifySingle は1つのトークンへ通知を送信する。
// 配信の失敗はOutcomeに記録され、エラーは入力が不正な場合のみ返す。
func (n *Notifier) NotifySingle(ctx context.Context, token string, content Notification) (Outcome, error) {
	if token == "" {
		return Outcome{}, ErrNoTokens
	}
	return n.dispatcher.SendSingle(ctx, n.builder.Build(content, token)), nil
}

// NotifyMany は複数のトークンへ同じ通知を送信する。
// 空のトークンと重複トークンは送信前に取り除く。
func (n *Notifier) NotifyMany(ctx context.Context, tokens []string, content Notification) (Summary, error) {
	tokens = uniqueTokens(tokens)
	if len(tokens) == 0 {
		return Summary{}, ErrNoTokens
	}
	return n.dispatcher.Dispatch(ctx, n.builder.BuildAll(content, tokens))
}

// taskAddedNotification はタスク追加イベントの通知内容を作る。
func taskAddedNotification(project *Project, task Task) Notification {
	return Notification{
		Title: fmt.Sprintf("%sに新しいタスクが追加されました", project.Name),
		Body:  task.Title,
		Data: map[string]any{
			"type":      "task_added",
			"projectId": project.ID,
			"taskId":    task.ID,
			"link":      fmt.Sprintf("/projects/%s/tasks/%s", project.ID, task.ID),
		},
	}
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
