package push

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxBulkSize はプロバイダの一括送信APIが受け付ける最大件数。
	MaxBulkSize = 500
	// DefaultFallbackConcurrency は個別送信フォールバックの既定の同時実行数。
	DefaultFallbackConcurrency = 10
)

// Result は一括送信の1メッセージ分の結果。
// Errがnilなら成功で、MessageIDが設定される。
type Result struct {
	// MessageID はプロバイダが払い出したメッセージID。
	MessageID string
	// Err は失敗時の正規化済みエラー。
	Err *ProviderError
}

// Provider は外部のプッシュ配信プロバイダ。
// 実装は並行呼び出しに対して安全でなければならない。
type Provider interface {
	// SendOne は1件を送信し、メッセージIDを返す。
	SendOne(ctx context.Context, p Payload) (string, error)
	// SendBulk はMaxBulkSize件以下をまとめて送信し、入力順の結果を返す。
	// 一括送信API自体が失敗した場合のみerrorを返す。
	SendBulk(ctx context.Context, ps []Payload) ([]Result, error)
}

// DispatcherConfig はDispatcherの設定。
type DispatcherConfig struct {
	// ChunkSize は一括送信1回あたりの件数。0またはMaxBulkSize超の場合はMaxBulkSizeを使う。
	ChunkSize int
	// FallbackConcurrency は個別送信フォールバックの同時実行数の上限。
	FallbackConcurrency int
	// Metrics は配信メトリクス。nilの場合は記録しない。
	Metrics *Metrics
}

// Dispatcher はメッセージ一覧をチャンク単位の一括送信で配信する。
// チャンクの一括送信が失敗した場合は、そのチャンクを1件ずつ送信し直す。
type Dispatcher struct {
	provider    Provider
	chunkSize   int
	concurrency int
	metrics     *Metrics
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(provider Provider, cfg DispatcherConfig) *Dispatcher {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 || chunkSize > MaxBulkSize {
		chunkSize = MaxBulkSize
	}
	concurrency := cfg.FallbackConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFallbackConcurrency
	}
	return &Dispatcher{
		provider:    provider,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		metrics:     cfg.Metrics,
	}
}

// Dispatch はメッセージを配信し、入力順の結果を集計して返す。
//
// 個々のメッセージの失敗は結果に記録されるだけでエラーにはならない。
// あるチャンクの個別送信がすべてプロバイダ到達不能で失敗した場合は
// 以降のチャンクを送信せず、ErrProviderUnavailableと途中までの集計を返す。
// ctxが終了した場合は未送信分をキャンセル扱いにし、ctx.Err()と集計を返す。
func (d *Dispatcher) Dispatch(ctx context.Context, payloads []Payload) (Summary, error) {
	if len(payloads) == 0 {
		return Summary{Outcomes: []Outcome{}}, nil
	}

	started := time.Now()
	outcomes := make([]Outcome, len(payloads))
	var dispatchErr error

	for start := 0; start < len(payloads); start += d.chunkSize {
		end := min(start+d.chunkSize, len(payloads))

		if err := ctx.Err(); err != nil {
			markRemaining(payloads[start:], outcomes[start:], CodeCanceled, err.Error())
			break
		}

		if d.dispatchChunk(ctx, payloads[start:end], outcomes[start:end]) {
			log.Printf("[Push] プロバイダに到達できないため配信を中断します: chunk=%d-%d, remaining=%d", start, end, len(payloads)-end)
			markRemaining(payloads[end:], outcomes[end:], CodeUnavailable, "dispatch aborted: provider unreachable")
			dispatchErr = ErrProviderUnavailable
			break
		}
	}

	summary := Summarize(outcomes)
	summary.Partial = hasCode(outcomes, CodeCanceled)
	d.metrics.observeDispatch(summary, time.Since(started))

	if dispatchErr != nil {
		return summary, dispatchErr
	}
	if summary.Partial {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// dispatchChunk は1チャンクを配信し、結果をslotsに書き込む。
// 個別送信のフォールバックが全件到達不能で失敗した場合にtrueを返す。
func (d *Dispatcher) dispatchChunk(ctx context.Context, chunk []Payload, slots []Outcome) bool {
	results, err := d.sendBulk(ctx, chunk)
	if err == nil && len(results) != len(chunk) {
		err = fmt.Errorf("一括送信の結果件数が不一致: got %d, want %d", len(results), len(chunk))
	}
	if err == nil {
		d.metrics.observeBulk(true)
		for i, res := range results {
			slots[i] = bulkOutcome(chunk[i].Token, res)
		}
		return false
	}

	d.metrics.observeBulk(false)
	log.Printf("[Push] 一括送信に失敗したため個別送信にフォールバックします: size=%d, error=%v", len(chunk), err)
	d.fallback(ctx, chunk, slots)
	return allUnavailable(slots)
}

// sendBulk は一括送信を呼び出す。パニックはチャンク単位の失敗として扱い、
// 個別送信のフォールバックに回す。
func (d *Dispatcher) sendBulk(ctx context.Context, chunk []Payload) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("一括送信でパニックが発生: %v", r)
		}
	}()
	return d.provider.SendBulk(ctx, chunk)
}

// fallback はチャンク内の各メッセージを同時実行数を制限して個別送信する。
// 結果は入力位置のスロットに書き込むため、完了順に関わらず順序は保たれる。
func (d *Dispatcher) fallback(ctx context.Context, chunk []Payload, slots []Outcome) {
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i := range chunk {
		if err := ctx.Err(); err != nil {
			slots[i] = Outcome{Token: chunk[i].Token, ErrorCode: CodeCanceled, ErrorMessage: err.Error()}
			continue
		}
		g.Go(func() error {
			slots[i] = d.sendOne(ctx, chunk[i])
			// 兄弟の送信を止めないため常にnilを返す
			return nil
		})
	}
	_ = g.Wait()
}

// sendOne は1件を送信し、必ず1つの結果を返す。パニックも失敗結果に変換する。
func (d *Dispatcher) sendOne(ctx context.Context, p Payload) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Push] 個別送信でパニックが発生: %v", r)
			out = Outcome{Token: p.Token, ErrorCode: CodeUnknown, ErrorMessage: fmt.Sprintf("panic: %v", r)}
		}
		d.metrics.observeSend(out)
	}()

	id, err := d.provider.SendOne(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Token: p.Token, ErrorCode: CodeCanceled, ErrorMessage: ctxErr.Error()}
		}
		return failedOutcome(p.Token, err)
	}
	return Outcome{Token: p.Token, Success: true, MessageID: id}
}

// SendSingle は1件を個別送信APIで送信する。チャンク分割や集計は行わない。
func (d *Dispatcher) SendSingle(ctx context.Context, p Payload) Outcome {
	return d.sendOne(ctx, p)
}

// bulkOutcome は一括送信の1件分の結果をOutcomeに変換する。
func bulkOutcome(token string, res Result) Outcome {
	if res.Err != nil {
		return Outcome{
			Token:        token,
			ErrorCode:    res.Err.Code,
			ErrorMessage: res.Err.Message,
		}
	}
	return Outcome{Token: token, Success: true, MessageID: res.MessageID}
}

// markRemaining は未送信のメッセージを指定コードの失敗として記録する。
func markRemaining(payloads []Payload, slots []Outcome, code ErrorCode, msg string) {
	for i := range payloads {
		slots[i] = Outcome{Token: payloads[i].Token, ErrorCode: code, ErrorMessage: msg}
	}
}

// allUnavailable は全件がプロバイダ到達不能で失敗したかを判定する。
func allUnavailable(outcomes []Outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.Success || o.ErrorCode != CodeUnavailable {
			return false
		}
	}
	return true
}

func hasCode(outcomes []Outcome, code ErrorCode) bool {
	for _, o := range outcomes {
		if !o.Success && o.ErrorCode == code {
			return true
		}
	}
	return false
}
