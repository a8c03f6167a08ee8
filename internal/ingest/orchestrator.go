package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
)

// DefaultTierTimeout はティア1回分の上流呼び出しのタイムアウト。
const DefaultTierTimeout = 30 * time.Second

// Outcome はティア試行の結果種別を表す。
type Outcome string

const (
	// OutcomeSuccess は正規化済みレコードが1件以上得られたことを示す。
	OutcomeSuccess Outcome = "success"
	// OutcomeEmpty は取得に成功したが該当レコードが0件だったことを示す。
	OutcomeEmpty Outcome = "empty"
	// OutcomeError は通信失敗・タイムアウト・解析失敗を示す。
	OutcomeError Outcome = "error"
)

// Attempt はティア1回分の試行結果。
type Attempt struct {
	Adapter  string
	Tier     model.Tier
	Outcome  Outcome
	Records  int
	Duration time.Duration
}

// AttemptObserver はティア試行ごとに通知を受けるインターフェース。
// メトリクス記録に使用する。
type AttemptObserver interface {
	ObserveAttempt(feedType model.FeedType, attempt Attempt)
}

// Result はFetchFeedの結果。
type Result struct {
	Messages []model.Message
	// TierUsed は採用したティアの0始まりの位置。全ティアが空の場合は-1。
	TierUsed int
	// TierName は採用したティアの種別。全ティアが空の場合は空文字列。
	TierName model.Tier
	Warnings []string
	Attempts []Attempt
}

// Orchestrator はフィードのアダプタを優先順に試行するフォールバックオーケストレータ。
// 最初に1件以上の正規化済みレコードを返したティアの結果のみを採用し、
// 下位ティアは呼び出さずマージもしない。
type Orchestrator struct {
	feedType    model.FeedType
	origin      *url.URL
	adapters    []Adapter
	windowDays  int
	tierTimeout time.Duration
	clock       func() time.Time
	observer    AttemptObserver
	logger      *slog.Logger
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
// clockがnilの場合はtime.Nowを使用する。observerはnilでもよい。
func NewOrchestrator(
	feedType model.FeedType,
	origin *url.URL,
	adapters []Adapter,
	windowDays int,
	tierTimeout time.Duration,
	clock func() time.Time,
	observer AttemptObserver,
	logger *slog.Logger,
) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	if tierTimeout <= 0 {
		tierTimeout = DefaultTierTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		feedType:    feedType,
		origin:      origin,
		adapters:    adapters,
		windowDays:  windowDays,
		tierTimeout: tierTimeout,
		clock:       clock,
		observer:    observer,
		logger:      logger,
	}
}

// FetchFeed はアダプタを優先順に1つずつ試行し、最初に成功したティアの結果を返す。
// 全ティアが失敗・空の場合も呼び出し元へのエラーとはせず、空の結果と警告を返す。
// 時刻はこの呼び出しの開始時に1度だけ取得し、正規化と期間フィルタで共有する。
func (o *Orchestrator) FetchFeed(ctx context.Context) Result {
	now := o.clock()
	result := Result{TierUsed: -1, Messages: []model.Message{}}
	tried := make([]string, 0, len(o.adapters))

	for i, adapter := range o.adapters {
		tried = append(tried, string(adapter.Tier()))

		start := time.Now()
		batch, err := o.fetchTier(ctx, adapter)
		attempt := Attempt{
			Adapter:  adapter.Name(),
			Tier:     adapter.Tier(),
			Duration: time.Since(start),
		}

		if err != nil {
			attempt.Outcome = OutcomeError
			o.record(&result, attempt)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", adapter.Tier(), err))
			o.logger.Warn("ティアの取得に失敗しました",
				slog.String("feed_type", string(o.feedType)),
				slog.String("adapter", adapter.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		messages := o.normalizeBatch(batch, adapter.Tier(), now)
		attempt.Records = len(messages)
		if len(messages) == 0 {
			attempt.Outcome = OutcomeEmpty
			o.record(&result, attempt)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no matching records", adapter.Tier()))
			continue
		}

		attempt.Outcome = OutcomeSuccess
		o.record(&result, attempt)
		result.TierUsed = i
		result.TierName = adapter.Tier()
		result.Warnings = append(result.Warnings, batch.Warnings...)

		filtered := FilterWindow(messages, o.windowDays, now)
		if len(filtered) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: no records within the last %d days", adapter.Tier(), o.windowDays))
		}
		result.Messages = Merge(filtered)
		return result
	}

	result.Warnings = append(result.Warnings,
		fmt.Sprintf("all tiers exhausted for %s (tried: %s)", o.feedType, strings.Join(tried, ", ")))
	o.logger.Warn("全ティアで取得できませんでした",
		slog.String("feed_type", string(o.feedType)),
		slog.String("tried", strings.Join(tried, ",")),
	)
	return result
}

// fetchTier はティアタイムアウト付きでアダプタを呼び出す。
// アダプタ内のパニックはエラーに変換する。
func (o *Orchestrator) fetchTier(ctx context.Context, adapter Adapter) (batch *RawBatch, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.tierTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			batch = nil
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()

	batch, err = adapter.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		batch = &RawBatch{}
	}
	return batch, nil
}

// normalizeBatch はバッチ内の候補を正規化し、識別子を持たないものを破棄する。
func (o *Orchestrator) normalizeBatch(batch *RawBatch, tier model.Tier, now time.Time) []model.Message {
	messages := make([]model.Message, 0, len(batch.Candidates))
	for _, raw := range batch.Candidates {
		msg, ok := Normalize(raw, o.feedType, o.origin, now)
		if !ok {
			continue
		}
		msg.SourceTier = tier
		messages = append(messages, msg)
	}
	return messages
}

func (o *Orchestrator) record(result *Result, attempt Attempt) {
	result.Attempts = append(result.Attempts, attempt)
	if o.observer != nil {
		o.observer.ObserveAttempt(o.feedType, attempt)
	}
}
