// Package feed はフィード定義のレジストリと、フィード単位の取得サービスを提供する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/metrics"
	"github.com/hitoshi/adminfeed/internal/model"
)

// Result はフィード1件の取得結果。
type Result struct {
	FeedID   string          `json:"feed"`
	Type     model.FeedType  `json:"type"`
	Messages []model.Message `json:"messages"`
	TierUsed int             `json:"tierUsed"`
	TierName model.Tier      `json:"tier,omitempty"`
	Warnings []string        `json:"warnings"`
}

// AggregateResult は全フィードをマージした結果。
type AggregateResult struct {
	Messages []model.Message `json:"messages"`
	Warnings []string        `json:"warnings"`
	Feeds    []*Result       `json:"-"`
}

// Service はフィードごとのフォールバックオーケストレータを保持し、取得を実行する。
// 同一フィードへの同時リクエストは1回の取得に集約する。
type Service struct {
	registry      *Registry
	orchestrators map[string]*ingest.Orchestrator
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	group         singleflight.Group
}

// NewService はレジストリの全定義についてオーケストレータを構築し、Serviceを生成する。
// collectorはnilでもよい。
func NewService(
	registry *Registry,
	builder AdapterBuilder,
	windowDays int,
	tierTimeout time.Duration,
	clock func() time.Time,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) (*Service, error) {
	s := &Service{
		registry:      registry,
		orchestrators: make(map[string]*ingest.Orchestrator),
		metrics:       collector,
		logger:        logger,
	}

	for _, def := range registry.Definitions() {
		adapters := make([]ingest.Adapter, 0, len(def.Tiers))
		for _, tier := range def.Tiers {
			a, err := builder.Build(def, tier)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)
		}

		var observer ingest.AttemptObserver
		if collector != nil {
			observer = &attemptRecorder{feedID: def.ID, collector: collector}
		}

		s.orchestrators[def.ID] = ingest.NewOrchestrator(
			def.Type, def.OriginURL(), adapters, windowDays, tierTimeout, clock, observer, logger,
		)
	}

	return s, nil
}

// FeedIDs は登録済みのフィードIDを返す。
func (s *Service) FeedIDs() []string {
	return s.registry.IDs()
}

// FetchFeed は指定フィードを取得する。未登録IDの場合はFEED_NOT_FOUNDエラーを返す。
// 上流の失敗はエラーではなく結果の警告として返す。
func (s *Service) FetchFeed(ctx context.Context, id string) (*Result, error) {
	orchestrator, ok := s.orchestrators[id]
	if !ok {
		return nil, model.NewFeedNotFoundError(id)
	}
	def, _ := s.registry.Get(id)

	// 最初の呼び出し元が切断しても相乗りした他のリクエストに影響させない
	v, _, _ := s.group.Do(id, func() (any, error) {
		r := orchestrator.FetchFeed(context.WithoutCancel(ctx))
		return &r, nil
	})
	r := v.(*ingest.Result)

	if s.metrics != nil {
		if r.TierUsed < 0 {
			s.metrics.RecordFallbackExhausted(id)
		}
		s.metrics.RecordMessagesServed(id, len(r.Messages))
	}

	s.logger.Info("フィードを取得しました",
		slog.String("feed_id", id),
		slog.String("tier", string(r.TierName)),
		slog.Int("tier_used", r.TierUsed),
		slog.Int("messages", len(r.Messages)),
		slog.Int("warnings", len(r.Warnings)),
	)

	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &Result{
		FeedID:   id,
		Type:     def.Type,
		Messages: r.Messages,
		TierUsed: r.TierUsed,
		TierName: r.TierName,
		Warnings: warnings,
	}, nil
}

// FetchAll は全フィードを並行して取得し、メッセージをマージして返す。
// フィード内のティアは順に試行され、フィード間の順序は保証しない。
func (s *Service) FetchAll(ctx context.Context) (*AggregateResult, error) {
	ids := s.registry.IDs()
	results := make([]*Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.FetchFeed(gctx, id)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &AggregateResult{Warnings: []string{}, Feeds: results}
	seqs := make([][]model.Message, 0, len(results))
	for _, r := range results {
		seqs = append(seqs, r.Messages)
		for _, w := range r.Warnings {
			agg.Warnings = append(agg.Warnings, fmt.Sprintf("%s: %s", r.FeedID, w))
		}
	}
	agg.Messages = ingest.Merge(seqs...)
	return agg, nil
}

// attemptRecorder はティア試行をフィードIDラベル付きでメトリクスに記録する。
type attemptRecorder struct {
	feedID    string
	collector metrics.MetricsCollector
}

// ObserveAttempt はingest.AttemptObserverを実装する。
func (r *attemptRecorder) ObserveAttempt(_ model.FeedType, a ingest.Attempt) {
	r.collector.RecordTierAttempt(r.feedID, string(a.Tier), string(a.Outcome), a.Duration)
}
