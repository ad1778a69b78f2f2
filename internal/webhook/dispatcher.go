// Package webhook はセッションのライフサイクルイベントを外部のWebhookへ非同期に配信する。
//
// Dispatcher は growthsession.Notifier を実装する。Notify は呼び出し元をブロックせず、
// ペイロードを有界キューに積むだけで戻る。ワーカーがキューから取り出してPOSTし、
// 一時的な失敗は指数バックオフで再送する。配信の失敗はログとメトリクスにのみ記録される。
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/growthsession/internal/metrics"
	"github.com/hitoshi/growthsession/internal/model"
)

// Config はDispatcherの設定。
type Config struct {
	// Endpoints は通知種別ごとの送信先URL。空文字列または未登録の種別は無効。
	Endpoints map[model.NotificationKind]string
	// MaxAttempts は1件あたりの最大送信回数。0以下の場合は3。
	MaxAttempts int
	// QueueSize は送信待ちキューの容量。0以下の場合は100。
	QueueSize int
	// Workers は送信ワーカー数。0以下の場合は2。
	Workers int
}

// delivery はキューに積まれた1件の送信。
type delivery struct {
	kind model.NotificationKind
	url  string
	body []byte
}

// Dispatcher はWebhookの非同期配信を行う。
type Dispatcher struct {
	endpoints   map[model.NotificationKind]string
	client      *http.Client
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	maxAttempts int
	workers     int

	queue chan delivery
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// sleep は再送待ち。テストで差し替える。
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// clientにはSSRF防止付きのクライアントを渡すこと。collectorはnilでもよい。
func NewDispatcher(cfg Config, client *http.Client, collector metrics.MetricsCollector, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	endpoints := make(map[model.NotificationKind]string, len(cfg.Endpoints))
	for kind, url := range cfg.Endpoints {
		if url != "" {
			endpoints[kind] = url
		}
	}
	return &Dispatcher{
		endpoints:   endpoints,
		client:      client,
		collector:   collector,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		workers:     cfg.Workers,
		queue:       make(chan delivery, cfg.QueueSize),
		sleep:       sleepContext,
	}
}

// Enabled は指定種別の送信先が設定されているかを返す。
func (d *Dispatcher) Enabled(kind model.NotificationKind) bool {
	_, ok := d.endpoints[kind]
	return ok
}

// Notify はセッションのスナップショットを送信キューに積む。
// キューが満杯の場合やClose後はイベントを破棄して警告ログを出力する。
func (d *Dispatcher) Notify(_ context.Context, kind model.NotificationKind, session *model.GrowthSession) {
	url, ok := d.endpoints[kind]
	if !ok || session == nil {
		return
	}

	body, err := json.Marshal(newSessionPayload(kind, session))
	if err != nil {
		d.logger.Error("Webhookペイロードの生成に失敗しました",
			slog.String("kind", string(kind)),
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(kind, session.ID, "dispatcher closed")
		return
	}

	select {
	case d.queue <- delivery{kind: kind, url: url, body: body}:
	default:
		d.drop(kind, session.ID, "queue full")
	}
}

func (d *Dispatcher) drop(kind model.NotificationKind, sessionID, reason string) {
	d.logger.Warn("Webhookイベントを破棄しました",
		slog.String("kind", string(kind)),
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
	if d.collector != nil {
		d.collector.RecordWebhookDelivery(string(kind), metrics.OutcomeDropped)
	}
}

// Start は送信ワーカーを起動する。ctxのキャンセル後も残りのキューはCloseまで処理されるが、
// 再送待ちは打ち切られる。
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Webhookディスパッチャを開始しました",
		slog.Int("workers", d.workers),
		slog.Int("endpoints", len(d.endpoints)),
	)
	for range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				d.deliver(ctx, job)
			}
		}()
	}
}

// Close は新規のイベント受付を停止し、キューに残った送信の完了を待つ。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Webhookディスパッチャを停止しました")
}

// deliver は1件のイベントを最大maxAttempts回まで送信する。
func (d *Dispatcher) deliver(ctx context.Context, job delivery) {
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		result, err := d.post(ctx, job)
		if result == DeliveryResultOK {
			d.record(job.kind, metrics.OutcomeDelivered)
			return
		}
		lastErr = err
		if result == DeliveryResultPermanent || attempt == d.maxAttempts {
			break
		}

		delay := CalculateBackoff(attempt - 1)
		d.logger.Warn("Webhook送信に失敗しました。再送します",
			slog.String("kind", string(job.kind)),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		if err := d.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	d.record(job.kind, metrics.OutcomeFailed)
	d.logger.Error("Webhook送信を断念しました",
		slog.String("kind", string(job.kind)),
		slog.String("error", lastErr.Error()),
	)
}

// post は1回分のPOSTを行い、結果を分類して返す。通信エラーは再送対象とする。
func (d *Dispatcher) post(ctx context.Context, job delivery) (DeliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.url, bytes.NewReader(job.body))
	if err != nil {
		return DeliveryResultPermanent, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "growthsession-webhook/1.0")

	start := time.Now()
	resp, err := d.client.Do(req)
	if d.collector != nil {
		d.collector.RecordWebhookLatency(time.Since(start))
	}
	if err != nil {
		return DeliveryResultRetry, fmt.Errorf("送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if d.collector != nil {
		d.collector.RecordWebhookStatus(resp.StatusCode)
	}
	result := ClassifyHTTPStatus(resp.StatusCode)
	if result != DeliveryResultOK {
		return result, fmt.Errorf("送信先がステータス %d を返しました", resp.StatusCode)
	}
	return result, nil
}

func (d *Dispatcher) record(kind model.NotificationKind, outcome string) {
	if d.collector != nil {
		d.collector.RecordWebhookDelivery(string(kind), outcome)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
