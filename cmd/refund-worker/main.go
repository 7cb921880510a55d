package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/engine/rules"
	"github.com/radieske/casino-engine-poc/internal/shared/config"
	"github.com/radieske/casino-engine-poc/internal/shared/kafka"
	"github.com/radieske/casino-engine-poc/internal/shared/logger"
	"github.com/radieske/casino-engine-poc/internal/shared/metrics"
	ev "github.com/radieske/casino-engine-poc/pkg/contracts/events"
)

var (
	refundsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_worker_refunds_total",
		Help: "Devoluções disparadas com sucesso",
	})
	refundsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_worker_skipped_total",
		Help: "Apostas já finalizadas quando a janela venceu",
	})
	refundsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refund_worker_failures_total",
		Help: "Tentativas de devolução que falharam após retries",
	})
)

// tracker guarda as apostas pendentes e o instante em que cada uma se torna
// elegível para devolução
type tracker struct {
	mu  sync.Mutex
	due map[uint64]time.Time
}

func newTracker() *tracker { return &tracker{due: make(map[uint64]time.Time)} }

func (t *tracker) add(betID uint64, dueAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.due[betID] = dueAt
}

func (t *tracker) remove(betID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.due, betID)
}

// expired retorna os ids cuja janela já venceu
func (t *tracker) expired(now time.Time) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []uint64
	for id, at := range t.due {
		if !now.Before(at) {
			out = append(out, id)
		}
	}
	return out
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// As janelas de devolução vêm das mesmas variáveis de ambiente do engine
	r := rules.Load()

	prometheus.MustRegister(refundsIssued, refundsSkipped, refundsFailed)

	// Kafka consumer: apostas colocadas alimentam o rastreador de janelas
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "refund-worker")
	defer reader.Close()

	// DLQ para apostas cuja devolução falhou de forma persistente
	var dlqWriter *kafkago.Writer
	if cfg.TopicBetPlacedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlacedDLQ)
		defer dlqWriter.Close()
	}

	// Servidor de métricas Prometheus e healthcheck
	metrics.Serve(cfg.MetricsPort, nil)
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("refund-worker started",
		zap.String("consume", cfg.TopicBetPlaced),
		zap.Duration("window_commit", r.RefundTimeoutCommit),
		zap.Duration("window_oracle", r.RefundTimeoutOracle),
	)

	ctx := context.Background()
	trk := newTracker()

	// Varredura periódica: dispara a devolução das apostas vencidas
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, id := range trk.expired(time.Now()) {
				if err := refundOne(ctx, log, cfg, dlqWriter, id); err != nil {
					log.Error("refund", zap.Uint64("betId", id), zap.Error(err))
				}
				trk.remove(id)
			}
		}
	}()

	// Loop principal: consome bet_placed e registra a janela de cada aposta
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var placed ev.BetPlaced
		if jerr := json.Unmarshal(msg.Value, &placed); jerr != nil {
			log.Error("unmarshal bet_placed", zap.Error(jerr))
			continue
		}

		placedAt := time.UnixMilli(placed.TsUnixMs)
		dueAt := placedAt.Add(r.RefundTimeout(placed.Variant))
		trk.add(placed.BetID, dueAt)
		log.Info("tracking bet",
			zap.Uint64("betId", placed.BetID),
			zap.String("variant", placed.Variant),
			zap.Time("due_at", dueAt),
		)
	}
}

// refundOne consulta o status atual e, se a aposta seguir pendente, dispara a
// devolução no engine. Em caso de falha persistente, envia para a DLQ.
func refundOne(ctx context.Context, log *zap.Logger, cfg config.Config, dlqWriter *kafkago.Writer, betID uint64) error {
	status, err := fetchStatus(ctx, cfg, betID)
	if err != nil {
		return err
	}
	if status != "PENDING" {
		// liquidada (ou já devolvida) dentro da janela; nada a fazer
		refundsSkipped.Inc()
		return nil
	}

	url := fmt.Sprintf("%s/bets/%d/refund", cfg.EngineURL, betID)
	const retries = 3
	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(300*i) * time.Millisecond)
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode < 300:
			refundsIssued.Inc()
			log.Info("bet refunded", zap.Uint64("betId", betID))
			return nil
		case resp.StatusCode == http.StatusConflict:
			// corrida com uma liquidação concorrente; a aposta finalizou
			refundsSkipped.Inc()
			return nil
		default:
			lastErr = errors.New("engine refund http " + resp.Status)
		}
	}

	refundsFailed.Inc()
	if dlqWriter != nil {
		payload, _ := json.Marshal(map[string]any{"bet_id": betID, "reason": lastErr.Error()})
		_ = kafka.WriteJSON(ctx, dlqWriter, fmt.Sprintf("%d", betID), payload)
	}
	return lastErr
}

// fetchStatus consulta o status da aposta no engine
func fetchStatus(ctx context.Context, cfg config.Config, betID uint64) (string, error) {
	url := fmt.Sprintf("%s/bets/%d", cfg.EngineURL, betID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", errors.New("engine get http " + resp.Status)
	}
	var out struct {
		Status string `json:"status"`
	}
	if jerr := json.NewDecoder(resp.Body).Decode(&out); jerr != nil {
		return "", jerr
	}
	return out.Status, nil
}
