package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/engine"
	"github.com/radieske/casino-engine-poc/internal/engine/governance"
	ehttp "github.com/radieske/casino-engine-poc/internal/engine/http"
	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
	"github.com/radieske/casino-engine-poc/internal/engine/odds"
	kpub "github.com/radieske/casino-engine-poc/internal/engine/producer"
	"github.com/radieske/casino-engine-poc/internal/engine/random"
	"github.com/radieske/casino-engine-poc/internal/engine/repo"
	"github.com/radieske/casino-engine-poc/internal/engine/rules"
	"github.com/radieske/casino-engine-poc/internal/engine/treasury"
	"github.com/radieske/casino-engine-poc/internal/shared/cache"
	"github.com/radieske/casino-engine-poc/internal/shared/config"
	"github.com/radieske/casino-engine-poc/internal/shared/db"
	"github.com/radieske/casino-engine-poc/internal/shared/kafka"
	"github.com/radieske/casino-engine-poc/internal/shared/logger"
	"github.com/radieske/casino-engine-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres (espelho de auditoria das apostas)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de cotações)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers (um por tópico de ciclo de vida)
	placedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placedWriter.Close()
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	refundedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetRefunded)
	defer refundedWriter.Close()

	// deps
	r := rules.Load()
	led := ledger.New()
	tre := treasury.New(cfg.TreasuryURL)
	ora := random.NewOracleClient(cfg.OracleURL, cfg.EngineURL+"/randomness/fulfill")
	gov := governance.New(cfg.GovernanceURL)
	audit := repo.NewPostgres(pg)
	publ := kpub.NewKafkaPublisher(placedWriter, settledWriter, refundedWriter)
	quotes := odds.NewQuoteCache(rdb, 30*time.Second)

	svc := engine.NewService(log, r, led, tre, ora, publ, audit, gov, cfg.AssetID, cfg.OracleKey)

	// HTTP público
	api := ehttp.NewServer(log, svc, quotes, tre, cfg.AssetID)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	prometheus.MustRegister(engine.Collectors()...)
	metrics.Serve(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("engine-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.Int("rules_version", r.Version),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
