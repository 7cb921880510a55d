package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/shared/config"
	"github.com/radieske/casino-engine-poc/internal/shared/logger"
	"github.com/radieske/casino-engine-poc/internal/shared/metrics"
)

var (
	// Métricas Prometheus para acompanhar pedidos e entregas de aleatoriedade
	requestsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrf_requests_received_total",
		Help: "Pedidos de palavras aleatórias recebidos",
	})
	fulfillmentsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrf_fulfillments_sent_total",
		Help: "Callbacks de fulfillment entregues com sucesso",
	})
	fulfillmentsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrf_fulfillments_failed_total",
		Help: "Callbacks de fulfillment que falharam",
	})
)

// randomnessReq espelha o payload enviado pelo engine ao pedir palavras
type randomnessReq struct {
	Handle      uint64 `json:"handle"`
	Count       int    `json:"count"`
	CallbackURL string `json:"callback_url"`
}

// fulfillReq espelha o payload esperado no callback do engine
type fulfillReq struct {
	Handle uint64   `json:"handle"`
	Words  []string `json:"words"`
}

type server struct {
	log       *zap.Logger
	oracleKey string
	delay     time.Duration
}

func newServer(log *zap.Logger, oracleKey string, delay time.Duration) *server {
	return &server{log: log, oracleKey: oracleKey, delay: delay}
}

// requestHandler registra o pedido e agenda o fulfillment com atraso simulado,
// imitando a latência de um VRF real
func (s *server) requestHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req randomnessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 || req.CallbackURL == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	requestsReceived.Inc()
	s.log.Info("randomness requested",
		zap.Uint64("handle", req.Handle),
		zap.Int("count", req.Count),
	)

	go s.fulfill(req)

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"ACCEPTED"}`))
}

// fulfill gera as palavras e entrega no callback do engine
func (s *server) fulfill(req randomnessReq) {
	time.Sleep(s.delay)

	words := make([]string, req.Count)
	for i := range words {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			s.log.Error("entropy source", zap.Error(err))
			fulfillmentsFailed.Inc()
			return
		}
		words[i] = hex.EncodeToString(buf[:])
	}

	body, _ := json.Marshal(fulfillReq{Handle: req.Handle, Words: words})
	httpReq, _ := http.NewRequest(http.MethodPost, req.CallbackURL, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Oracle-Key", s.oracleKey)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		s.log.Error("callback failed", zap.Uint64("handle", req.Handle), zap.Error(err))
		fulfillmentsFailed.Inc()
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("callback rejected",
			zap.Uint64("handle", req.Handle),
			zap.Int("status", resp.StatusCode),
		)
		fulfillmentsFailed.Inc()
		return
	}
	fulfillmentsSent.Inc()
	s.log.Info("randomness fulfilled", zap.Uint64("handle", req.Handle))
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(requestsReceived, fulfillmentsSent, fulfillmentsFailed)

	s := newServer(log, cfg.OracleKey, cfg.OracleDelay)

	// ==== MUX PÚBLICO: /randomness/request
	appMux := http.NewServeMux()
	appMux.HandleFunc("/randomness/request", s.requestHandler)

	// ==== SERVIDOR DE MÉTRICAS (/healthz, /metrics)
	metrics.Serve(cfg.MetricsPort, nil)
	log.Info("vrf simulator (metrics) running", zap.String("addr", ":"+cfg.MetricsPort))

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("vrf simulator (public) running",
		zap.String("addr", publicAddr),
		zap.Duration("delay", cfg.OracleDelay),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
