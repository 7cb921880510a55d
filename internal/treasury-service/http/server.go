package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/treasury-service/dto"
	"github.com/radieske/casino-engine-poc/internal/treasury-service/repo"
)

// Repo define a interface de operações do pool usadas pelo handler HTTP
type Repo interface {
	GetOrCreatePool(ctx context.Context, assetID string) (balance, reserved int64, err error)
	Deposit(ctx context.Context, assetID string, amount int64, externalRef string) (newBalance int64, err error)
	Reserve(ctx context.Context, assetID string, amount int64, externalRef string) (reservationID string, err error)
	Release(ctx context.Context, assetID, externalRef string) (amount int64, err error)
	FreeFunds(ctx context.Context, assetID string) (int64, error)
}

// Server expõe endpoints HTTP do pool de liquidez da casa
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP da tesouraria
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API da tesouraria
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/treasury", s.getPool)          // GET ?assetId=...
	mux.HandleFunc("/treasury/deposit", s.deposit)  // POST
	mux.HandleFunc("/treasury/reserve", s.reserve)  // POST
	mux.HandleFunc("/treasury/release", s.release)  // POST
	mux.HandleFunc("/treasury/free", s.freeFunds)   // GET ?assetId=...
	return mux
}

// getPool retorna (ou cria) o pool do ativo
func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	assetID := r.URL.Query().Get("assetId")
	if assetID == "" {
		http.Error(w, "assetId required", http.StatusBadRequest)
		return
	}
	balance, reserved, err := s.repo.GetOrCreatePool(r.Context(), assetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.PoolResponse{
		AssetID:       assetID,
		BalanceUnits:  balance,
		ReservedUnits: reserved,
		FreeUnits:     balance - reserved,
	})
}

// deposit adiciona fundos ao pool (seed do bankroll da casa)
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.AssetID == "" || req.AmountUnits <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	bal, err := s.repo.Deposit(r.Context(), req.AssetID, req.AmountUnits, req.ExternalRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.PoolResponse{AssetID: req.AssetID, BalanceUnits: bal})
}

// reserve bloqueia fundos livres contra o pior caso de uma aposta
func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.AssetID == "" || req.AmountUnits <= 0 || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	resID, err := s.repo.Reserve(r.Context(), req.AssetID, req.AmountUnits, req.ExternalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "pool not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, repo.ErrInsufficientFunds) {
			// 409 vira ErrInsufficientLiquidity no lado do engine
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.ReservationResponse{ReservationID: resID, Status: "RESERVED"})
}

// release desfaz uma reserva, devolvendo o valor aos fundos livres
func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	var req dto.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.AssetID == "" || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	amount, err := s.repo.Release(r.Context(), req.AssetID, req.ExternalRef)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.ReleaseResponse{Status: "RELEASED", AmountUnits: amount})
}

// freeFunds retorna os fundos livres do pool (balance - reserved)
func (s *Server) freeFunds(w http.ResponseWriter, r *http.Request) {
	assetID := r.URL.Query().Get("assetId")
	if assetID == "" {
		http.Error(w, "assetId required", http.StatusBadRequest)
		return
	}
	free, err := s.repo.FreeFunds(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "pool not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.FreeFundsResponse{AssetID: assetID, FreeUnits: free})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
