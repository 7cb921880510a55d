package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/engine"
	"github.com/radieske/casino-engine-poc/internal/engine/dto"
	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
	"github.com/radieske/casino-engine-poc/internal/engine/odds"
	"github.com/radieske/casino-engine-poc/internal/engine/random"
	"github.com/radieske/casino-engine-poc/internal/engine/refund"
	"github.com/radieske/casino-engine-poc/internal/engine/treasury"
)

type Server struct {
	log     *zap.Logger
	svc     *engine.Service
	quotes  *odds.QuoteCache // opcional; nil desativa o cache de cotação
	tre     engine.Treasury
	assetID string
}

func NewServer(log *zap.Logger, svc *engine.Service, quotes *odds.QuoteCache, tre engine.Treasury, assetID string) *Server {
	return &Server{log: log, svc: svc, quotes: quotes, tre: tre, assetID: assetID}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets/commit", s.placeCommit)    // POST
	mux.HandleFunc("/bets/oracle", s.placeOracle)    // POST
	mux.HandleFunc("/bets/", s.betSubroutes)         // GET /bets/{id} | POST /bets/{id}/reveal | POST /bets/{id}/refund
	mux.HandleFunc("/randomness/fulfill", s.fulfill) // POST (só o oráculo)
	mux.HandleFunc("/odds/quote", s.quote)           // GET
	mux.HandleFunc("/admin/rules", s.updateRules)    // POST
	mux.HandleFunc("/status", s.status)              // GET
	return mux
}

func (s *Server) placeCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceCommitBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.WagerUnits <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	b, err := s.svc.PlaceCommitReveal(r.Context(), engine.PlaceCommitRequest{
		BetID:         req.BetID,
		Owner:         req.Owner,
		WagerUnits:    req.WagerUnits,
		Modulo:        req.Modulo,
		Mask:          req.Mask,
		Edge:          req.Edge,
		IsLarger:      req.IsLarger,
		Rounds:        req.Rounds,
		StopGainUnits: req.StopGainUnits,
		StopLossUnits: req.StopLossUnits,
		Commitments:   req.Commitments,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, placeResponse(&b))
}

func (s *Server) placeOracle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceOracleBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.WagerUnits <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	b, err := s.svc.PlaceOracle(r.Context(), engine.PlaceOracleRequest{
		Owner:         req.Owner,
		WagerUnits:    req.WagerUnits,
		Modulo:        req.Modulo,
		Mask:          req.Mask,
		Edge:          req.Edge,
		IsLarger:      req.IsLarger,
		Rounds:        req.Rounds,
		StopGainUnits: req.StopGainUnits,
		StopLossUnits: req.StopLossUnits,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, placeResponse(&b))
}

// betSubroutes resolve /bets/{id}[/reveal|/refund]
func (s *Server) betSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bets/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getBet(w, r, id)
	case action == "reveal" && r.Method == http.MethodPost:
		s.reveal(w, r, id)
	case action == "refund" && r.Method == http.MethodPost:
		s.refund(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getBet(w http.ResponseWriter, _ *http.Request, id uint64) {
	b, err := s.svc.GetBet(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, betResponse(&b))
}

func (s *Server) reveal(w http.ResponseWriter, r *http.Request, id uint64) {
	var req dto.RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b, err := s.svc.SettleReveal(r.Context(), id, req.Reveals)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, betResponse(&b))
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request, id uint64) {
	b, err := s.svc.Refund(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, betResponse(&b))
}

func (s *Server) fulfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b, err := s.svc.FulfillRandomness(r.Context(), r.Header.Get("X-Oracle-Key"), req.Handle, req.Words)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, betResponse(&b))
}

// quote calcula o prêmio por rodada sem colocar aposta; mesma conta da
// colocação, com cache Redis na frente.
func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	wager, err1 := strconv.ParseInt(q.Get("wager"), 10, 64)
	modulo, err2 := strconv.ParseInt(q.Get("modulo"), 10, 64)
	count, err3 := strconv.ParseInt(q.Get("count"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		http.Error(w, "wager, modulo and count required", http.StatusBadRequest)
		return
	}
	isLarger := q.Get("larger") == "true"

	version := s.svc.Rules().Version
	if s.quotes != nil {
		if win, ok := s.quotes.Get(r.Context(), version, wager, modulo, count, isLarger); ok {
			writeJSON(w, dto.QuoteResponse{WinPerRoundUnits: win, Cached: true})
			return
		}
	}

	win, err := s.svc.QuoteWinAmount(wager, modulo, count, isLarger)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if s.quotes != nil {
		s.quotes.Set(r.Context(), version, wager, modulo, count, isLarger, win)
	}
	writeJSON(w, dto.QuoteResponse{WinPerRoundUnits: win})
}

func (s *Server) updateRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.RulesChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		http.Error(w, "requestId required", http.StatusBadRequest)
		return
	}
	next, err := s.svc.ApplyRulesChange(r.Context(), req.RequestID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"rules_version": next.Version})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	free, err := s.tre.FreeFunds(r.Context(), s.assetID)
	if err != nil {
		s.log.Warn("treasury free-funds", zap.Error(err))
	}
	writeJSON(w, dto.StatusResponse{
		PendingBets:    s.svc.PendingCount(),
		FreeFundsUnits: free,
		RulesVersion:   s.svc.Rules().Version,
	})
}

// writeErr mapeia a taxonomia de erros do motor para status HTTP.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrAlreadyFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, treasury.ErrInsufficientLiquidity):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, refund.ErrNotYetEligible):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, random.ErrRevealMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, random.ErrSettlementExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, engine.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, engine.ErrInvalidArgument), errors.Is(err, odds.ErrInvalidProbability):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func placeResponse(b *ledger.Bet) dto.PlaceBetResponse {
	return dto.PlaceBetResponse{
		BetID:            b.ID,
		Status:           b.Status,
		WinPerRoundUnits: b.WinPerRoundUnits,
		ReservedUnits:    b.ReservedUnits,
	}
}

func betResponse(b *ledger.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:            b.ID,
		Owner:            b.Owner,
		Variant:          b.Variant,
		Status:           b.Status,
		WagerUnits:       b.WagerUnits,
		Modulo:           b.Modulo,
		Rounds:           b.Rounds,
		WinPerRoundUnits: b.WinPerRoundUnits,
		Outcomes:         b.Outcomes,
		PayoutsUnits:     b.PayoutsUnits,
		TotalPayoutUnits: b.TotalPayoutUnits,
		RoundsPlayed:     b.RoundsPlayed,
		Beacon:           b.Beacon,
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
