package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/engine/governance"
	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
	"github.com/radieske/casino-engine-poc/internal/engine/odds"
	"github.com/radieske/casino-engine-poc/internal/engine/random"
	"github.com/radieske/casino-engine-poc/internal/engine/refund"
	"github.com/radieske/casino-engine-poc/internal/engine/rules"
	"github.com/radieske/casino-engine-poc/internal/engine/settle"
	"github.com/radieske/casino-engine-poc/pkg/contracts/events"
)

// Treasury é o contrato de saída com a tesouraria externa.
type Treasury interface {
	Reserve(ctx context.Context, assetID string, amountUnits int64, externalRef string) (string, error)
	Release(ctx context.Context, assetID, externalRef string) error
	FreeFunds(ctx context.Context, assetID string) (int64, error)
}

// Oracle pede palavras aleatórias ao serviço de VRF.
type Oracle interface {
	RequestRandomWords(ctx context.Context, handle uint64, count int) error
}

// Publisher é o canal de notificações de saída.
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishBetRefunded(ctx context.Context, e events.BetRefunded) error
}

// AuditStore espelha transições no Postgres (rastro durável).
type AuditStore interface {
	InsertPlaced(ctx context.Context, b *ledger.Bet) error
	MarkSettled(ctx context.Context, id uint64, totalPayoutUnits int64, roundsPlayed int) error
	MarkRefunded(ctx context.Context, id uint64) error
}

// Governance é o portão opaco de mudanças privilegiadas.
type Governance interface {
	ApprovedChange(ctx context.Context, requestID string) (*governance.RulesChange, error)
	ConfirmChange(ctx context.Context, requestID string) error
}

// Service orquestra o ciclo de vida das apostas. Toda operação que muda
// estado (place/settle/refund/regras) roda inteira sob mu: execução
// estritamente serializada, sem reentrância possível enquanto chamadas à
// tesouraria estão no meio de uma transição. O lock é solto em todo caminho
// de saída, inclusive falha (defer).
type Service struct {
	mu sync.Mutex

	log      *zap.Logger
	rules    *rules.Rules
	ledger   *ledger.Ledger
	treasury Treasury
	oracle   Oracle
	publ     Publisher
	audit    AuditStore
	gov      Governance

	assetID   string
	oracleKey string

	// injetável nos testes
	now func() time.Time
}

func NewService(log *zap.Logger, r *rules.Rules, led *ledger.Ledger, t Treasury, o Oracle,
	p Publisher, a AuditStore, g Governance, assetID, oracleKey string) *Service {
	return &Service{
		log:       log,
		rules:     r,
		ledger:    led,
		treasury:  t,
		oracle:    o,
		publ:      p,
		audit:     a,
		gov:       g,
		assetID:   assetID,
		oracleKey: oracleKey,
		now:       time.Now,
	}
}

// Rules retorna o snapshot corrente (imutável; trocas criam versão nova).
func (s *Service) Rules() *rules.Rules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// QuoteWinAmount expõe a mesma conta usada na colocação; os dois caminhos
// concordam bit a bit por construção. Os limites de aposta valem aqui
// também: a entrada é controlada pelo chamador e um wager fora da faixa
// produziria cotação negativa ou estouraria a aritmética.
func (s *Service) QuoteWinAmount(wagerUnits, modulo, winningCount int64, isLarger bool) (int64, error) {
	r := s.Rules()
	if wagerUnits < r.MinWagerUnits || wagerUnits > r.MaxWagerUnits {
		return 0, fmt.Errorf("%w: wager out of bounds", ErrInvalidArgument)
	}
	return odds.ComputeWinAmount(r, wagerUnits, modulo, winningCount, isLarger)
}

// PlaceCommitRequest carrega os parâmetros de uma colocação commit-reveal.
// O id vem do caller; um compromisso sha256 por rodada.
type PlaceCommitRequest struct {
	BetID         uint64
	Owner         string
	WagerUnits    int64
	Modulo        int64
	Mask          uint64
	Edge          int64
	IsLarger      bool
	Rounds        int
	StopGainUnits int64
	StopLossUnits int64
	Commitments   []string
}

// PlaceOracleRequest idem para a variante oráculo; o id e o handle são
// emitidos pelo motor.
type PlaceOracleRequest struct {
	Owner         string
	WagerUnits    int64
	Modulo        int64
	Mask          uint64
	Edge          int64
	IsLarger      bool
	Rounds        int
	StopGainUnits int64
	StopLossUnits int64
}

// PlaceCommitReveal valida, reserva liquidez e grava a aposta pendente.
// Falha em qualquer passo aborta sem nenhum estado parcial observável.
func (s *Service) PlaceCommitReveal(ctx context.Context, req PlaceCommitRequest) (ledger.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.BetID == 0 {
		return ledger.Bet{}, fmt.Errorf("%w: bet id required", ErrInvalidArgument)
	}
	if len(req.Commitments) != req.Rounds {
		return ledger.Bet{}, fmt.Errorf("%w: one commitment per round required", ErrInvalidArgument)
	}
	for _, c := range req.Commitments {
		if err := random.CheckCommitment(c); err != nil {
			return ledger.Bet{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}

	b := &ledger.Bet{
		ID:            req.BetID,
		Owner:         req.Owner,
		Variant:       ledger.VariantCommitReveal,
		WagerUnits:    req.WagerUnits,
		Modulo:        req.Modulo,
		Mask:          req.Mask,
		Edge:          req.Edge,
		IsLarger:      req.IsLarger,
		Rounds:        req.Rounds,
		StopGainUnits: req.StopGainUnits,
		StopLossUnits: req.StopLossUnits,
		Commitments:   req.Commitments,
	}
	if err := s.placeLocked(ctx, b); err != nil {
		return ledger.Bet{}, err
	}
	s.announcePlaced(ctx, b)
	return *b, nil
}

// PlaceOracle valida, reserva liquidez, grava a aposta pendente e engaja o
// oráculo. A liquidação chega depois, fora de banda, pelo callback.
func (s *Service) PlaceOracle(ctx context.Context, req PlaceOracleRequest) (ledger.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ledger.NextOracleID()
	b := &ledger.Bet{
		ID:            id,
		Owner:         req.Owner,
		Variant:       ledger.VariantOracle,
		WagerUnits:    req.WagerUnits,
		Modulo:        req.Modulo,
		Mask:          req.Mask,
		Edge:          req.Edge,
		IsLarger:      req.IsLarger,
		Rounds:        req.Rounds,
		StopGainUnits: req.StopGainUnits,
		StopLossUnits: req.StopLossUnits,
		RequestHandle: id, // handle local = id; o índice byHandle resolve o caminho de volta
	}
	if err := s.placeLocked(ctx, b); err != nil {
		return ledger.Bet{}, err
	}

	if err := s.oracle.RequestRandomWords(ctx, b.RequestHandle, b.Rounds); err != nil {
		// O pedido ao oráculo falhou depois da reserva: desfaz tudo pra não
		// deixar liquidez presa numa aposta que nunca vai liquidar.
		_ = s.treasury.Release(ctx, s.assetID, betRef(b.ID))
		_ = s.ledger.MarkRefunded(b.ID)
		return ledger.Bet{}, fmt.Errorf("oracle request: %w", err)
	}
	s.announcePlaced(ctx, b)
	return *b, nil
}

// placeLocked é o tronco comum da colocação. Pré-condições: mu tomado,
// b.ID/Variant/entropia preenchidos.
func (s *Service) placeLocked(ctx context.Context, b *ledger.Bet) error {
	r := s.rules
	if err := validatePlacement(r, b); err != nil {
		return err
	}

	winPerRound, err := odds.ComputeWinAmount(r, b.WagerUnits, b.Modulo, b.WinningCount, b.IsLarger)
	if err != nil {
		return err
	}
	b.WinPerRoundUnits = winPerRound
	b.ReservedUnits = winPerRound * int64(b.Rounds)
	b.PlacedAt = s.now()

	// Reserva o pior caso antes de gravar nada: a casa só aceita o que
	// consegue pagar (controle de admissão contra insolvência).
	if _, err := s.treasury.Reserve(ctx, s.assetID, b.ReservedUnits, betRef(b.ID)); err != nil {
		ReserveFailures.Inc()
		return err
	}

	if err := s.ledger.Insert(b); err != nil {
		// id duplicado: devolve a reserva feita acima
		_ = s.treasury.Release(ctx, s.assetID, betRef(b.ID))
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// announcePlaced espelha no audit store e notifica, depois que a colocação
// (e o engajamento do oráculo, quando houver) deu certo.
func (s *Service) announcePlaced(ctx context.Context, b *ledger.Bet) {
	if err := s.audit.InsertPlaced(ctx, b); err != nil {
		s.log.Warn("audit insert", zap.Uint64("betId", b.ID), zap.Error(err))
	}

	BetsPlaced.WithLabelValues(b.Variant).Inc()
	_ = s.publ.PublishBetPlaced(ctx, events.BetPlaced{
		BetID:            b.ID,
		Owner:            b.Owner,
		Variant:          b.Variant,
		WagerUnits:       b.WagerUnits,
		Modulo:           b.Modulo,
		Mask:             b.Mask,
		Edge:             b.Edge,
		IsLarger:         b.IsLarger,
		WinningCount:     b.WinningCount,
		Rounds:           b.Rounds,
		WinPerRoundUnits: b.WinPerRoundUnits,
		ReservedUnits:    b.ReservedUnits,
	})
}

// SettleReveal liquida uma aposta commit-reveal com os segredos revelados.
func (s *Service) SettleReveal(ctx context.Context, betID uint64, reveals []string) (ledger.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.ledger.Get(betID)
	if err != nil {
		return ledger.Bet{}, err
	}
	if b.Variant != ledger.VariantCommitReveal {
		return ledger.Bet{}, fmt.Errorf("%w: bet %d is not commit-reveal", ErrInvalidArgument, betID)
	}
	if b.Status != ledger.StatusPending {
		return ledger.Bet{}, ledger.ErrAlreadyFinalized
	}
	if len(reveals) != b.Rounds {
		return ledger.Bet{}, fmt.Errorf("%w: one reveal per round required", ErrInvalidArgument)
	}

	// Verifica todos os reveals antes de tocar em qualquer estado: um
	// mismatch aborta a chamada inteira.
	for i, rv := range reveals {
		if err := random.VerifyReveal(b.Commitments[i], rv); err != nil {
			return ledger.Bet{}, fmt.Errorf("round %d: %w", i, err)
		}
	}

	beacon, err := random.NewBeacon()
	if err != nil {
		return ledger.Bet{}, err
	}
	entropy := make([]*big.Int, b.Rounds)
	for i, rv := range reveals {
		e, err := random.EntropyFromReveal(rv, beacon)
		if err != nil {
			return ledger.Bet{}, fmt.Errorf("round %d: %w", i, err)
		}
		entropy[i] = e
	}

	return s.settleLocked(ctx, b.ID, entropy, hex.EncodeToString(beacon))
}

// FulfillRandomness é o ponto de entrada do callback do oráculo. Aceita
// chamadas só do principal configurado; callback tardio deixa a aposta
// pendente pro caminho de devolução.
func (s *Service) FulfillRandomness(ctx context.Context, callerKey string, handle uint64, words []string) (ledger.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if callerKey != s.oracleKey {
		return ledger.Bet{}, fmt.Errorf("%w: callback not from configured oracle", ErrUnauthorized)
	}

	b, err := s.ledger.ByHandle(handle)
	if err != nil {
		return ledger.Bet{}, err
	}
	if s.now().Sub(b.PlacedAt) > s.rules.FulfillWindow {
		return ledger.Bet{}, random.ErrSettlementExpired
	}
	if len(words) != b.Rounds {
		return ledger.Bet{}, fmt.Errorf("%w: expected %d random words", ErrInvalidArgument, b.Rounds)
	}

	entropy, err := random.EntropyFromWords(words)
	if err != nil {
		return ledger.Bet{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return s.settleLocked(ctx, b.ID, entropy, "")
}

// settleLocked roda o lote, libera a reserva e aplica PENDING -> SETTLED.
// A transição no ledger é o que garante que a entropia de cada rodada é
// usada no máximo uma vez. O beacon é persistido junto com o resultado
// pra liquidação commit-reveal ser verificável de fora.
func (s *Service) settleLocked(ctx context.Context, betID uint64, entropy []*big.Int, beacon string) (ledger.Bet, error) {
	b, err := s.ledger.Get(betID)
	if err != nil {
		return ledger.Bet{}, err
	}

	res := settle.Run(b.Modulo, b.Mask, b.Edge, b.IsLarger,
		b.WagerUnits, b.WinPerRoundUnits, b.StopGainUnits, b.StopLossUnits, entropy)

	if err := s.ledger.MarkSettled(betID, res.Outcomes, res.PayoutsUnits, res.TotalPayoutUnits, res.RoundsPlayed, beacon); err != nil {
		return ledger.Bet{}, err
	}

	// Libera exatamente o valor reservado na colocação, independente do
	// pagamento real; a conservação reserva/liberação é por aposta.
	if err := s.treasury.Release(ctx, s.assetID, betRef(betID)); err != nil {
		ReleaseFailures.Inc()
		s.log.Error("treasury release", zap.Uint64("betId", betID), zap.Error(err))
	}

	if err := s.audit.MarkSettled(ctx, betID, res.TotalPayoutUnits, res.RoundsPlayed); err != nil {
		s.log.Warn("audit settle", zap.Uint64("betId", betID), zap.Error(err))
	}

	BetsSettled.Inc()
	PayoutUnits.Add(float64(res.TotalPayoutUnits))
	_ = s.publ.PublishBetSettled(ctx, events.BetSettled{
		BetID:            betID,
		Owner:            b.Owner,
		Outcomes:         res.Outcomes,
		PayoutsUnits:     res.PayoutsUnits,
		TotalPayoutUnits: res.TotalPayoutUnits,
		RoundsPlayed:     res.RoundsPlayed,
		Beacon:           beacon,
	})

	out, err := s.ledger.Get(betID)
	if err != nil {
		return ledger.Bet{}, err
	}
	s.log.Info("bet settled",
		zap.Uint64("betId", betID),
		zap.Int64("totalPayout", res.TotalPayoutUnits),
		zap.Int("roundsPlayed", res.RoundsPlayed),
	)
	return out, nil
}

// Refund desfaz uma aposta pendente cuja aleatoriedade nunca chegou.
func (s *Service) Refund(ctx context.Context, betID uint64) (ledger.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.ledger.Get(betID)
	if err != nil {
		return ledger.Bet{}, err
	}
	if b.Status != ledger.StatusPending {
		return ledger.Bet{}, ledger.ErrAlreadyFinalized
	}
	if !refund.CanRefund(&b, s.rules, s.now()) {
		return ledger.Bet{}, refund.ErrNotYetEligible
	}

	if err := s.ledger.MarkRefunded(betID); err != nil {
		return ledger.Bet{}, err
	}
	if err := s.treasury.Release(ctx, s.assetID, betRef(betID)); err != nil {
		ReleaseFailures.Inc()
		s.log.Error("treasury release", zap.Uint64("betId", betID), zap.Error(err))
	}
	if err := s.audit.MarkRefunded(ctx, betID); err != nil {
		s.log.Warn("audit refund", zap.Uint64("betId", betID), zap.Error(err))
	}

	BetsRefunded.Inc()
	_ = s.publ.PublishBetRefunded(ctx, events.BetRefunded{
		BetID:       betID,
		Owner:       b.Owner,
		AmountUnits: b.ReservedUnits,
	})

	return s.ledger.Get(betID)
}

// GetBet é o caminho de consulta (sem serialização; o ledger copia).
func (s *Service) GetBet(betID uint64) (ledger.Bet, error) {
	return s.ledger.Get(betID)
}

// PendingCount expõe a contagem de apostas pendentes (endpoint de status).
func (s *Service) PendingCount() int {
	return s.ledger.CountByStatus(ledger.StatusPending)
}

// ApplyRulesChange aplica uma mudança de regras aprovada pela governança.
// O motor só consulta e confirma o portão; a votação mora do outro lado.
func (s *Service) ApplyRulesChange(ctx context.Context, requestID string) (*rules.Rules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	change, err := s.gov.ApprovedChange(ctx, requestID)
	if err != nil {
		return nil, err
	}

	next := s.rules.Clone()
	next.Version++
	applyChange(next, change)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := s.gov.ConfirmChange(ctx, requestID); err != nil {
		return nil, err
	}
	s.rules = next
	s.log.Info("rules updated", zap.String("requestId", requestID), zap.Int("version", next.Version))
	return next, nil
}

func applyChange(r *rules.Rules, c *governance.RulesChange) {
	if c.MinWagerUnits != nil {
		r.MinWagerUnits = *c.MinWagerUnits
	}
	if c.MaxWagerUnits != nil {
		r.MaxWagerUnits = *c.MaxWagerUnits
	}
	if c.DefaultEdgePct != nil {
		r.DefaultEdgePct = *c.DefaultEdgePct
	}
	for m, pct := range c.EdgePctByModulo {
		r.EdgePctByModulo[m] = pct
	}
	if c.WealthTaxThreshold != nil {
		r.WealthTaxThresholdUnits = *c.WealthTaxThreshold
	}
	if c.WealthTaxPct != nil {
		r.WealthTaxPct = *c.WealthTaxPct
	}
	if c.MaxProfitUnits != nil {
		r.MaxProfitUnits = *c.MaxProfitUnits
	}
	if c.PayoutGranularityUnits != nil {
		r.PayoutGranularityUnits = *c.PayoutGranularityUnits
	}
}

// validatePlacement é o controle de entrada: apostas são instruções
// financeiras controladas pelo atacante, então tudo é checado aqui antes de
// qualquer efeito.
func validatePlacement(r *rules.Rules, b *ledger.Bet) error {
	if !rules.ValidModulos[b.Modulo] {
		return fmt.Errorf("%w: modulo %d not supported", ErrInvalidArgument, b.Modulo)
	}
	if b.WagerUnits < r.MinWagerUnits || b.WagerUnits > r.MaxWagerUnits {
		return fmt.Errorf("%w: wager out of bounds", ErrInvalidArgument)
	}
	if b.Rounds < 1 || b.Rounds > r.MaxRounds {
		return fmt.Errorf("%w: rounds out of [1,%d]", ErrInvalidArgument, r.MaxRounds)
	}
	if b.StopGainUnits < 0 || b.StopLossUnits < 0 {
		return fmt.Errorf("%w: stop thresholds must be non-negative", ErrInvalidArgument)
	}

	if b.Modulo <= rules.MaskModuloLimit {
		if b.Edge != 0 || b.Mask == 0 {
			return fmt.Errorf("%w: mask required for modulo %d", ErrInvalidArgument, b.Modulo)
		}
		if b.Mask >= 1<<uint(b.Modulo) {
			return fmt.Errorf("%w: mask has bits outside the outcome space", ErrInvalidArgument)
		}
		b.WinningCount = int64(bits.OnesCount64(b.Mask))
	} else {
		if b.Mask != 0 {
			return fmt.Errorf("%w: edge bet cannot carry a mask", ErrInvalidArgument)
		}
		if b.Edge < r.MinLargerEdge || b.Edge > r.MaxLargerEdge {
			return fmt.Errorf("%w: edge out of [%d,%d]", ErrInvalidArgument, r.MinLargerEdge, r.MaxLargerEdge)
		}
		b.WinningCount = b.Edge
	}
	return nil
}

func betRef(id uint64) string {
	return fmt.Sprintf("bet:%d", id)
}
