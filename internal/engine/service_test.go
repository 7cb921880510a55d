package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"math/bits"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/casino-engine-poc/internal/engine/governance"
	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
	"github.com/radieske/casino-engine-poc/internal/engine/outcome"
	"github.com/radieske/casino-engine-poc/internal/engine/random"
	"github.com/radieske/casino-engine-poc/internal/engine/refund"
	"github.com/radieske/casino-engine-poc/internal/engine/rules"
	"github.com/radieske/casino-engine-poc/internal/engine/treasury"
	"github.com/radieske/casino-engine-poc/pkg/contracts/events"
)

// ===== fakes dos colaboradores externos =====

type fakeTreasury struct {
	reserves    map[string]int64
	releases    []string
	failReserve error
	failRelease error
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{reserves: map[string]int64{}}
}

func (f *fakeTreasury) Reserve(_ context.Context, _ string, amountUnits int64, externalRef string) (string, error) {
	if f.failReserve != nil {
		return "", f.failReserve
	}
	f.reserves[externalRef] = amountUnits
	return "res-" + externalRef, nil
}

func (f *fakeTreasury) Release(_ context.Context, _ string, externalRef string) error {
	if f.failRelease != nil {
		return f.failRelease
	}
	f.releases = append(f.releases, externalRef)
	return nil
}

func (f *fakeTreasury) FreeFunds(context.Context, string) (int64, error) {
	return 1_000_000_000, nil
}

type oracleRequest struct {
	handle uint64
	count  int
}

type fakeOracle struct {
	requests []oracleRequest
	fail     error
}

func (f *fakeOracle) RequestRandomWords(_ context.Context, handle uint64, count int) error {
	if f.fail != nil {
		return f.fail
	}
	f.requests = append(f.requests, oracleRequest{handle: handle, count: count})
	return nil
}

type fakePublisher struct {
	placed   []events.BetPlaced
	settled  []events.BetSettled
	refunded []events.BetRefunded
}

func (f *fakePublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakePublisher) PublishBetSettled(_ context.Context, e events.BetSettled) error {
	f.settled = append(f.settled, e)
	return nil
}

func (f *fakePublisher) PublishBetRefunded(_ context.Context, e events.BetRefunded) error {
	f.refunded = append(f.refunded, e)
	return nil
}

type fakeAudit struct{}

func (fakeAudit) InsertPlaced(context.Context, *ledger.Bet) error       { return nil }
func (fakeAudit) MarkSettled(context.Context, uint64, int64, int) error { return nil }
func (fakeAudit) MarkRefunded(context.Context, uint64) error            { return nil }

type fakeGov struct {
	changes   map[string]*governance.RulesChange
	confirmed []string
}

func (f *fakeGov) ApprovedChange(_ context.Context, requestID string) (*governance.RulesChange, error) {
	c, ok := f.changes[requestID]
	if !ok {
		return nil, governance.ErrNotApproved
	}
	return c, nil
}

func (f *fakeGov) ConfirmChange(_ context.Context, requestID string) error {
	f.confirmed = append(f.confirmed, requestID)
	return nil
}

// ===== harness =====

type testEnv struct {
	svc  *Service
	tre  *fakeTreasury
	ora  *fakeOracle
	publ *fakePublisher
	gov  *fakeGov
	now  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		tre:  newFakeTreasury(),
		ora:  &fakeOracle{},
		publ: &fakePublisher{},
		gov:  &fakeGov{changes: map[string]*governance.RulesChange{}},
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(zap.NewNop(), rules.Default(), ledger.New(),
		env.tre, env.ora, env.publ, fakeAudit{}, env.gov, "HOUSE_POOL", "oracle-key")
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func commitmentFor(reveal string) string {
	b, _ := hex.DecodeString(reveal)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func commitRequest(id uint64, rounds int, reveals []string) PlaceCommitRequest {
	commitments := make([]string, len(reveals))
	for i, rv := range reveals {
		commitments[i] = commitmentFor(rv)
	}
	return PlaceCommitRequest{
		BetID:       id,
		Owner:       "alice",
		WagerUnits:  10000,
		Modulo:      2,
		Mask:        1 << 1, // vence quando o resultado é 1
		Rounds:      rounds,
		Commitments: commitments,
	}
}

// ===== colocação =====

func TestPlaceCommitRevealReservesWorstCase(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.svc.PlaceCommitReveal(context.Background(),
		commitRequest(42, 3, []string{"aa", "bb", "cc"}))
	require.NoError(t, err)

	// wager 10000, edge 1%: 9900*2 = 19800, truncado para 19000
	assert.Equal(t, ledger.StatusPending, b.Status)
	assert.Equal(t, int64(19000), b.WinPerRoundUnits)
	assert.Equal(t, int64(57000), b.ReservedUnits)
	assert.Equal(t, int64(57000), env.tre.reserves["bet:42"])

	require.Len(t, env.publ.placed, 1)
	assert.Equal(t, ledger.VariantCommitReveal, env.publ.placed[0].Variant)
	assert.Equal(t, int64(57000), env.publ.placed[0].ReservedUnits)
}

func TestPlaceCommitRevealValidatesCommitments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := commitRequest(0, 1, []string{"aa"})
	_, err := env.svc.PlaceCommitReveal(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument) // id obrigatório

	req = commitRequest(1, 2, []string{"aa"}) // um compromisso pra duas rodadas
	_, err = env.svc.PlaceCommitReveal(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	req = commitRequest(1, 1, []string{"aa"})
	req.Commitments = []string{"not-a-digest"}
	_, err = env.svc.PlaceCommitReveal(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, env.tre.reserves) // nada foi reservado em nenhum caso
}

func TestPlaceRejectsInvalidParameters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*PlaceCommitRequest)
	}{
		{"modulo not supported", func(r *PlaceCommitRequest) { r.Modulo = 13 }},
		{"wager below minimum", func(r *PlaceCommitRequest) { r.WagerUnits = 1 }},
		{"mask outside outcome space", func(r *PlaceCommitRequest) { r.Mask = 1 << 2 }},
		{"empty mask", func(r *PlaceCommitRequest) { r.Mask = 0 }},
		{"negative stop", func(r *PlaceCommitRequest) { r.StopGainUnits = -1 }},
		{"edge bet with mask", func(r *PlaceCommitRequest) {
			r.Modulo = 100
			r.Edge = 50
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := commitRequest(99, 1, []string{"aa"})
			tc.mutate(&req)
			_, err := env.svc.PlaceCommitReveal(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	assert.Empty(t, env.tre.reserves)
}

func TestValidatePlacementMaskPopcount(t *testing.T) {
	r := rules.Default()

	// pra todo modulo endereçável por máscara, o contador de resultados
	// vencedores é o popcount da máscara, bit a bit
	cases := []struct {
		name   string
		modulo int64
		mask   uint64
	}{
		{"coin both sides", 2, 0b11},
		{"dice single", 6, 0b000001},
		{"dice four numbers", 6, 0b101011},
		{"double dice sparse", 36, 0xF0F0F0F0F},
		{"double dice full", 36, (1 << 36) - 1},
		{"roulette top bit", 37, 1 << 36},
		{"roulette three numbers", 37, 0b111},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &ledger.Bet{WagerUnits: 10000, Modulo: tc.modulo, Mask: tc.mask, Rounds: 1}
			require.NoError(t, validatePlacement(r, b))
			assert.Equal(t, int64(bits.OnesCount64(tc.mask)), b.WinningCount)
		})
	}
}

func TestPlaceFailsWhenLiquidityInsufficient(t *testing.T) {
	env := newTestEnv(t)
	env.tre.failReserve = treasury.ErrInsufficientLiquidity

	_, err := env.svc.PlaceCommitReveal(context.Background(),
		commitRequest(42, 1, []string{"aa"}))
	assert.ErrorIs(t, err, treasury.ErrInsufficientLiquidity)

	_, err = env.svc.GetBet(42)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, env.publ.placed)
}

func TestPlaceOracleEngagesOracle(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.svc.PlaceOracle(context.Background(), PlaceOracleRequest{
		Owner:      "bob",
		WagerUnits: 10000,
		Modulo:     2,
		Mask:       1 << 1,
		Rounds:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.VariantOracle, b.Variant)
	assert.Equal(t, b.ID, b.RequestHandle)
	require.Len(t, env.ora.requests, 1)
	assert.Equal(t, b.RequestHandle, env.ora.requests[0].handle)
	assert.Equal(t, 2, env.ora.requests[0].count)
	require.Len(t, env.publ.placed, 1)
}

func TestPlaceOracleRollsBackWhenOracleFails(t *testing.T) {
	env := newTestEnv(t)
	env.ora.fail = errors.New("oracle down")

	_, err := env.svc.PlaceOracle(context.Background(), PlaceOracleRequest{
		Owner:      "bob",
		WagerUnits: 10000,
		Modulo:     2,
		Mask:       1 << 1,
		Rounds:     1,
	})
	require.Error(t, err)

	// a reserva feita antes do pedido foi devolvida e a aposta encerrada
	assert.Equal(t, []string{"bet:1"}, env.tre.releases)
	b, err := env.svc.GetBet(1)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRefunded, b.Status)
	assert.Empty(t, env.publ.placed)
}

// ===== liquidação =====

func TestSettleRevealLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reveals := []string{"aa", "bb"}

	placed, err := env.svc.PlaceCommitReveal(ctx, commitRequest(42, 2, reveals))
	require.NoError(t, err)

	b, err := env.svc.SettleReveal(ctx, 42, reveals)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusSettled, b.Status)
	assert.Equal(t, 2, b.RoundsPlayed)
	// cada rodada paga WinPerRound ou zero; o beacon decide
	for _, p := range b.PayoutsUnits {
		assert.Contains(t, []int64{0, placed.WinPerRoundUnits}, p)
	}

	// liberação da reserva acontece exatamente uma vez, pelo ref da aposta
	assert.Equal(t, []string{"bet:42"}, env.tre.releases)
	require.Len(t, env.publ.settled, 1)
	assert.Equal(t, b.TotalPayoutUnits, env.publ.settled[0].TotalPayoutUnits)

	// reliquidar é rejeitado: a entropia de cada rodada é usada uma vez só
	_, err = env.svc.SettleReveal(ctx, 42, reveals)
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
	assert.Equal(t, []string{"bet:42"}, env.tre.releases)
}

func TestSettleRevealBeaconIsVerifiable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reveals := []string{"aa", "bb", "cc"}

	placed, err := env.svc.PlaceCommitReveal(ctx, commitRequest(42, 3, reveals))
	require.NoError(t, err)

	b, err := env.svc.SettleReveal(ctx, 42, reveals)
	require.NoError(t, err)

	// o beacon da casa fica gravado na aposta e sai no evento; sem ele
	// ninguém de fora reconstrói sha256(reveal || beacon)
	require.NotEmpty(t, b.Beacon)
	require.Len(t, env.publ.settled, 1)
	assert.Equal(t, b.Beacon, env.publ.settled[0].Beacon)

	beacon, err := hex.DecodeString(b.Beacon)
	require.NoError(t, err)

	// um verificador externo refaz a conta rodada a rodada e chega nos
	// mesmos outcomes e pagamentos publicados
	for i, rv := range reveals {
		e, err := random.EntropyFromReveal(rv, beacon)
		require.NoError(t, err)
		out, win := outcome.Resolve(e, placed.Modulo, placed.Mask, placed.Edge, placed.IsLarger)
		assert.Equal(t, b.Outcomes[i], out)
		want := int64(0)
		if win {
			want = placed.WinPerRoundUnits
		}
		assert.Equal(t, want, b.PayoutsUnits[i])
	}
}

func TestSettleReleaseFailureIsCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reveals := []string{"aa"}

	_, err := env.svc.PlaceCommitReveal(ctx, commitRequest(42, 1, reveals))
	require.NoError(t, err)

	before := testutil.ToFloat64(ReleaseFailures)
	env.tre.failRelease = errors.New("treasury down")

	// a transição terminal não é desfeita por falha na liberação; o
	// contador é o que deixa a reserva presa visível pra operação
	b, err := env.svc.SettleReveal(ctx, 42, reveals)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSettled, b.Status)
	assert.Empty(t, env.tre.releases)
	assert.Equal(t, before+1, testutil.ToFloat64(ReleaseFailures))
}

func TestSettleRevealMismatchAbortsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.PlaceCommitReveal(ctx, commitRequest(42, 2, []string{"aa", "bb"}))
	require.NoError(t, err)

	// segunda preimagem errada: nada pode ser liquidado parcialmente
	_, err = env.svc.SettleReveal(ctx, 42, []string{"aa", "ff"})
	assert.ErrorIs(t, err, random.ErrRevealMismatch)

	b, err := env.svc.GetBet(42)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, b.Status)
	assert.Empty(t, env.tre.releases)
}

func TestSettleRevealWrongVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b, err := env.svc.PlaceOracle(ctx, PlaceOracleRequest{
		Owner: "bob", WagerUnits: 10000, Modulo: 2, Mask: 1 << 1, Rounds: 1,
	})
	require.NoError(t, err)

	_, err = env.svc.SettleReveal(ctx, b.ID, []string{"aa"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFulfillRandomnessSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	placed, err := env.svc.PlaceOracle(ctx, PlaceOracleRequest{
		Owner: "bob", WagerUnits: 10000, Modulo: 2, Mask: 1 << 1, Rounds: 2,
	})
	require.NoError(t, err)

	env.advance(5 * time.Minute)

	// 0x01 mod 2 = 1 (vence), 0x02 mod 2 = 0 (perde)
	b, err := env.svc.FulfillRandomness(ctx, "oracle-key", placed.RequestHandle, []string{"01", "02"})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusSettled, b.Status)
	assert.Equal(t, []int64{1, 0}, b.Outcomes)
	assert.Equal(t, placed.WinPerRoundUnits, b.TotalPayoutUnits)
	assert.Equal(t, []string{"bet:1"}, env.tre.releases)
	// a variante oráculo não tem beacon; as palavras já são a entropia
	assert.Empty(t, b.Beacon)
}

func TestFulfillRandomnessUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	placed, err := env.svc.PlaceOracle(ctx, PlaceOracleRequest{
		Owner: "bob", WagerUnits: 10000, Modulo: 2, Mask: 1 << 1, Rounds: 1,
	})
	require.NoError(t, err)

	_, err = env.svc.FulfillRandomness(ctx, "wrong-key", placed.RequestHandle, []string{"01"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	b, err := env.svc.GetBet(placed.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, b.Status)
}

func TestFulfillRandomnessExpiredThenRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	placed, err := env.svc.PlaceOracle(ctx, PlaceOracleRequest{
		Owner: "bob", WagerUnits: 10000, Modulo: 2, Mask: 1 << 1, Rounds: 1,
	})
	require.NoError(t, err)

	// callback depois da janela de fulfillment: rejeitado, aposta segue pendente
	env.advance(env.svc.Rules().FulfillWindow + time.Second)
	_, err = env.svc.FulfillRandomness(ctx, "oracle-key", placed.RequestHandle, []string{"01"})
	assert.ErrorIs(t, err, random.ErrSettlementExpired)

	b, err := env.svc.GetBet(placed.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, b.Status)

	// ainda dentro da janela de devolução do oráculo
	_, err = env.svc.Refund(ctx, placed.ID)
	assert.ErrorIs(t, err, refund.ErrNotYetEligible)

	// janela vencida: a devolução destrava a reserva inteira
	env.advance(env.svc.Rules().RefundTimeoutOracle)
	b, err = env.svc.Refund(ctx, placed.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusRefunded, b.Status)
	assert.Equal(t, int64(0), b.TotalPayoutUnits)
	assert.Equal(t, []string{"bet:1"}, env.tre.releases)
	require.Len(t, env.publ.refunded, 1)
	assert.Equal(t, placed.ReservedUnits, env.publ.refunded[0].AmountUnits)
}

// ===== devolução =====

func TestRefundCommitRevealAfterWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.PlaceCommitReveal(ctx, commitRequest(42, 1, []string{"aa"}))
	require.NoError(t, err)

	_, err = env.svc.Refund(ctx, 42)
	assert.ErrorIs(t, err, refund.ErrNotYetEligible)

	env.advance(env.svc.Rules().RefundTimeoutCommit)
	b, err := env.svc.Refund(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRefunded, b.Status)

	// devolver de novo (ou liquidar) é rejeitado
	_, err = env.svc.Refund(ctx, 42)
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
	_, err = env.svc.SettleReveal(ctx, 42, []string{"aa"})
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
}

func TestRefundUnknownBet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Refund(context.Background(), 404)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// ===== cotação e regras =====

func TestQuoteMatchesPlacement(t *testing.T) {
	env := newTestEnv(t)

	quote, err := env.svc.QuoteWinAmount(10000, 2, 1, false)
	require.NoError(t, err)

	b, err := env.svc.PlaceCommitReveal(context.Background(),
		commitRequest(42, 1, []string{"aa"}))
	require.NoError(t, err)
	assert.Equal(t, quote, b.WinPerRoundUnits)
}

func TestQuoteRejectsWagerOutOfBounds(t *testing.T) {
	env := newTestEnv(t)
	r := env.svc.Rules()

	cases := []struct {
		name  string
		wager int64
	}{
		{"negative", -10000},
		{"below minimum", r.MinWagerUnits - 1},
		{"above maximum", r.MaxWagerUnits + 1},
		{"overflowing", math.MaxInt64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.QuoteWinAmount(tc.wager, 100, 50, true)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestApplyRulesChange(t *testing.T) {
	env := newTestEnv(t)
	minWager := int64(500)
	env.gov.changes["req-1"] = &governance.RulesChange{MinWagerUnits: &minWager}

	next, err := env.svc.ApplyRulesChange(context.Background(), "req-1")
	require.NoError(t, err)

	assert.Equal(t, 2, next.Version)
	assert.Equal(t, int64(500), env.svc.Rules().MinWagerUnits)
	assert.Equal(t, []string{"req-1"}, env.gov.confirmed)
}

func TestApplyRulesChangeNotApproved(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ApplyRulesChange(context.Background(), "req-x")
	assert.ErrorIs(t, err, governance.ErrNotApproved)
	assert.Equal(t, 1, env.svc.Rules().Version)
}

func TestApplyRulesChangeRejectsInvalidResult(t *testing.T) {
	env := newTestEnv(t)
	bad := int64(0)
	env.gov.changes["req-2"] = &governance.RulesChange{MinWagerUnits: &bad}

	_, err := env.svc.ApplyRulesChange(context.Background(), "req-2")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// a versão vigente não muda e o portão não é confirmado
	assert.Equal(t, 1, env.svc.Rules().Version)
	assert.Empty(t, env.gov.confirmed)
}
