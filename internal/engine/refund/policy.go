package refund

import (
	"errors"
	"time"

	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
	"github.com/radieske/casino-engine-poc/internal/engine/rules"
)

// ErrNotYetEligible indica pedido de devolução antes da janela da variante.
var ErrNotYetEligible = errors.New("refund window has not elapsed")

// CanRefund é o predicado puro de elegibilidade: aposta pendente cuja
// janela da variante já passou desde a colocação. A janela precisa cobrir a
// latência esperada do oráculo, mas curta o bastante pra limitar liquidez
// presa.
func CanRefund(b *ledger.Bet, r *rules.Rules, now time.Time) bool {
	if b.Status != ledger.StatusPending {
		return false
	}
	return now.Sub(b.PlacedAt) >= r.RefundTimeout(b.Variant)
}
