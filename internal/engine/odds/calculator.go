package odds

import (
	"errors"

	"github.com/radieske/casino-engine-poc/internal/engine/rules"
)

// ErrInvalidProbability indica winning count fora de (0, modulo].
var ErrInvalidProbability = errors.New("invalid probability: winning count out of range")

// ComputeWinAmount calcula o prêmio por rodada de uma aposta.
//
// Função pura, chamada tanto pelo endpoint de cotação quanto pelo fluxo de
// colocação. Os dois caminhos precisam concordar bit a bit, então o prêmio
// é fixado aqui uma única vez na colocação e nunca recalculado na liquidação.
//
// A conta: desconta do wager o edge da casa (percentual por modulo + taxa de
// riqueza), multiplica pela razão modulo/effectiveCount, trunca para a
// granularidade configurada e só então aplica o teto wager+MaxProfit.
// Trunca antes de capar; as duas operações não comutam na borda.
func ComputeWinAmount(r *rules.Rules, wagerUnits, modulo, winningCount int64, isLarger bool) (int64, error) {
	if winningCount <= 0 || winningCount > modulo {
		return 0, ErrInvalidProbability
	}

	effectiveCount := winningCount
	if modulo > rules.MaskModuloLimit && isLarger {
		// Intervalo semiaberto no topo da faixa: apostar "maior que N" em
		// modulo 100 vence em modulo-N-1 resultados, não em modulo-N.
		effectiveCount = modulo - winningCount - 1
		if effectiveCount <= 0 {
			return 0, ErrInvalidProbability
		}
	}

	edgePct := r.EdgePct(modulo)
	if r.WealthTaxThresholdUnits > 0 {
		edgePct += (wagerUnits / r.WealthTaxThresholdUnits) * r.WealthTaxPct
	}
	if edgePct >= 100 {
		edgePct = 100
	}
	edgeUnits := wagerUnits * edgePct / 100

	win := (wagerUnits - edgeUnits) * modulo / effectiveCount

	// Piso de precisão: derruba os dígitos abaixo da granularidade pra não
	// vazar "poeira" de arredondamento pro caller.
	if g := r.PayoutGranularityUnits; g > 1 {
		win = win / g * g
	}

	if maxWin := wagerUnits + r.MaxProfitUnits; win > maxWin {
		win = maxWin
	}

	return win, nil
}
