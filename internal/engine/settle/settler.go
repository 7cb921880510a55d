package settle

import (
	"math/big"

	"github.com/radieske/casino-engine-poc/internal/engine/outcome"
)

// Result agrega a liquidação de um lote de rodadas. Os slices têm sempre o
// tamanho do lote inteiro, pra observabilidade; rodadas não jogadas ficam
// no valor zero.
type Result struct {
	Outcomes         []int64
	PayoutsUnits     []int64
	TotalPayoutUnits int64
	RoundsPlayed     int
}

// Run percorre as rodadas em ordem resolvendo cada uma contra a entropia
// correspondente, mantendo o resultado líquido acumulado (com sinal).
//
// Antes de cada rodada os limiares de parada são checados: com stopGain > 0
// e líquido >= stopGain, ou stopLoss > 0 e líquido <= -stopLoss, o lote para
// ali. Rodadas não jogadas são devolvidas pelo valor de face: a aposta
// delas volta inteira pro total, sem resolução de vitória/derrota, porque
// elas nunca aconteceram.
//
// Idempotente só se chamada uma vez por aposta: é a transição de estado no
// ledger, feita pelo caller, que impede reinvocação.
func Run(modulo int64, mask uint64, edge int64, isLarger bool,
	wagerUnits, winPerRoundUnits, stopGainUnits, stopLossUnits int64,
	entropy []*big.Int) Result {

	rounds := len(entropy)
	res := Result{
		Outcomes:     make([]int64, rounds),
		PayoutsUnits: make([]int64, rounds),
	}

	var net int64
	played := 0
	for i := 0; i < rounds; i++ {
		if stopGainUnits > 0 && net >= stopGainUnits {
			break
		}
		if stopLossUnits > 0 && net <= -stopLossUnits {
			break
		}

		out, win := outcome.Resolve(entropy[i], modulo, mask, edge, isLarger)
		res.Outcomes[i] = out
		if win {
			res.PayoutsUnits[i] = winPerRoundUnits
			net += winPerRoundUnits - wagerUnits
			res.TotalPayoutUnits += winPerRoundUnits
		} else {
			net -= wagerUnits
		}
		played++
	}

	// Devolução pelo valor de face das rodadas cortadas pela parada.
	res.TotalPayoutUnits += int64(rounds-played) * wagerUnits
	res.RoundsPlayed = played
	return res
}
