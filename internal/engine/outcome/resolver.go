package outcome

import (
	"math/big"

	"github.com/radieske/casino-engine-poc/internal/engine/rules"
)

// Resolve reduz a entropia de 256 bits para um resultado no espaço do jogo
// e decide vitória/derrota.
//
// A redução modular é o único passo crítico de fairness: a entropia chega
// uniformemente distribuída (hash de reveal+beacon ou palavra do oráculo) e
// o resto da decisão é puramente estrutural. Função pura e total: entrada
// inválida é impossível aqui porque o bet já foi validado na colocação.
func Resolve(entropy *big.Int, modulo int64, mask uint64, edge int64, isLarger bool) (int64, bool) {
	out := new(big.Int).Mod(entropy, big.NewInt(modulo)).Int64()

	if modulo <= rules.MaskModuloLimit {
		return out, mask&(1<<uint(out)) != 0
	}

	if isLarger {
		return out, out > edge
	}
	return out, out < edge
}
