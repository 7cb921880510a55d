package random

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrSettlementExpired indica callback do oráculo fora da janela de
// fulfillment; a aposta fica pendente pro caminho de devolução.
var ErrSettlementExpired = errors.New("oracle fulfillment arrived after the window")

// EntropyFromWords converte as palavras do oráculo (hex, 256 bits cada)
// em entropia por rodada.
func EntropyFromWords(words []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(words))
	for i, w := range words {
		n, ok := new(big.Int).SetString(w, 16)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("random word %d is not valid hex", i)
		}
		out = append(out, n)
	}
	return out, nil
}
