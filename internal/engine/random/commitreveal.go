package random

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// ErrRevealMismatch indica que um segredo revelado não bate com o
// compromisso guardado na colocação. Um mismatch aborta a liquidação
// inteira; nada é gravado parcialmente.
var ErrRevealMismatch = errors.New("reveal does not match stored commitment")

// CheckCommitment valida a forma de um compromisso (sha256 em hex).
func CheckCommitment(commitment string) error {
	b, err := hex.DecodeString(commitment)
	if err != nil || len(b) != sha256.Size {
		return fmt.Errorf("commitment must be a hex sha256 digest")
	}
	return nil
}

// VerifyReveal re-hasheia o segredo revelado e compara com o compromisso.
func VerifyReveal(commitment, reveal string) error {
	revealBytes, err := hex.DecodeString(reveal)
	if err != nil {
		return ErrRevealMismatch
	}
	sum := sha256.Sum256(revealBytes)
	if hex.EncodeToString(sum[:]) != commitment {
		return ErrRevealMismatch
	}
	return nil
}

// NewBeacon gera o valor de identidade da casa capturado no momento da
// liquidação. O jogador se comprometeu com o segredo na colocação; a casa
// se compromete com o beacon aqui: nenhum dos dois consegue escolher o
// resultado conhecendo a entrada do outro.
func NewBeacon() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("beacon: %w", err)
	}
	return b, nil
}

// EntropyFromReveal deriva a entropia de uma rodada: sha256(reveal || beacon),
// interpretado como inteiro de 256 bits.
func EntropyFromReveal(reveal string, beacon []byte) (*big.Int, error) {
	revealBytes, err := hex.DecodeString(reveal)
	if err != nil {
		return nil, ErrRevealMismatch
	}
	h := sha256.New()
	h.Write(revealBytes)
	h.Write(beacon)
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}
