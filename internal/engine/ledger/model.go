package ledger

import "time"

// Estados do ciclo de vida. PENDING é o único estado não-terminal; a saída
// dele acontece exatamente uma vez (SETTLED ou REFUNDED, nunca os dois).
const (
	StatusPending  = "PENDING"
	StatusSettled  = "SETTLED"
	StatusRefunded = "REFUNDED"
)

// Variantes de aquisição de aleatoriedade. Escolhida na colocação,
// nunca misturada dentro de uma aposta.
const (
	VariantCommitReveal = "COMMIT_REVEAL"
	VariantOracle       = "ORACLE"
)

// Bet é a entidade central do motor.
type Bet struct {
	ID      uint64
	Owner   string
	Variant string

	WagerUnits   int64
	Modulo       int64
	Mask         uint64 // conjunto vencedor quando modulo <= MaskModuloLimit
	Edge         int64  // limiar quando modulo maior (comparação com IsLarger)
	IsLarger     bool
	WinningCount int64 // popcount da máscara, ou o limiar
	Rounds       int

	// Limiares de parada antecipada no resultado líquido acumulado; 0 desativa.
	StopGainUnits int64
	StopLossUnits int64

	// Prêmio por rodada fixado na colocação; a liquidação nunca recomputa.
	WinPerRoundUnits int64
	// Valor bloqueado na tesouraria = WinPerRoundUnits * Rounds. Liberado
	// exatamente uma vez, por exatamente esse valor, na transição terminal.
	ReservedUnits int64

	Status   string
	PlacedAt time.Time

	// Fonte de entropia por variante.
	Commitments   []string // COMMIT_REVEAL: um sha256 (hex) por rodada
	RequestHandle uint64   // ORACLE: handle do pedido de aleatoriedade

	// Resultado (preenchido na liquidação).
	Outcomes         []int64
	PayoutsUnits     []int64
	TotalPayoutUnits int64
	RoundsPlayed     int

	// COMMIT_REVEAL: beacon da casa capturado na liquidação (hex). Fica no
	// registro pra qualquer um recomputar sha256(reveal || beacon) e
	// conferir o resultado. Vazio na variante oráculo.
	Beacon string
}
