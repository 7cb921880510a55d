package ledger

import (
	"errors"
	"sync"
)

var (
	ErrNotFound         = errors.New("bet not found")
	ErrDuplicateID      = errors.New("bet id already in use")
	ErrAlreadyFinalized = errors.New("bet already settled or refunded")
)

// Ledger guarda os registros de aposta numa arena endereçada por índice
// estável; byID e byHandle são índices secundários sobre a arena. Registros
// nunca são removidos, mas a entrada em byHandle é liberada na transição
// terminal para limitar o crescimento dos índices auxiliares.
//
// O serializador de operações é o Service; o RWMutex daqui só protege as
// leituras concorrentes do caminho de consulta.
type Ledger struct {
	mu       sync.RWMutex
	arena    []*Bet
	byID     map[uint64]int
	byHandle map[uint64]int

	// Contador monotônico para ids de apostas via oráculo.
	nextOracleID uint64
}

func New() *Ledger {
	return &Ledger{
		byID:         map[uint64]int{},
		byHandle:     map[uint64]int{},
		nextOracleID: 1,
	}
}

// NextOracleID emite o próximo id para apostas da variante oráculo.
// Ids de commit-reveal vêm do caller; os do oráculo, daqui.
func (l *Ledger) NextOracleID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextOracleID
	l.nextOracleID++
	return id
}

// Insert registra uma aposta recém-colocada (estado PENDING).
func (l *Ledger) Insert(b *Bet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[b.ID]; ok {
		return ErrDuplicateID
	}
	b.Status = StatusPending
	l.arena = append(l.arena, b)
	idx := len(l.arena) - 1
	l.byID[b.ID] = idx
	if b.Variant == VariantOracle {
		l.byHandle[b.RequestHandle] = idx
	}
	return nil
}

// Get retorna uma cópia do registro (o original só muda sob o serializador).
func (l *Ledger) Get(id uint64) (Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return *l.arena[idx], nil
}

// ByHandle resolve um handle de aleatoriedade para a aposta dona dele.
// Handles de apostas já finalizadas não resolvem mais (índice liberado).
func (l *Ledger) ByHandle(handle uint64) (Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byHandle[handle]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return *l.arena[idx], nil
}

// MarkSettled aplica PENDING -> SETTLED e grava o resultado. O beacon vem
// em hex (vazio na variante oráculo, que não tem beacon).
func (l *Ledger) MarkSettled(id uint64, outcomes []int64, payouts []int64, totalPayout int64, roundsPlayed int, beacon string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.pendingLocked(id)
	if err != nil {
		return err
	}
	b.Status = StatusSettled
	b.Outcomes = outcomes
	b.PayoutsUnits = payouts
	b.TotalPayoutUnits = totalPayout
	b.RoundsPlayed = roundsPlayed
	b.Beacon = beacon
	l.releaseHandleLocked(b)
	return nil
}

// MarkRefunded aplica PENDING -> REFUNDED. O prêmio registrado é zerado;
// o que volta pro dono é a devolução da reserva, não um ganho.
func (l *Ledger) MarkRefunded(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.pendingLocked(id)
	if err != nil {
		return err
	}
	b.Status = StatusRefunded
	b.TotalPayoutUnits = 0
	b.RoundsPlayed = 0
	l.releaseHandleLocked(b)
	return nil
}

// CountByStatus conta registros por estado (endpoint de status/observabilidade).
func (l *Ledger) CountByStatus(status string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, b := range l.arena {
		if b.Status == status {
			n++
		}
	}
	return n
}

func (l *Ledger) pendingLocked(id uint64) (*Bet, error) {
	idx, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	b := l.arena[idx]
	if b.Status != StatusPending {
		return nil, ErrAlreadyFinalized
	}
	return b, nil
}

func (l *Ledger) releaseHandleLocked(b *Bet) {
	if b.Variant == VariantOracle {
		delete(l.byHandle, b.RequestHandle)
	}
}
