package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/casino-engine-poc/internal/engine/ledger"
)

// Postgres é o espelho de auditoria das apostas. O ledger em memória é a
// fonte de verdade do ciclo de vida; aqui fica o rastro durável.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// InsertPlaced grava uma aposta recém-colocada com status PENDING
func (p *Postgres) InsertPlaced(ctx context.Context, b *ledger.Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id,owner,variant,wager_units,modulo,mask,edge,is_larger,
		                  winning_count,rounds,win_per_round_units,reserved_units,status,placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'PENDING',$13)`,
		int64(b.ID), b.Owner, b.Variant, b.WagerUnits, b.Modulo, int64(b.Mask), b.Edge, b.IsLarger,
		b.WinningCount, b.Rounds, b.WinPerRoundUnits, b.ReservedUnits, b.PlacedAt,
	)
	return err
}

// MarkSettled atualiza o espelho com o resultado da liquidação
func (p *Postgres) MarkSettled(ctx context.Context, id uint64, totalPayoutUnits int64, roundsPlayed int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='SETTLED', total_payout_units=$1, rounds_played=$2, updated_at=NOW()
		WHERE id=$3`, totalPayoutUnits, roundsPlayed, int64(id))
	return err
}

// MarkRefunded atualiza o espelho com a devolução
func (p *Postgres) MarkRefunded(ctx context.Context, id uint64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='REFUNDED', total_payout_units=0, updated_at=NOW()
		WHERE id=$1`, int64(id))
	return err
}

// GetStatus retorna o status espelhado de uma aposta pelo id
func (p *Postgres) GetStatus(ctx context.Context, id uint64) (string, error) {
	var s string
	err := p.db.QueryRowContext(ctx, `SELECT status FROM bets WHERE id=$1`, int64(id)).Scan(&s)
	return s, err
}
