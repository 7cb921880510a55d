package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Postgres implementa o pool de liquidez da casa em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient free funds")
	ErrNotFound          = errors.New("not found")
)

// GetOrCreatePool retorna saldo e reservado de um pool, criando se não existir
// Usa transação para garantir atomicidade
func (p *Postgres) GetOrCreatePool(ctx context.Context, assetID string) (balance, reserved int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `SELECT balance_units, reserved_units FROM pools WHERE asset_id=$1`, assetID).
		Scan(&balance, &reserved)
	if err == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO pools(asset_id, balance_units, reserved_units, version) VALUES($1,0,0,1)`,
			assetID); err != nil {
			return 0, 0, err
		}
		balance, reserved = 0, 0
	} else if err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return balance, reserved, nil
}

// Deposit incrementa o saldo do pool e registra a operação no ledger
// Garante lock pessimista na linha do pool
func (p *Postgres) Deposit(ctx context.Context, assetID string, amount int64, externalRef string) (newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err = tx.QueryRowContext(ctx, `SELECT asset_id FROM pools WHERE asset_id=$1 FOR UPDATE`, assetID).Scan(&assetID); err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE pools SET balance_units = balance_units + $1, version = version + 1 WHERE asset_id=$2`, amount, assetID); err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO pool_ledger(asset_id, operation_type, amount_units, description) VALUES($1,'DEPOSIT',$2,$3)`,
		assetID, amount, "deposit:"+externalRef); err != nil {
		return 0, err
	}

	if err = tx.QueryRowContext(ctx, `SELECT balance_units FROM pools WHERE asset_id=$1`, assetID).Scan(&newBalance); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Reserve bloqueia o pior caso de pagamento de uma aposta contra os fundos
// livres do pool (free = balance - reserved). É o controle de admissão que
// impede a casa de aceitar aposta que não consegue pagar.
// Garante idempotência por (asset_id, external_ref)
func (p *Postgres) Reserve(ctx context.Context, assetID string, amount int64, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var balance, reserved int64
	if err = tx.QueryRowContext(ctx, `SELECT balance_units, reserved_units FROM pools WHERE asset_id=$1 FOR UPDATE`, assetID).
		Scan(&balance, &reserved); err != nil {
		return "", err
	}

	if balance-reserved < amount {
		return "", ErrInsufficientFunds
	}

	// Idempotência: verifica se já existe reserva ativa para o mesmo external_ref
	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM pool_reservations WHERE asset_id=$1 AND external_ref=$2 AND status='RESERVED'`,
		assetID, externalRef).Scan(&exists)

	if err == nil {
		return exists, nil // já existe
	} else if err != sql.ErrNoRows {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE pools SET reserved_units = reserved_units + $1, version = version + 1 WHERE asset_id=$2`, amount, assetID); err != nil {
		return "", err
	}

	reservationID = uuid.New().String()
	if _, err = tx.ExecContext(ctx, `INSERT INTO pool_reservations(id, asset_id, external_ref, amount_units, status) VALUES($1,$2,$3,$4,'RESERVED')`,
		reservationID, assetID, externalRef, amount); err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO pool_ledger(asset_id, operation_type, amount_units, description) VALUES($1,'RESERVE',$2,$3)`,
		assetID, amount, "reserve:"+externalRef); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	return reservationID, nil
}

// Release desfaz a reserva pelo valor exato bloqueado na colocação.
// Idempotente: se já estiver liberada, só retorna o valor
func (p *Postgres) Release(ctx context.Context, assetID, externalRef string) (amount int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var resID, status string
	err = tx.QueryRowContext(ctx, `
		SELECT pr.id, pr.amount_units, pr.status
		FROM pool_reservations pr
		JOIN pools p ON p.asset_id = pr.asset_id
		WHERE pr.asset_id=$1 AND pr.external_ref=$2
		FOR UPDATE OF p, pr`, assetID, externalRef).Scan(&resID, &amount, &status)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	if status == "RELEASED" {
		return amount, nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE pool_reservations SET status='RELEASED' WHERE id=$1`, resID); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE pools SET reserved_units = reserved_units - $1, version = version + 1 WHERE asset_id=$2`, amount, assetID); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO pool_ledger(asset_id, operation_type, amount_units, description) VALUES($1,'RELEASE',$2,$3)`,
		assetID, amount, "release:"+externalRef); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return amount, nil
}

// FreeFunds retorna balance - reserved do pool
func (p *Postgres) FreeFunds(ctx context.Context, assetID string) (int64, error) {
	var balance, reserved int64
	err := p.db.QueryRowContext(ctx, `SELECT balance_units, reserved_units FROM pools WHERE asset_id=$1`, assetID).
		Scan(&balance, &reserved)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}
	return balance - reserved, nil
}
