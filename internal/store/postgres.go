package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laju/internal/apperr"
	"laju/internal/identity"
	"laju/internal/quote"
	"laju/internal/shipment"
)

//go:embed schema.sql
var schemaSQL string

// Postgres stores users and shipments in the tables of schema.sql.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return apperr.Unavailable("ensure schema", err)
	}
	return nil
}

func (p *Postgres) FindByUsername(ctx context.Context, username string) (identity.UserRecord, error) {
	var u identity.UserRecord
	err := p.db.QueryRow(ctx, `
        SELECT username, name, branch, role, password_hash
        FROM users WHERE username = $1`, username).
		Scan(&u.Username, &u.Name, &u.Branch, &u.Role, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.UserRecord{}, identity.ErrNotFound
		}
		return identity.UserRecord{}, apperr.Unavailable("find user", err)
	}
	return u, nil
}

func (p *Postgres) PutUser(ctx context.Context, u identity.UserRecord) error {
	_, err := p.db.Exec(ctx, `
        INSERT INTO users (username, name, branch, role, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (username) DO UPDATE
        SET name = EXCLUDED.name, branch = EXCLUDED.branch,
            role = EXCLUDED.role, password_hash = EXCLUDED.password_hash`,
		u.Username, u.Name, u.Branch, u.Role, u.PasswordHash)
	if err != nil {
		return apperr.Unavailable("put user", err)
	}
	return nil
}

const shipmentColumns = `
        resi, tier, weight_g, declared_value_cents, insurance_requested,
        payment_method, base_fee_cents, insurance_fee_cents,
        cod_surcharge_cents, total_cents, status, branch, operator,
        payment_ref, created_at, updated_at`

func scanRecord(row pgx.Row) (shipment.Record, error) {
	var (
		r                                     shipment.Record
		tier, method, status                  string
		weight, declared, base, ins, cod, tot int64
	)
	if err := row.Scan(&r.Resi, &tier, &weight, &declared, &r.InsuranceRequested,
		&method, &base, &ins, &cod, &tot, &status, &r.Branch, &r.Operator,
		&r.PaymentRef, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return shipment.Record{}, err
	}
	r.Tier = quote.Tier(tier)
	r.PaymentMethod = quote.PaymentMethod(method)
	r.Status = shipment.ParseStatus(status)
	r.Weight = quote.Weight(weight)
	r.DeclaredValue = quote.Money(declared)
	r.BaseFee = quote.Money(base)
	r.InsuranceFee = quote.Money(ins)
	r.CODSurcharge = quote.Money(cod)
	r.Total = quote.Money(tot)
	return r, nil
}

func (p *Postgres) GetShipment(ctx context.Context, resi string) (shipment.Record, error) {
	r, err := scanRecord(p.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE resi = $1`, resi))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shipment.Record{}, shipment.ErrRecordNotFound
		}
		return shipment.Record{}, apperr.Unavailable("get shipment", err)
	}
	return r, nil
}

func (p *Postgres) ListActiveShipments(ctx context.Context) ([]shipment.Record, error) {
	return p.listShipments(ctx, "list shipments", `
        SELECT `+shipmentColumns+`
        FROM shipments
        WHERE status <> $1
        ORDER BY created_at`, string(shipment.StatusDelivered))
}

// ListArchivedShipments returns delivered shipments, latest delivery last.
func (p *Postgres) ListArchivedShipments(ctx context.Context) ([]shipment.Record, error) {
	return p.listShipments(ctx, "list archive", `
        SELECT `+shipmentColumns+`
        FROM shipments
        WHERE status = $1
        ORDER BY updated_at`, string(shipment.StatusDelivered))
}

func (p *Postgres) listShipments(ctx context.Context, op, query string, args ...any) ([]shipment.Record, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	defer rows.Close()

	var out []shipment.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Unavailable("scan shipment", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	return out, nil
}

func (p *Postgres) SaveShipment(ctx context.Context, r shipment.Record) error {
	_, err := p.db.Exec(ctx, `
        INSERT INTO shipments (
            resi, tier, weight_g, declared_value_cents, insurance_requested,
            payment_method, base_fee_cents, insurance_fee_cents,
            cod_surcharge_cents, total_cents, status, branch, operator,
            payment_ref, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (resi) DO UPDATE SET
            status = EXCLUDED.status,
            payment_ref = EXCLUDED.payment_ref,
            updated_at = EXCLUDED.updated_at`,
		r.Resi, string(r.Tier), r.Weight.Grams(), r.DeclaredValue.Cents(), r.InsuranceRequested,
		string(r.PaymentMethod), r.BaseFee.Cents(), r.InsuranceFee.Cents(),
		r.CODSurcharge.Cents(), r.Total.Cents(), string(r.Status), r.Branch, r.Operator,
		r.PaymentRef, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		return apperr.Unavailable("save shipment", err)
	}
	return nil
}

// UpdateStatus locks the row, checks the hand-over step and writes it.
func (p *Postgres) UpdateStatus(ctx context.Context, resi string, status shipment.Status, at time.Time) error {
	var stepErr error
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM shipments WHERE resi = $1 FOR UPDATE`, resi).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				stepErr = shipment.ErrRecordNotFound
				return stepErr
			}
			return err
		}
		if stepErr = shipment.CheckAdvance(shipment.ParseStatus(current), status); stepErr != nil {
			return stepErr
		}
		_, err = tx.Exec(ctx, `UPDATE shipments SET status = $2, updated_at = $3 WHERE resi = $1`,
			resi, string(status), at.UTC())
		return err
	})
	if stepErr != nil {
		return stepErr
	}
	if err != nil {
		return apperr.Unavailable("update shipment status", err)
	}
	return nil
}
