package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	idempotencyTable  = "idempotency_keys"
)

// DB is the part of *pgxpool.Pool the repo uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Repo is the Postgres implementation of Store.
type Repo struct{ DB DB }

var _ Store = (*Repo)(nil)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isKeyConflict matches only unique violations on idempotency_keys; a
// duplicate payment_intent_id is a plain failure.
func isKeyConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return pgErr.TableName == idempotencyTable || strings.HasPrefix(pgErr.ConstraintName, idempotencyTable)
}

func (r *Repo) ProductBySKU(ctx context.Context, sku string) (Product, error) {
	var row productRow
	err := r.DB.QueryRow(ctx, `
		SELECT sku, name, metal, weight_oz, premium_cents, active
		FROM products WHERE sku=$1`, sku,
	).Scan(&row.sku, &row.name, &row.metal, &row.weightOz, &row.premiumCents, &row.active)
	if err != nil {
		return Product{}, notFound(err)
	}
	return row.toProduct(), nil
}

func (r *Repo) LatestSpot(ctx context.Context, metal string) (SpotPrice, error) {
	var row spotRow
	err := r.DB.QueryRow(ctx, `
		SELECT id, metal, price_per_oz_cents, as_of
		FROM spot_prices WHERE metal=$1
		ORDER BY as_of DESC, id DESC LIMIT 1`, metal,
	).Scan(&row.id, &row.metal, &row.pricePerOzCents, &row.asOf)
	if err != nil {
		return SpotPrice{}, notFound(err)
	}
	return row.toSpot(), nil
}

func (r *Repo) CreateQuote(ctx context.Context, q Quote) (Quote, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO price_quotes(user_id, sku, qty, unit_price_cents, quote_expires_at,
		                         basis_spot_cents, basis_version, tolerance_bps)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		q.UserID, q.SKU, q.Qty, q.UnitPriceCents, q.ExpiresAt,
		q.BasisSpotCents, q.BasisVersion, q.ToleranceBps,
	).Scan(&q.ID)
	if err != nil {
		return Quote{}, fmt.Errorf("insert quote: %w", err)
	}
	return q, nil
}

func (r *Repo) QuoteByID(ctx context.Context, id int64) (Quote, error) {
	var row quoteRow
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, sku, qty, unit_price_cents, quote_expires_at,
		       basis_spot_cents, basis_version, tolerance_bps
		FROM price_quotes WHERE id=$1`, id,
	).Scan(&row.id, &row.userID, &row.sku, &row.qty, &row.unitPriceCents, &row.expiresAt,
		&row.basisSpotCents, &row.basisVersion, &row.toleranceBps)
	if err != nil {
		return Quote{}, notFound(err)
	}
	return row.toQuote(), nil
}

func (r *Repo) IdempotencyKey(ctx context.Context, key, purpose string) (IdempotencyKey, error) {
	var row idempotencyRow
	err := r.DB.QueryRow(ctx, `
		SELECT key, purpose, order_id, created_at
		FROM idempotency_keys WHERE key=$1 AND purpose=$2`, key, purpose,
	).Scan(&row.key, &row.purpose, &row.orderID, &row.createdAt)
	if err != nil {
		return IdempotencyKey{}, notFound(err)
	}
	return row.toKey(), nil
}

func (r *Repo) CreateOrder(ctx context.Context, in NewOrder) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row orderRow
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_cents, status, payment_intent_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id, user_id, total_cents, status, payment_intent_id, created_at`,
		in.UserID, TotalOf(in.Lines), string(StatusPending), in.PaymentIntentID,
	).Scan(&row.id, &row.userID, &row.totalCents, &row.status, &row.paymentIntentID, &row.createdAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, l := range in.Lines {
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_lines(order_id, sku, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			row.id, l.SKU, l.Qty, l.UnitPriceCents, l.SubtotalCents,
		); err != nil {
			return Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}

	// the (key, purpose) constraint is what makes concurrent checkouts safe
	if _, err = tx.Exec(ctx, `
		INSERT INTO idempotency_keys(key, purpose, order_id)
		VALUES ($1,$2,$3)`, in.IdempotencyKey, in.Purpose, row.id,
	); err != nil {
		if isKeyConflict(err) {
			return Order{}, ErrIdempotencyConflict
		}
		return Order{}, fmt.Errorf("insert idempotency key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isKeyConflict(err) {
			return Order{}, ErrIdempotencyConflict
		}
		return Order{}, err
	}
	return row.toOrder(), nil
}

func (r *Repo) OrderByID(ctx context.Context, id int64) (Order, error) {
	return r.scanOrder(ctx, `
		SELECT id, user_id, total_cents, status, payment_intent_id, created_at
		FROM orders WHERE id=$1`, id)
}

func (r *Repo) OrderByPaymentIntent(ctx context.Context, paymentIntentID string) (Order, error) {
	return r.scanOrder(ctx, `
		SELECT id, user_id, total_cents, status, payment_intent_id, created_at
		FROM orders WHERE payment_intent_id=$1`, paymentIntentID)
}

func (r *Repo) scanOrder(ctx context.Context, sql string, arg any) (Order, error) {
	var row orderRow
	err := r.DB.QueryRow(ctx, sql, arg).
		Scan(&row.id, &row.userID, &row.totalCents, &row.status, &row.paymentIntentID, &row.createdAt)
	if err != nil {
		return Order{}, notFound(err)
	}
	return row.toOrder(), nil
}

func (r *Repo) OrderLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, sku, qty, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var row lineRow
		if err := rows.Scan(&row.orderID, &row.sku, &row.qty, &row.unitPriceCents, &row.subtotalCents); err != nil {
			return nil, err
		}
		out = append(out, row.toLine())
	}
	return out, rows.Err()
}

// ApplyTransition locks the row inside the statement so a late
// payment_authorized and a payment_captured for the same order serialize.
func (r *Repo) ApplyTransition(ctx context.Context, orderID int64, t Transition) (Status, bool, error) {
	var prev string
	err := r.DB.QueryRow(ctx, `
		UPDATE orders o SET status=$2
		FROM (SELECT id, status FROM orders WHERE id=$1 FOR UPDATE) old
		WHERE o.id = old.id AND ($3 = '' OR old.status = $3)
		RETURNING old.status`,
		orderID, string(t.To), string(t.From),
	).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return Status(prev), true, nil
}
