/**
 * @description
 * PostgreSQL implementation of the Repository interface using pgx. State
 * transitions on payment requests and transactions are enforced in SQL with
 * conditional UPDATE ... WHERE status checks so concurrent callers race on the
 * database row, not on application locks.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afan2g/tacto-backend/internal/domain"
)

// PostgresRepository provides data access against a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindUserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM users WHERE auth_subject = $1`, subject).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, handle, full_name FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Handle, &u.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, handle, full_name FROM users WHERE lower(btrim(handle)) = lower(btrim($1))`, handle).
		Scan(&u.ID, &u.Handle, &u.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindWalletOwner is the first hop of the address -> owner -> profile lookup
// used by reconciliation. Addresses are stored lowercased.
func (r *PostgresRepository) FindWalletOwner(ctx context.Context, address string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM wallets WHERE lower(address) = lower($1)`, address).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO transactions (
            id, from_user_id, to_user_id, from_address, to_address,
            amount, method_id, request_id, hash, status, fee, asset
        )
        VALUES ($1, $2, $3, lower($4), lower($5), $6, $7, $8, lower($9), $10, $11, $12)
        RETURNING created_at, updated_at`,
		tx.ID, tx.FromUserID, tx.ToUserID, tx.FromAddress, tx.ToAddress,
		tx.Amount, tx.MethodID, tx.RequestID, tx.Hash, tx.Status, tx.Fee, tx.Asset,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation on the hash index.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindTransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.QueryRow(ctx, `
        SELECT id, from_user_id, to_user_id, from_address, to_address,
               amount, method_id, request_id, hash, status, fee, asset,
               created_at, updated_at
        FROM transactions WHERE hash = lower($1)`, hash).
		Scan(&tx.ID, &tx.FromUserID, &tx.ToUserID, &tx.FromAddress, &tx.ToAddress,
			&tx.Amount, &tx.MethodID, &tx.RequestID, &tx.Hash, &tx.Status, &tx.Fee, &tx.Asset,
			&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *PostgresRepository) ConfirmTransactionByHash(ctx context.Context, hash string, fee string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE transactions
        SET status = $2, fee = $3, updated_at = NOW()
        WHERE hash = lower($1) AND status = $4`,
		hash, domain.TxStatusConfirmed, fee, domain.TxStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) MarkTransactionFailedByHash(ctx context.Context, hash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE transactions
        SET status = $2, updated_at = NOW()
        WHERE hash = lower($1) AND status = $3`,
		hash, domain.TxStatusFailed, domain.TxStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) ListStalePendingTransactions(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, from_user_id, to_user_id, from_address, to_address,
               amount, method_id, request_id, hash, status, fee, asset,
               created_at, updated_at
        FROM transactions
        WHERE status = $1 AND created_at < $2
        ORDER BY created_at ASC
        LIMIT $3`, domain.TxStatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.FromUserID, &tx.ToUserID, &tx.FromAddress, &tx.ToAddress,
			&tx.Amount, &tx.MethodID, &tx.RequestID, &tx.Hash, &tx.Status, &tx.Fee, &tx.Asset,
			&tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListTransactionsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, from_user_id, to_user_id, from_address, to_address,
               amount, method_id, request_id, hash, status, fee, asset,
               created_at, updated_at
        FROM transactions
        WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.FromUserID, &tx.ToUserID, &tx.FromAddress, &tx.ToAddress,
			&tx.Amount, &tx.MethodID, &tx.RequestID, &tx.Hash, &tx.Status, &tx.Fee, &tx.Asset,
			&tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const paymentRequestColumns = `
        pr.id,
        pr.requester_id,
        pr.requestee_id,
        btrim(ru.handle) AS requester_handle,
        btrim(eu.handle) AS requestee_handle,
        pr.amount,
        pr.memo,
        pr.status,
        pr.settled_transaction_id,
        pr.last_reminder_sent_at,
        pr.created_at,
        pr.updated_at`

func scanPaymentRequest(row pgx.Row) (*domain.PaymentRequest, error) {
	var item domain.PaymentRequest
	err := row.Scan(
		&item.ID,
		&item.RequesterID,
		&item.RequesteeID,
		&item.RequesterHandle,
		&item.RequesteeHandle,
		&item.Amount,
		&item.Memo,
		&item.Status,
		&item.SettledTxID,
		&item.LastReminderSentAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
        WITH created AS (
            INSERT INTO payment_requests (id, requester_id, requestee_id, amount, memo, status)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING *
        )
        SELECT `+paymentRequestColumns+`
        FROM created pr
        LEFT JOIN users ru ON ru.id = pr.requester_id
        LEFT JOIN users eu ON eu.id = pr.requestee_id`,
		req.ID, req.RequesterID, req.RequesteeID, req.Amount, req.Memo, domain.RequestStatusPending)
	return scanPaymentRequest(row)
}

func (r *PostgresRepository) GetPaymentRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PaymentRequest, error) {
	row := r.db.QueryRow(ctx, `
        SELECT `+paymentRequestColumns+`
        FROM payment_requests pr
        LEFT JOIN users ru ON ru.id = pr.requester_id
        LEFT JOIN users eu ON eu.id = pr.requestee_id
        WHERE pr.id = $1`, requestID)
	item, err := scanPaymentRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *PostgresRepository) listPaymentRequests(ctx context.Context, column string, ownerID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
        SELECT ` + paymentRequestColumns + `
        FROM payment_requests pr
        LEFT JOIN users ru ON ru.id = pr.requester_id
        LEFT JOIN users eu ON eu.id = pr.requestee_id
        WHERE pr.` + column + ` = $1
          AND ($2 = '' OR pr.status = $2)
        ORDER BY pr.created_at DESC
        LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, ownerID, opts.Status, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentRequest
	for rows.Next() {
		item, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListPaymentRequestsByRequester(ctx context.Context, requesterID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error) {
	return r.listPaymentRequests(ctx, "requester_id", requesterID, opts)
}

func (r *PostgresRepository) ListIncomingPaymentRequests(ctx context.Context, requesteeID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error) {
	return r.listPaymentRequests(ctx, "requestee_id", requesteeID, opts)
}

// FulfillPaymentRequest applies the pending -> fulfilled transition. The WHERE
// clause is the test-and-set: of two concurrent fulfillment attempts exactly
// one matches a pending row, the other observes ErrRequestNotPending.
func (r *PostgresRepository) FulfillPaymentRequest(ctx context.Context, requestID, requesteeID, settledTxID uuid.UUID) (*domain.PaymentRequest, error) {
	row := r.db.QueryRow(ctx, `
        WITH fulfilled AS (
            UPDATE payment_requests
            SET status = $4,
                settled_transaction_id = $3,
                updated_at = NOW()
            WHERE id = $1
              AND requestee_id = $2
              AND status = $5
            RETURNING *
        )
        SELECT `+paymentRequestColumns+`
        FROM fulfilled pr
        LEFT JOIN users ru ON ru.id = pr.requester_id
        LEFT JOIN users eu ON eu.id = pr.requestee_id`,
		requestID, requesteeID, settledTxID, domain.RequestStatusFulfilled, domain.RequestStatusPending)
	item, err := scanPaymentRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotPending
		}
		return nil, err
	}
	return item, nil
}

func (r *PostgresRepository) DeclinePaymentRequest(ctx context.Context, requestID, requesteeID uuid.UUID) (*domain.PaymentRequest, error) {
	row := r.db.QueryRow(ctx, `
        WITH declined AS (
            UPDATE payment_requests
            SET status = $3,
                updated_at = NOW()
            WHERE id = $1
              AND requestee_id = $2
              AND status = $4
            RETURNING *
        )
        SELECT `+paymentRequestColumns+`
        FROM declined pr
        LEFT JOIN users ru ON ru.id = pr.requester_id
        LEFT JOIN users eu ON eu.id = pr.requestee_id`,
		requestID, requesteeID, domain.RequestStatusDeclined, domain.RequestStatusPending)
	item, err := scanPaymentRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotPending
		}
		return nil, err
	}
	return item, nil
}

func (r *PostgresRepository) TouchReminderSentAt(ctx context.Context, requestID uuid.UUID, sentAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE payment_requests
        SET last_reminder_sent_at = $2, updated_at = NOW()
        WHERE id = $1`, requestID, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePaymentRequests sweeps stale pending requests into the terminal
// expired state. Only pending rows ever match.
func (r *PostgresRepository) ExpirePaymentRequests(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE payment_requests
        SET status = $2, updated_at = NOW()
        WHERE status = $1 AND created_at < $3`,
		domain.RequestStatusPending, domain.RequestStatusExpired, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
