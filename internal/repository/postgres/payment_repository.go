package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/billforge/billforge/internal/domain/payment"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) payment.Repository {
	return &paymentRepository{db: db}
}

type paymentRow struct {
	ID               string          `db:"id"`
	OrderID          string          `db:"order_id"`
	PaymentMethodID  string          `db:"payment_method_id"`
	PaymentGatewayID string          `db:"payment_gateway_id"`
	Amount           decimal.Decimal `db:"amount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	ErrorMessage     *string         `db:"error_message"`
	SucceededAt      *time.Time      `db:"succeeded_at"`
	FailedAt         *time.Time      `db:"failed_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func toPaymentRow(pay *payment.Payment) *paymentRow {
	return &paymentRow{
		ID:               pay.ID,
		OrderID:          pay.OrderID,
		PaymentMethodID:  pay.PaymentMethodID,
		PaymentGatewayID: pay.PaymentGatewayID,
		Amount:           pay.Amount,
		Currency:         pay.Currency,
		Status:           pay.Status.String(),
		ErrorMessage:     pay.ErrorMessage,
		SucceededAt:      pay.SucceededAt,
		FailedAt:         pay.FailedAt,
		CreatedAt:        pay.CreatedAt,
		UpdatedAt:        pay.UpdatedAt,
	}
}

func (r *paymentRow) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:               r.ID,
		OrderID:          r.OrderID,
		PaymentMethodID:  r.PaymentMethodID,
		PaymentGatewayID: r.PaymentGatewayID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Status:           types.PaymentStatus(r.Status),
		ErrorMessage:     r.ErrorMessage,
		SucceededAt:      r.SucceededAt,
		FailedAt:         r.FailedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const paymentColumns = `id, order_id, payment_method_id, payment_gateway_id, amount,
	currency, status, error_message, succeeded_at, failed_at, created_at, updated_at`

const insertPayment = `INSERT INTO payments (` + paymentColumns + `) VALUES (
	:id, :order_id, :payment_method_id, :payment_gateway_id, :amount,
	:currency, :status, :error_message, :succeeded_at, :failed_at, :created_at, :updated_at)`

const updatePayment = `UPDATE payments SET
	order_id = :order_id, payment_method_id = :payment_method_id,
	payment_gateway_id = :payment_gateway_id, amount = :amount, currency = :currency,
	status = :status, error_message = :error_message, succeeded_at = :succeeded_at,
	failed_at = :failed_at, updated_at = :updated_at
	WHERE id = :id`

func (r *paymentRepository) Create(ctx context.Context, pay *payment.Payment) error {
	if _, err := r.db.NamedExecContext(ctx, insertPayment, toPaymentRow(pay)); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to insert payment %s", pay.ID).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var row paymentRow
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("payment not found").
				WithHintf("no payment with id %s", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHintf("failed to load payment %s", id).
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain(), nil
}

func (r *paymentRepository) Update(ctx context.Context, pay *payment.Payment) error {
	result, err := r.db.NamedExecContext(ctx, updatePayment, toPaymentRow(pay))
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to update payment %s", pay.ID).
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewError("payment not found").
			WithHintf("no payment with id %s", pay.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*payment.Payment, error) {
	var rows []paymentRow
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to list payments for order %s", orderID).
			Mark(ierr.ErrDatabase)
	}
	payments := make([]*payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toDomain())
	}
	return payments, nil
}

func (r *paymentRepository) IsOrderPaid(ctx context.Context, orderID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments WHERE order_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &count, query, orderID, types.PaymentStatusSucceeded.String()); err != nil {
		return false, ierr.WithError(err).
			WithHintf("failed to check payments for order %s", orderID).
			Mark(ierr.ErrDatabase)
	}
	return count > 0, nil
}
