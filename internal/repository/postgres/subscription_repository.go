package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

type subscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) subscription.Repository {
	return &subscriptionRepository{db: db}
}

// subscriptionRow is the flat database shape of a subscription. Order ids
// and scheduled changes are stored as JSON documents.
type subscriptionRow struct {
	ID                 string          `db:"id"`
	CustomerID         string          `db:"customer_id"`
	StoreID            string          `db:"store_id"`
	BillingScheduleID  string          `db:"billing_schedule_id"`
	SubscriptionTypeID string          `db:"subscription_type_id"`
	PaymentMethodID    string          `db:"payment_method_id"`
	PaymentGatewayID   string          `db:"payment_gateway_id"`
	BillingProfileID   string          `db:"billing_profile_id"`
	PurchasedItemID    string          `db:"purchased_item_id"`
	Title              string          `db:"title"`
	Quantity           decimal.Decimal `db:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price"`
	Currency           string          `db:"currency"`
	Status             string          `db:"status"`
	StartDate          time.Time       `db:"start_date"`
	TrialStart         *time.Time      `db:"trial_start"`
	TrialEnd           *time.Time      `db:"trial_end"`
	NextRenewalAt      *time.Time      `db:"next_renewal_at"`
	RenewedAt          *time.Time      `db:"renewed_at"`
	OrderIDs           []byte          `db:"order_ids"`
	ScheduledChanges   []byte          `db:"scheduled_changes"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func toSubscriptionRow(sub *subscription.Subscription) (*subscriptionRow, error) {
	orderIDs, err := json.Marshal(sub.OrderIDs)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to marshal order ids for subscription %s", sub.ID).
			Mark(ierr.ErrSystem)
	}
	changes, err := json.Marshal(sub.ScheduledChanges)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to marshal scheduled changes for subscription %s", sub.ID).
			Mark(ierr.ErrSystem)
	}
	return &subscriptionRow{
		ID:                 sub.ID,
		CustomerID:         sub.CustomerID,
		StoreID:            sub.StoreID,
		BillingScheduleID:  sub.BillingScheduleID,
		SubscriptionTypeID: sub.SubscriptionTypeID,
		PaymentMethodID:    sub.PaymentMethodID,
		PaymentGatewayID:   sub.PaymentGatewayID,
		BillingProfileID:   sub.BillingProfileID,
		PurchasedItemID:    sub.PurchasedItemID,
		Title:              sub.Title,
		Quantity:           sub.Quantity,
		UnitPrice:          sub.UnitPrice,
		Currency:           sub.Currency,
		Status:             sub.Status.String(),
		StartDate:          sub.StartDate,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
		NextRenewalAt:      sub.NextRenewalAt,
		RenewedAt:          sub.RenewedAt,
		OrderIDs:           orderIDs,
		ScheduledChanges:   changes,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}, nil
}

func (r *subscriptionRow) toDomain() (*subscription.Subscription, error) {
	sub := &subscription.Subscription{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		StoreID:            r.StoreID,
		BillingScheduleID:  r.BillingScheduleID,
		SubscriptionTypeID: r.SubscriptionTypeID,
		PaymentMethodID:    r.PaymentMethodID,
		PaymentGatewayID:   r.PaymentGatewayID,
		BillingProfileID:   r.BillingProfileID,
		PurchasedItemID:    r.PurchasedItemID,
		Title:              r.Title,
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		Currency:           r.Currency,
		Status:             types.SubscriptionStatus(r.Status),
		StartDate:          r.StartDate,
		TrialStart:         r.TrialStart,
		TrialEnd:           r.TrialEnd,
		NextRenewalAt:      r.NextRenewalAt,
		RenewedAt:          r.RenewedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.OrderIDs) > 0 {
		if err := json.Unmarshal(r.OrderIDs, &sub.OrderIDs); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("failed to unmarshal order ids for subscription %s", r.ID).
				Mark(ierr.ErrDatabase)
		}
	}
	if len(r.ScheduledChanges) > 0 {
		if err := json.Unmarshal(r.ScheduledChanges, &sub.ScheduledChanges); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("failed to unmarshal scheduled changes for subscription %s", r.ID).
				Mark(ierr.ErrDatabase)
		}
	}
	return sub, nil
}

const subscriptionColumns = `id, customer_id, store_id, billing_schedule_id, subscription_type_id,
	payment_method_id, payment_gateway_id, billing_profile_id, purchased_item_id, title,
	quantity, unit_price, currency, status, start_date, trial_start, trial_end,
	next_renewal_at, renewed_at, order_ids, scheduled_changes, created_at, updated_at`

const insertSubscription = `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES (
	:id, :customer_id, :store_id, :billing_schedule_id, :subscription_type_id,
	:payment_method_id, :payment_gateway_id, :billing_profile_id, :purchased_item_id, :title,
	:quantity, :unit_price, :currency, :status, :start_date, :trial_start, :trial_end,
	:next_renewal_at, :renewed_at, :order_ids, :scheduled_changes, :created_at, :updated_at)`

const updateSubscription = `UPDATE subscriptions SET
	customer_id = :customer_id, store_id = :store_id,
	billing_schedule_id = :billing_schedule_id, subscription_type_id = :subscription_type_id,
	payment_method_id = :payment_method_id, payment_gateway_id = :payment_gateway_id,
	billing_profile_id = :billing_profile_id, purchased_item_id = :purchased_item_id,
	title = :title, quantity = :quantity, unit_price = :unit_price, currency = :currency,
	status = :status, start_date = :start_date, trial_start = :trial_start,
	trial_end = :trial_end, next_renewal_at = :next_renewal_at, renewed_at = :renewed_at,
	order_ids = :order_ids, scheduled_changes = :scheduled_changes, updated_at = :updated_at
	WHERE id = :id`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	row, err := toSubscriptionRow(sub)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertSubscription, row); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to insert subscription %s", sub.ID).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var row subscriptionRow
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHintf("no subscription with id %s", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHintf("failed to load subscription %s", id).
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain()
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	row, err := toSubscriptionRow(sub)
	if err != nil {
		return err
	}
	result, err := r.db.NamedExecContext(ctx, updateSubscription, row)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to update subscription %s", sub.ID).
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("no subscription with id %s", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to delete subscription %s", id).
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("no subscription with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	args := map[string]interface{}{}

	if filter != nil {
		if filter.CustomerID != "" {
			query += ` AND customer_id = :customer_id`
			args["customer_id"] = filter.CustomerID
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, status.String())
			}
			query += ` AND status IN (:statuses)`
			args["statuses"] = statuses
		}
		if filter.StartsBefore != nil {
			query += ` AND start_date <= :starts_before`
			args["starts_before"] = *filter.StartsBefore
		}
	}
	query += ` ORDER BY id`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT :limit`
		args["limit"] = filter.Limit
	}

	rows, err := r.listRows(ctx, query, args)
	if err != nil {
		return nil, err
	}

	subs := make([]*subscription.Subscription, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (r *subscriptionRepository) listRows(ctx context.Context, query string, args map[string]interface{}) ([]subscriptionRow, error) {
	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to build subscription list query").
			Mark(ierr.ErrDatabase)
	}
	named, namedArgs, err = sqlx.In(named, namedArgs...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to expand subscription list query").
			Mark(ierr.ErrDatabase)
	}

	var rows []subscriptionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(named), namedArgs...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return rows, nil
}
