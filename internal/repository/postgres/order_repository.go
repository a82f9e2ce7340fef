package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/billforge/billforge/internal/domain/order"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

type orderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) order.Repository {
	return &orderRepository{db: db}
}

type orderRow struct {
	ID                string     `db:"id"`
	OrderNumber       string     `db:"order_number"`
	OrderType         string     `db:"order_type"`
	StoreID           string     `db:"store_id"`
	CustomerID        string     `db:"customer_id"`
	BillingScheduleID string     `db:"billing_schedule_id"`
	PeriodStart       *time.Time `db:"period_start"`
	PeriodEnd         *time.Time `db:"period_end"`
	BillingProfileID  string     `db:"billing_profile_id"`
	PaymentMethodID   string     `db:"payment_method_id"`
	PaymentGatewayID  string     `db:"payment_gateway_id"`
	Currency          string     `db:"currency"`
	Status            string     `db:"status"`
	CompletedAt       *time.Time `db:"completed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

type orderItemRow struct {
	ID                string          `db:"id"`
	OrderID           string          `db:"order_id"`
	SubscriptionID    string          `db:"subscription_id"`
	PurchasedItemID   string          `db:"purchased_item_id"`
	BillingScheduleID string          `db:"billing_schedule_id"`
	Title             string          `db:"title"`
	Quantity          decimal.Decimal `db:"quantity"`
	UnitPrice         decimal.Decimal `db:"unit_price"`
	Currency          string          `db:"currency"`
	PeriodStart       *time.Time      `db:"period_start"`
	PeriodEnd         *time.Time      `db:"period_end"`
	Adjustments       []byte          `db:"adjustments"`
	Position          int             `db:"position"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func periodColumns(period types.BillingPeriod) (*time.Time, *time.Time) {
	if period.IsZero() {
		return nil, nil
	}
	start, end := period.Start, period.End
	return &start, &end
}

func periodFromColumns(start, end *time.Time) types.BillingPeriod {
	if start == nil || end == nil {
		return types.BillingPeriod{}
	}
	return types.BillingPeriod{Start: *start, End: *end}
}

func toOrderRow(ord *order.Order) *orderRow {
	start, end := periodColumns(ord.BillingPeriod)
	return &orderRow{
		ID:                ord.ID,
		OrderNumber:       ord.OrderNumber,
		OrderType:         ord.OrderType.String(),
		StoreID:           ord.StoreID,
		CustomerID:        ord.CustomerID,
		BillingScheduleID: ord.BillingScheduleID,
		PeriodStart:       start,
		PeriodEnd:         end,
		BillingProfileID:  ord.BillingProfileID,
		PaymentMethodID:   ord.PaymentMethodID,
		PaymentGatewayID:  ord.PaymentGatewayID,
		Currency:          ord.Currency,
		Status:            ord.Status.String(),
		CompletedAt:       ord.CompletedAt,
		CreatedAt:         ord.CreatedAt,
		UpdatedAt:         ord.UpdatedAt,
	}
}

func (r *orderRow) toDomain() *order.Order {
	return &order.Order{
		ID:                r.ID,
		OrderNumber:       r.OrderNumber,
		OrderType:         types.OrderType(r.OrderType),
		StoreID:           r.StoreID,
		CustomerID:        r.CustomerID,
		BillingScheduleID: r.BillingScheduleID,
		BillingPeriod:     periodFromColumns(r.PeriodStart, r.PeriodEnd),
		BillingProfileID:  r.BillingProfileID,
		PaymentMethodID:   r.PaymentMethodID,
		PaymentGatewayID:  r.PaymentGatewayID,
		Currency:          r.Currency,
		Status:            types.OrderStatus(r.Status),
		CompletedAt:       r.CompletedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toOrderItemRow(orderID string, position int, item *order.LineItem) (*orderItemRow, error) {
	adjustments, err := json.Marshal(item.Adjustments)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to marshal adjustments for line item %s", item.ID).
			Mark(ierr.ErrSystem)
	}
	start, end := periodColumns(item.BillingPeriod)
	return &orderItemRow{
		ID:                item.ID,
		OrderID:           orderID,
		SubscriptionID:    item.SubscriptionID,
		PurchasedItemID:   item.PurchasedItemID,
		BillingScheduleID: item.BillingScheduleID,
		Title:             item.Title,
		Quantity:          item.Quantity,
		UnitPrice:         item.UnitPrice,
		Currency:          item.Currency,
		PeriodStart:       start,
		PeriodEnd:         end,
		Adjustments:       adjustments,
		Position:          position,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}, nil
}

func (r *orderItemRow) toDomain() (*order.LineItem, error) {
	item := &order.LineItem{
		ID:                r.ID,
		OrderID:           r.OrderID,
		SubscriptionID:    r.SubscriptionID,
		PurchasedItemID:   r.PurchasedItemID,
		BillingScheduleID: r.BillingScheduleID,
		Title:             r.Title,
		Quantity:          r.Quantity,
		UnitPrice:         r.UnitPrice,
		Currency:          r.Currency,
		BillingPeriod:     periodFromColumns(r.PeriodStart, r.PeriodEnd),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if len(r.Adjustments) > 0 {
		if err := json.Unmarshal(r.Adjustments, &item.Adjustments); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("failed to unmarshal adjustments for line item %s", r.ID).
				Mark(ierr.ErrDatabase)
		}
	}
	return item, nil
}

const orderColumns = `id, order_number, order_type, store_id, customer_id, billing_schedule_id,
	period_start, period_end, billing_profile_id, payment_method_id, payment_gateway_id,
	currency, status, completed_at, created_at, updated_at`

const orderItemColumns = `id, order_id, subscription_id, purchased_item_id, billing_schedule_id,
	title, quantity, unit_price, currency, period_start, period_end,
	adjustments, position, created_at, updated_at`

const insertOrder = `INSERT INTO orders (` + orderColumns + `) VALUES (
	:id, :order_number, :order_type, :store_id, :customer_id, :billing_schedule_id,
	:period_start, :period_end, :billing_profile_id, :payment_method_id, :payment_gateway_id,
	:currency, :status, :completed_at, :created_at, :updated_at)`

const updateOrder = `UPDATE orders SET
	order_number = :order_number, order_type = :order_type, store_id = :store_id,
	customer_id = :customer_id, billing_schedule_id = :billing_schedule_id,
	period_start = :period_start, period_end = :period_end,
	billing_profile_id = :billing_profile_id, payment_method_id = :payment_method_id,
	payment_gateway_id = :payment_gateway_id, currency = :currency, status = :status,
	completed_at = :completed_at, updated_at = :updated_at
	WHERE id = :id`

const insertOrderItem = `INSERT INTO order_items (` + orderItemColumns + `) VALUES (
	:id, :order_id, :subscription_id, :purchased_item_id, :billing_schedule_id,
	:title, :quantity, :unit_price, :currency, :period_start, :period_end,
	:adjustments, :position, :created_at, :updated_at)`

func (r *orderRepository) Create(ctx context.Context, ord *order.Order) error {
	return r.save(ctx, ord, false)
}

func (r *orderRepository) Update(ctx context.Context, ord *order.Order) error {
	return r.save(ctx, ord, true)
}

// save writes the order and replaces its line items in one transaction so a
// reader never observes an order with a partial item set.
func (r *orderRepository) save(ctx context.Context, ord *order.Order, update bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to begin order transaction").
			Mark(ierr.ErrDatabase)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := toOrderRow(ord)
	if update {
		result, err := tx.NamedExecContext(ctx, updateOrder, row)
		if err != nil {
			return ierr.WithError(err).
				WithHintf("failed to update order %s", ord.ID).
				Mark(ierr.ErrDatabase)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ierr.NewError("order not found").
				WithHintf("no order with id %s", ord.ID).
				Mark(ierr.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, ord.ID); err != nil {
			return ierr.WithError(err).
				WithHintf("failed to clear line items for order %s", ord.ID).
				Mark(ierr.ErrDatabase)
		}
	} else {
		if _, err := tx.NamedExecContext(ctx, insertOrder, row); err != nil {
			return ierr.WithError(err).
				WithHintf("failed to insert order %s", ord.ID).
				Mark(ierr.ErrDatabase)
		}
	}

	for position, item := range ord.LineItems {
		itemRow, err := toOrderItemRow(ord.ID, position, item)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertOrderItem, itemRow); err != nil {
			return ierr.WithError(err).
				WithHintf("failed to insert line item %s for order %s", item.ID, ord.ID).
				Mark(ierr.ErrDatabase)
		}
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to commit order %s", ord.ID).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var row orderRow
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("order not found").
				WithHintf("no order with id %s", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHintf("failed to load order %s", id).
			Mark(ierr.ErrDatabase)
	}

	ord := row.toDomain()
	if err := r.loadItems(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

func (r *orderRepository) loadItems(ctx context.Context, ord *order.Order) error {
	var itemRows []orderItemRow
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &itemRows, query, ord.ID); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to load line items for order %s", ord.ID).
			Mark(ierr.ErrDatabase)
	}
	ord.LineItems = make([]*order.LineItem, 0, len(itemRows))
	for _, itemRow := range itemRows {
		item, err := itemRow.toDomain()
		if err != nil {
			return err
		}
		ord.LineItems = append(ord.LineItems, item)
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to begin order transaction").
			Mark(ierr.ErrDatabase)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to delete line items for order %s", id).
			Mark(ierr.ErrDatabase)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to delete order %s", id).
			Mark(ierr.ErrDatabase)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ierr.NewError("order not found").
			WithHintf("no order with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to commit order delete %s", id).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := map[string]interface{}{}

	if filter != nil {
		if filter.OrderType != "" {
			query += ` AND order_type = :order_type`
			args["order_type"] = filter.OrderType.String()
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, status.String())
			}
			query += ` AND status IN (:statuses)`
			args["statuses"] = statuses
		}
		if filter.StoreID != "" {
			query += ` AND store_id = :store_id`
			args["store_id"] = filter.StoreID
		}
		if filter.CustomerID != "" {
			query += ` AND customer_id = :customer_id`
			args["customer_id"] = filter.CustomerID
		}
		if filter.BillingScheduleID != "" {
			query += ` AND billing_schedule_id = :billing_schedule_id`
			args["billing_schedule_id"] = filter.BillingScheduleID
		}
		if filter.PaymentMethodID != "" {
			query += ` AND payment_method_id = :payment_method_id`
			args["payment_method_id"] = filter.PaymentMethodID
		}
		if filter.Period != nil {
			query += ` AND period_start = :period_start AND period_end = :period_end`
			args["period_start"] = filter.Period.Start
			args["period_end"] = filter.Period.End
		}
		if filter.PeriodEndBefore != nil {
			query += ` AND period_end <= :period_end_before`
			args["period_end_before"] = *filter.PeriodEndBefore
		}
	}
	query += ` ORDER BY id`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT :limit`
		args["limit"] = filter.Limit
	}

	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to build order list query").
			Mark(ierr.ErrDatabase)
	}
	named, namedArgs, err = sqlx.In(named, namedArgs...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to expand order list query").
			Mark(ierr.ErrDatabase)
	}

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(named), namedArgs...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to list orders").
			Mark(ierr.ErrDatabase)
	}

	orders := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		ord := row.toDomain()
		if err := r.loadItems(ctx, ord); err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, nil
}
