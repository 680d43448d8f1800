package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reservationColumns = `id, vehicle_id, customer_id, pickup_date, return_date, pickup_location,
	dropoff_location, net_amount, vat_amount, vat_rate, currency, status, cancellation_reason,
	created_at, updated_at, confirmed_at, activated_at, cancelled_at, completed_at, version`

var sortColumns = map[string]string{
	reservation.SortCreatedAt:  "created_at",
	reservation.SortPickupDate: "pickup_date",
	reservation.SortReturnDate: "return_date",
	reservation.SortTotalPrice: "gross_amount",
	reservation.SortStatus:     "status",
}

type ReservationRepository struct {
	q querier
}

func NewReservationRepository(q querier) *ReservationRepository {
	return &ReservationRepository{q: q}
}

func (r *ReservationRepository) FindByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	res, err := pgx.CollectOneRow(rows, scanReservation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", reservation.ErrNotFound, id)
	}
	return res, err
}

func (r *ReservationRepository) Add(ctx context.Context, res *reservation.Reservation) error {
	_, err := r.q.Exec(ctx, `INSERT INTO reservations (`+reservationColumns+`, gross_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1, $20)`,
		string(res.ID), res.VehicleID, res.CustomerID, res.Period.PickupDate(), res.Period.ReturnDate(),
		res.PickupLocation, res.DropoffLocation,
		numeric(res.TotalPrice.Net), numeric(res.TotalPrice.VAT), numeric(res.TotalPrice.VATRate), res.TotalPrice.Currency,
		string(res.Status), res.CancellationReason, res.CreatedAt, res.UpdatedAt,
		res.ConfirmedAt, res.ActivatedAt, res.CancelledAt, res.CompletedAt,
		numeric(res.TotalPrice.Gross()),
	)
	if err != nil {
		return mapError(err, res.ID, res.Version)
	}
	res.Version = 1
	return nil
}

// Update writes the mutable columns when the stored version still matches.
func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	tag, err := r.q.Exec(ctx, `UPDATE reservations SET
			status = $3, cancellation_reason = $4, updated_at = $5,
			confirmed_at = $6, activated_at = $7, cancelled_at = $8, completed_at = $9,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		string(res.ID), res.Version, string(res.Status), res.CancellationReason, res.UpdatedAt,
		res.ConfirmedAt, res.ActivatedAt, res.CancelledAt, res.CompletedAt,
	)
	if err != nil {
		return mapError(err, res.ID, res.Version)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, string(res.ID)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", reservation.ErrNotFound, res.ID)
		}
		return &reservation.ConflictError{ReservationID: res.ID, Version: res.Version}
	}
	res.Version++
	return nil
}

func (r *ReservationRepository) SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	w := where{}
	w.add("pickup_date <= ?", p.ReturnDate())
	w.add("return_date >= ?", p.PickupDate())
	if vehicleID != "" {
		w.add("vehicle_id = ?", vehicleID)
	}
	if len(statuses) > 0 {
		w.add("status = ANY(?)", statusStrings(statuses))
	}
	rows, err := r.q.Query(ctx, `SELECT `+reservationColumns+` FROM reservations`+w.sql()+` ORDER BY pickup_date, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanReservation)
}

func (r *ReservationRepository) SearchPaged(ctx context.Context, params reservation.SearchParams) (search.Page[*reservation.Reservation], error) {
	sorting, err := reservation.SortTable.Normalize(params.Sorting)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	paging := params.Paging.Normalized()
	w := searchWhere(params.Filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM reservations`+w.sql(), w.args...).Scan(&total); err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	dir := "ASC"
	if sorting.Descending {
		dir = "DESC"
	}
	args := append(w.args, paging.PageSize, paging.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM reservations%s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		reservationColumns, w.sql(), sortColumns[sorting.Field], dir, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	items, err := pgx.CollectRows(rows, scanReservation)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	return search.NewPage(items, total, paging), nil
}

func searchWhere(f reservation.Filter) where {
	w := where{}
	if id := strings.TrimSpace(f.CustomerID); id != "" {
		w.add("customer_id = ?", id)
	}
	if id := strings.TrimSpace(f.VehicleID); id != "" {
		w.add("vehicle_id = ?", id)
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY(?)", statusStrings(f.Statuses))
	}
	if loc := strings.ToUpper(strings.TrimSpace(f.PickupLocation)); loc != "" {
		w.add("pickup_location = ?", loc)
	}
	if f.PickupDate.Min != nil {
		w.add("pickup_date >= ?", *f.PickupDate.Min)
	}
	if f.PickupDate.Max != nil {
		w.add("pickup_date <= ?", *f.PickupDate.Max)
	}
	if f.GrossPrice.Min != nil {
		w.add("gross_amount >= ?", numeric(*f.GrossPrice.Min))
	}
	if f.GrossPrice.Max != nil {
		w.add("gross_amount <= ?", numeric(*f.GrossPrice.Max))
	}
	return w
}

// where collects AND-ed conditions, numbering "?" placeholders as it goes.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func scanReservation(row pgx.CollectableRow) (*reservation.Reservation, error) {
	var (
		res            reservation.Reservation
		id, status     string
		pickup, ret    time.Time
		net, vat, rate pgtype.Numeric
		currency       string
	)
	err := row.Scan(&id, &res.VehicleID, &res.CustomerID, &pickup, &ret, &res.PickupLocation,
		&res.DropoffLocation, &net, &vat, &rate, &currency, &status, &res.CancellationReason,
		&res.CreatedAt, &res.UpdatedAt, &res.ConfirmedAt, &res.ActivatedAt, &res.CancelledAt, &res.CompletedAt,
		&res.Version)
	if err != nil {
		return nil, err
	}
	res.ID = reservation.ID(id)
	res.Status = reservation.Status(status)
	res.Period = period.Restore(period.Date(pickup), period.Date(ret))
	res.TotalPrice = money.Money{
		Net:      fromNumeric(net),
		VAT:      fromNumeric(vat),
		VATRate:  fromNumeric(rate),
		Currency: strings.TrimSpace(currency),
	}
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	for _, ts := range []*time.Time{res.ConfirmedAt, res.ActivatedAt, res.CancelledAt, res.CompletedAt} {
		if ts != nil {
			*ts = ts.UTC()
		}
	}
	return &res, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func statusStrings(statuses []reservation.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// mapError turns unique violations, serialization failures and deadlocks
// into a retryable ConflictError.
func mapError(err error, id reservation.ID, version int64) error {
	if isConflict(err) {
		return &reservation.ConflictError{ReservationID: id, Version: version}
	}
	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}

var _ reservation.Repository = (*ReservationRepository)(nil)
