package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
)

const reservationsCollection = "agg_reservation"

// sortKeys maps reservation sort fields to document paths.
var sortKeys = map[string]string{
	reservation.SortCreatedAt:  "created_at",
	reservation.SortPickupDate: "pickup_date",
	reservation.SortReturnDate: "return_date",
	reservation.SortTotalPrice: "price.gross",
	reservation.SortStatus:     "status",
}

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection(reservationsCollection)}
}

func ensureReservationIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(reservationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "status", Value: 1}, {Key: "pickup_date", Value: 1}}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *ReservationRepository) FindByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservation.ErrNotFound, id)
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *ReservationRepository) Add(ctx context.Context, res *reservation.Reservation) error {
	doc, err := newReservationDocument(res)
	if err != nil {
		return err
	}
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mapWriteError(err, res.ID, res.Version)
	}
	res.Version = 1
	return nil
}

func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	doc, err := newReservationDocument(res)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	out, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return mapWriteError(err, res.ID, res.Version)
	}
	if out.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", reservation.ErrNotFound, res.ID)
		}
		return &reservation.ConflictError{ReservationID: res.ID, Version: res.Version}
	}
	res.Version = doc.Version
	return nil
}

func (r *ReservationRepository) SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	filter := bson.M{
		"pickup_date": bson.M{"$lte": p.ReturnDate()},
		"return_date": bson.M{"$gte": p.PickupDate()},
	}
	if vehicleID != "" {
		filter["vehicle_id"] = vehicleID
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(statuses)}
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "pickup_date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

func (r *ReservationRepository) SearchPaged(ctx context.Context, params reservation.SearchParams) (search.Page[*reservation.Reservation], error) {
	sorting, err := reservation.SortTable.Normalize(params.Sorting)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	paging := params.Paging.Normalized()
	filter, err := searchFilter(params.Filter)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	dir := 1
	if sorting.Descending {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortKeys[sorting.Field], Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(paging.Offset())).
		SetLimit(int64(paging.PageSize))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	items, err := decodeAll(ctx, cur)
	if err != nil {
		return search.Page[*reservation.Reservation]{}, err
	}
	return search.NewPage(items, int(total), paging), nil
}

func searchFilter(f reservation.Filter) (bson.M, error) {
	filter := bson.M{}
	if id := strings.TrimSpace(f.CustomerID); id != "" {
		filter["customer_id"] = id
	}
	if id := strings.TrimSpace(f.VehicleID); id != "" {
		filter["vehicle_id"] = id
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(f.Statuses)}
	}
	if loc := strings.ToUpper(strings.TrimSpace(f.PickupLocation)); loc != "" {
		filter["pickup_location"] = loc
	}
	if !f.PickupDate.IsZero() {
		bounds := bson.M{}
		if f.PickupDate.Min != nil {
			bounds["$gte"] = *f.PickupDate.Min
		}
		if f.PickupDate.Max != nil {
			bounds["$lte"] = *f.PickupDate.Max
		}
		filter["pickup_date"] = bounds
	}
	if !f.GrossPrice.IsZero() {
		bounds := bson.M{}
		if f.GrossPrice.Min != nil {
			d, err := toDecimal128(*f.GrossPrice.Min)
			if err != nil {
				return nil, err
			}
			bounds["$gte"] = d
		}
		if f.GrossPrice.Max != nil {
			d, err := toDecimal128(*f.GrossPrice.Max)
			if err != nil {
				return nil, err
			}
			bounds["$lte"] = d
		}
		filter["price.gross"] = bounds
	}
	return filter, nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*reservation.Reservation, error) {
	defer cur.Close(ctx)
	var out []*reservation.Reservation
	for cur.Next(ctx) {
		var doc reservationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, cur.Err()
}

func statusStrings(statuses []reservation.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// mapWriteError turns duplicate keys and transaction write conflicts into a
// ConflictError the caller may retry.
func mapWriteError(err error, id reservation.ID, version int64) error {
	if isConflict(err) {
		return &reservation.ConflictError{ReservationID: id, Version: version}
	}
	return err
}

func isConflict(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return true
	}
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == 112
}

type reservationDocument struct {
	ID                 string        `bson:"_id"`
	VehicleID          string        `bson:"vehicle_id"`
	CustomerID         string        `bson:"customer_id"`
	PickupDate         time.Time     `bson:"pickup_date"`
	ReturnDate         time.Time     `bson:"return_date"`
	PickupLocation     string        `bson:"pickup_location"`
	DropoffLocation    string        `bson:"dropoff_location"`
	Price              priceDocument `bson:"price"`
	Status             string        `bson:"status"`
	CancellationReason string        `bson:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `bson:"created_at"`
	UpdatedAt          time.Time     `bson:"updated_at"`
	ConfirmedAt        *time.Time    `bson:"confirmed_at,omitempty"`
	ActivatedAt        *time.Time    `bson:"activated_at,omitempty"`
	CancelledAt        *time.Time    `bson:"cancelled_at,omitempty"`
	CompletedAt        *time.Time    `bson:"completed_at,omitempty"`
	Version            int64         `bson:"version"`
}

type priceDocument struct {
	Net      primitive.Decimal128 `bson:"net"`
	VAT      primitive.Decimal128 `bson:"vat"`
	Gross    primitive.Decimal128 `bson:"gross"`
	VATRate  primitive.Decimal128 `bson:"vat_rate"`
	Currency string               `bson:"currency"`
}

func newReservationDocument(r *reservation.Reservation) (reservationDocument, error) {
	price, err := newPriceDocument(r.TotalPrice)
	if err != nil {
		return reservationDocument{}, err
	}
	return reservationDocument{
		ID:                 string(r.ID),
		VehicleID:          r.VehicleID,
		CustomerID:         r.CustomerID,
		PickupDate:         r.Period.PickupDate(),
		ReturnDate:         r.Period.ReturnDate(),
		PickupLocation:     r.PickupLocation,
		DropoffLocation:    r.DropoffLocation,
		Price:              price,
		Status:             string(r.Status),
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ConfirmedAt:        r.ConfirmedAt,
		ActivatedAt:        r.ActivatedAt,
		CancelledAt:        r.CancelledAt,
		CompletedAt:        r.CompletedAt,
		Version:            r.Version,
	}, nil
}

func (d reservationDocument) toAggregate() (*reservation.Reservation, error) {
	price, err := d.Price.toMoney()
	if err != nil {
		return nil, fmt.Errorf("mongo: reservation %s: %w", d.ID, err)
	}
	return &reservation.Reservation{
		ID:                 reservation.ID(d.ID),
		VehicleID:          d.VehicleID,
		CustomerID:         d.CustomerID,
		Period:             period.Restore(d.PickupDate.UTC(), d.ReturnDate.UTC()),
		PickupLocation:     d.PickupLocation,
		DropoffLocation:    d.DropoffLocation,
		TotalPrice:         price,
		Status:             reservation.Status(d.Status),
		CancellationReason: d.CancellationReason,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
		ConfirmedAt:        utcPtr(d.ConfirmedAt),
		ActivatedAt:        utcPtr(d.ActivatedAt),
		CancelledAt:        utcPtr(d.CancelledAt),
		CompletedAt:        utcPtr(d.CompletedAt),
		Version:            d.Version,
	}, nil
}

func newPriceDocument(m money.Money) (priceDocument, error) {
	var (
		doc priceDocument
		err error
	)
	if doc.Net, err = toDecimal128(m.Net); err != nil {
		return doc, err
	}
	if doc.VAT, err = toDecimal128(m.VAT); err != nil {
		return doc, err
	}
	if doc.Gross, err = toDecimal128(m.Gross()); err != nil {
		return doc, err
	}
	if doc.VATRate, err = toDecimal128(m.VATRate); err != nil {
		return doc, err
	}
	doc.Currency = m.Currency
	return doc, nil
}

func (d priceDocument) toMoney() (money.Money, error) {
	net, err := decimal.NewFromString(d.Net.String())
	if err != nil {
		return money.Money{}, err
	}
	vat, err := decimal.NewFromString(d.VAT.String())
	if err != nil {
		return money.Money{}, err
	}
	rate, err := decimal.NewFromString(d.VATRate.String())
	if err != nil {
		return money.Money{}, err
	}
	return money.Money{Net: net, VAT: vat, VATRate: rate, Currency: d.Currency}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ reservation.Repository = (*ReservationRepository)(nil)
