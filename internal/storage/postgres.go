package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// PostgresStore implements Store over database/sql. Every conditional
// primitive is a single UPDATE whose WHERE clause carries the expected
// old value; RowsAffected tells us whether we won the swap. No
// application-level locks, so the same guarantees hold across
// processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const rideColumns = `id, passenger_id, driver_id, status,
	pickup_lng, pickup_lat, pickup_address, dropoff_lng, dropoff_lat, dropoff_address,
	distance_km, estimated_duration_min,
	fare_base, fare_distance, fare_time, fare_surge, fare_total,
	payment_method, payment_status, payment_transaction_id, paid_at,
	requested_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at,
	cancellation_reason, passenger_rating, driver_rating, passenger_review, driver_review`

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(`+rideColumns+`) VALUES(
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)`,
		rideArgs(r)...)
	return err
}

// UpdateRideIf rewrites the full ride row, guarded by the expected
// status. The guard is what makes accept and every lifecycle
// transition race-safe.
func (p *PostgresStore) UpdateRideIf(ctx context.Context, r *models.Ride, expect models.RideStatus) (bool, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET
		driver_id=$2, status=$3,
		payment_status=$4, payment_transaction_id=$5, paid_at=$6,
		accepted_at=$7, arrived_at=$8, started_at=$9, completed_at=$10, cancelled_at=$11,
		cancellation_reason=$12, passenger_rating=$13, driver_rating=$14, passenger_review=$15, driver_review=$16
		WHERE id=$1 AND status=$17`,
		r.ID, r.DriverID, r.Status,
		r.Payment.Status, nullStr(r.Payment.TransactionID), r.Payment.PaidAt,
		r.Timeline.AcceptedAt, r.Timeline.ArrivedAt, r.Timeline.StartedAt, r.Timeline.CompletedAt, r.Timeline.CancelledAt,
		nullStr(r.CancellationReason), r.Rating.PassengerRating, r.Rating.DriverRating,
		nullStr(r.Rating.PassengerReview), nullStr(r.Rating.DriverReview),
		expect)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	return r, err
}

func (p *PostgresStore) ListOpenRides(ctx context.Context, limit int) ([]*models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE status=$1 ORDER BY requested_at ASC LIMIT $2`, models.StatusRequested, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ActiveRideForDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE driver_id=$1 AND status IN ($2,$3,$4) LIMIT 1`,
		driverID, models.StatusAccepted, models.StatusArrived, models.StatusStarted)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (p *PostgresStore) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, online, available, rating, total_rides FROM drivers WHERE id=$1`, id)
	var d models.Driver
	if err := row.Scan(&d.ID, &d.Online, &d.Available, &d.Rating, &d.TotalRides); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) SaveDriver(ctx context.Context, d *models.Driver) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO drivers(id, online, available, rating, total_rides)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET online=EXCLUDED.online, available=EXCLUDED.available,
			rating=EXCLUDED.rating, total_rides=EXCLUDED.total_rides`,
		d.ID, d.Online, d.Available, d.Rating, d.TotalRides)
	return err
}

func (p *PostgresStore) SetOnline(ctx context.Context, id string, online bool) error {
	// going offline forcibly clears availability
	res, err := p.db.ExecContext(ctx, `UPDATE drivers SET online=$2, available=(available AND $2) WHERE id=$1`, id, online)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDriverNotFound
	}
	return nil
}

func (p *PostgresStore) CompareAndSetAvailable(ctx context.Context, id string, expect, next bool) (bool, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE drivers SET available=$3 WHERE id=$1 AND available=$2`, id, expect, next)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) IncDriverRides(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE drivers SET total_rides=total_rides+1 WHERE id=$1`, id)
	return err
}

func (p *PostgresStore) GetPassenger(ctx context.Context, id string) (*models.Passenger, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, rating, total_rides FROM passengers WHERE id=$1`, id)
	var ps models.Passenger
	if err := row.Scan(&ps.ID, &ps.Rating, &ps.TotalRides); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassengerNotFound
		}
		return nil, err
	}
	return &ps, nil
}

func (p *PostgresStore) SavePassenger(ctx context.Context, ps *models.Passenger) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO passengers(id, rating, total_rides)
		VALUES($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET rating=EXCLUDED.rating, total_rides=EXCLUDED.total_rides`,
		ps.ID, ps.Rating, ps.TotalRides)
	return err
}

func (p *PostgresStore) IncPassengerRides(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE passengers SET total_rides=total_rides+1 WHERE id=$1`, id)
	return err
}

func rideArgs(r *models.Ride) []any {
	return []any{
		r.ID, r.PassengerID, r.DriverID, r.Status,
		r.Pickup.Lng, r.Pickup.Lat, r.Pickup.Address,
		r.Dropoff.Lng, r.Dropoff.Lat, r.Dropoff.Address,
		r.DistanceKm, r.EstimatedDurationMin,
		r.Fare.BaseFare, r.Fare.DistanceFare, r.Fare.TimeFare, r.Fare.SurgeMultiplier, r.Fare.TotalFare,
		r.Payment.Method, r.Payment.Status, nullStr(r.Payment.TransactionID), r.Payment.PaidAt,
		r.Timeline.RequestedAt, r.Timeline.AcceptedAt, r.Timeline.ArrivedAt, r.Timeline.StartedAt,
		r.Timeline.CompletedAt, r.Timeline.CancelledAt,
		nullStr(r.CancellationReason), r.Rating.PassengerRating, r.Rating.DriverRating,
		nullStr(r.Rating.PassengerReview), nullStr(r.Rating.DriverReview),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var (
		r               models.Ride
		txn             sql.NullString
		reason          sql.NullString
		passengerReview sql.NullString
		driverReview    sql.NullString
	)
	err := row.Scan(&r.ID, &r.PassengerID, &r.DriverID, &r.Status,
		&r.Pickup.Lng, &r.Pickup.Lat, &r.Pickup.Address,
		&r.Dropoff.Lng, &r.Dropoff.Lat, &r.Dropoff.Address,
		&r.DistanceKm, &r.EstimatedDurationMin,
		&r.Fare.BaseFare, &r.Fare.DistanceFare, &r.Fare.TimeFare, &r.Fare.SurgeMultiplier, &r.Fare.TotalFare,
		&r.Payment.Method, &r.Payment.Status, &txn, &r.Payment.PaidAt,
		&r.Timeline.RequestedAt, &r.Timeline.AcceptedAt, &r.Timeline.ArrivedAt, &r.Timeline.StartedAt,
		&r.Timeline.CompletedAt, &r.Timeline.CancelledAt,
		&reason, &r.Rating.PassengerRating, &r.Rating.DriverRating, &passengerReview, &driverReview)
	if err != nil {
		return nil, err
	}
	r.Payment.TransactionID = txn.String
	r.CancellationReason = reason.String
	r.Rating.PassengerReview = passengerReview.String
	r.Rating.DriverReview = driverReview.String
	return &r, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
