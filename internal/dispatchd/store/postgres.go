package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
)

// Postgres persists dispatchd state with pgx and plain SQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool and ensures the schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS drivers (
		id           TEXT PRIMARY KEY,
		availability TEXT NOT NULL DEFAULT 'OFFLINE',
		latitude     DOUBLE PRECISION,
		longitude    DOUBLE PRECISION,
		push_token   TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		order_number     TEXT NOT NULL,
		customer_name    TEXT NOT NULL,
		pickup_address   TEXT NOT NULL DEFAULT '',
		delivery_address TEXT NOT NULL DEFAULT '',
		garment_count    INT NOT NULL DEFAULT 1,
		status           TEXT NOT NULL,
		driver_id        TEXT,
		notes            TEXT,
		pickup_latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
		pickup_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		assigned_at      TIMESTAMPTZ,
		picked_up_at     TIMESTAMPTZ,
		delivered_at     TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
	CREATE INDEX IF NOT EXISTS idx_orders_driver ON orders (driver_id);
	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key     TEXT PRIMARY KEY,
		seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) SetAvailability(ctx context.Context, driverID string, av driver.Availability) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO drivers (id, availability) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET availability = EXCLUDED.availability`,
		driverID, av.String())
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	return nil
}

func (p *Postgres) SaveLocation(ctx context.Context, driverID string, pt geo.Point) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO drivers (id, latitude, longitude) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`,
		driverID, pt.Latitude, pt.Longitude)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (p *Postgres) GetDriver(ctx context.Context, driverID string) (*DriverState, error) {
	var (
		d        DriverState
		avail    string
		lat, lon *float64
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, availability, latitude, longitude, push_token
		FROM drivers WHERE id = $1`, driverID).
		Scan(&d.DriverID, &avail, &lat, &lon, &d.PushToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}

	d.Availability = driver.Availability(avail)
	if lat != nil && lon != nil {
		d.Location = &geo.Point{Latitude: *lat, Longitude: *lon}
	}
	return &d, nil
}

func (p *Postgres) SavePushToken(ctx context.Context, driverID, token string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO drivers (id, push_token) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET push_token = EXCLUDED.push_token`,
		driverID, token)
	if err != nil {
		return fmt.Errorf("save push token: %w", err)
	}
	return nil
}

func (p *Postgres) PushTokens(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, push_token FROM drivers WHERE push_token <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("scan push token: %w", err)
		}
		out[id] = token
	}
	return out, rows.Err()
}

const orderColumns = `id, order_number, customer_name, pickup_address, delivery_address,
	garment_count, status, driver_id, notes, pickup_latitude, pickup_longitude,
	created_at, assigned_at, picked_up_at, delivered_at`

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var status string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.PickupAddress, &o.DeliveryAddress,
		&o.GarmentCount, &status, &o.DriverID, &o.Notes, &o.PickupLatitude, &o.PickupLongitude,
		&o.CreatedAt, &o.AssignedAt, &o.PickedUpAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}

func (p *Postgres) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.OrderNumber, o.CustomerName, o.PickupAddress, o.DeliveryAddress,
		o.GarmentCount, o.Status.String(), o.DriverID, o.Notes, o.PickupLatitude, o.PickupLongitude,
		o.CreatedAt, o.AssignedAt, o.PickedUpAt, o.DeliveredAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (p *Postgres) AvailableOrders(ctx context.Context, near *geo.Point, radiusKm float64) ([]order.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at`,
		order.StatusAvailable.String())
	if err != nil {
		return nil, fmt.Errorf("available orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if near != nil && radiusKm > 0 {
			pickup := geo.Point{Latitude: o.PickupLatitude, Longitude: o.PickupLongitude}
			if geo.DistanceMeters(*near, pickup) > radiusKm*1000 {
				continue
			}
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (p *Postgres) OrdersByDriver(ctx context.Context, driverID string) ([]order.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE driver_id = $1 ORDER BY created_at DESC`,
		driverID)
	if err != nil {
		return nil, fmt.Errorf("orders by driver: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (p *Postgres) TransitionOrder(ctx context.Context, orderID string, apply func(*order.Order) error) (*order.Order, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := apply(o); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $2, driver_id = $3, notes = $4,
			assigned_at = $5, picked_up_at = $6, delivered_at = $7
		WHERE id = $1`,
		o.ID, o.Status.String(), o.DriverID, o.Notes, o.AssignedAt, o.PickedUpAt, o.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return o, nil
}

func (p *Postgres) RememberKey(ctx context.Context, key string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("remember key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
