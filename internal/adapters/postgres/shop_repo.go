package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/shopradar/internal/core/domain"
)

const upsertShopSQL = `
	INSERT INTO shops (id, name, address, lat, lng, wifi, power_outlets, smoking, takeout, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, address = EXCLUDED.address,
	    lat = EXCLUDED.lat, lng = EXCLUDED.lng,
	    wifi = EXCLUDED.wifi, power_outlets = EXCLUDED.power_outlets,
	    smoking = EXCLUDED.smoking, takeout = EXCLUDED.takeout,
	    updated_at = now()
`

const shopColumns = `id, name, address, lat, lng, wifi, power_outlets, smoking, takeout, updated_at`

// ShopRepo implements ports.ShopRepository with pgx.
type ShopRepo struct {
	db *DB
}

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(db *DB) *ShopRepo {
	return &ShopRepo{db: db}
}

// Upsert inserts or updates a single shop.
func (r *ShopRepo) Upsert(ctx context.Context, s *domain.Shop) error {
	_, err := r.db.Pool.Exec(ctx, upsertShopSQL, shopArgs(s)...)
	return err
}

// UpsertBatch inserts many shops using pgx.Batch.
func (r *ShopRepo) UpsertBatch(ctx context.Context, shops []domain.Shop) error {
	batch := &pgx.Batch{}
	for i := range shops {
		batch.Queue(upsertShopSQL, shopArgs(&shops[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range shops {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a shop by id.
func (r *ShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
	s, err := scanShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindInBounds returns shops whose coordinate lies inside bounds, nearest to
// center first. The filter is a plain range scan on lat/lng.
func (r *ShopRepo) FindInBounds(ctx context.Context, center domain.GeoPoint, b domain.Bounds, limit int) ([]domain.Shop, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
		ORDER BY (lat - $5) * (lat - $5) + (lng - $6) * (lng - $6)
		LIMIT $7
	`, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng, center.Lat, center.Lng, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := []domain.Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, *s)
	}
	return shops, rows.Err()
}

// List returns one page of shops ordered by name, with the total count.
func (r *ShopRepo) List(ctx context.Context, limit, offset int) ([]domain.Shop, int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+shopColumns+`, count(*) OVER () AS total
		FROM shops
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	shops := []domain.Shop{}
	total := 0
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Address, &s.Location.Lat, &s.Location.Lng,
			&s.Amenities.Wifi, &s.Amenities.PowerOutlets, &s.Amenities.Smoking, &s.Amenities.Takeout,
			&s.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the end yields no rows and so no window total.
	if len(shops) == 0 && offset > 0 {
		if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM shops`).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return shops, total, nil
}

func shopArgs(s *domain.Shop) []any {
	return []any{
		s.ID, s.Name, s.Address, s.Location.Lat, s.Location.Lng,
		s.Amenities.Wifi, s.Amenities.PowerOutlets, s.Amenities.Smoking, s.Amenities.Takeout,
	}
}

func scanShop(row pgx.Row) (*domain.Shop, error) {
	var s domain.Shop
	if err := row.Scan(
		&s.ID, &s.Name, &s.Address, &s.Location.Lat, &s.Location.Lng,
		&s.Amenities.Wifi, &s.Amenities.PowerOutlets, &s.Amenities.Smoking, &s.Amenities.Takeout,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
