// Package catalog reads product records from PostgreSQL. It feeds corpus
// indexing and joins series/feature details onto search results.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/catalogix/prodsearch/internal/domain"
)

// dimensionNames are the measured attributes stored per product.
var dimensionNames = []string{"height", "width", "depth", "weight", "volume"}

// Repo is a PostgreSQL-backed product catalog.
type Repo struct {
	pool *pgxpool.Pool
}

// New connects to the catalog database.
func New(ctx context.Context, connStr string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

const listProductsQuery = `
SELECT product_code, COALESCE(description, ''), COALESCE(base_price, 0),
       COALESCE(categories, '{}'), COALESCE(series, ''),
       height_value, height_unit, width_value, width_unit,
       depth_value, depth_unit, weight_value, weight_unit,
       volume_value, volume_unit
FROM products
ORDER BY product_code`

// ListProducts reads the full catalog for corpus indexing, features included.
func (r *Repo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %v: %w", err, domain.ErrCatalogUnavailable)
	}
	defer rows.Close()

	var products []domain.Product
	index := make(map[string]int)
	for rows.Next() {
		var (
			p      domain.Product
			values [5]*float64
			units  [5]*string
		)
		err := rows.Scan(
			&p.Code, &p.Description, &p.BasePrice, &p.Categories, &p.Series,
			&values[0], &units[0], &values[1], &units[1],
			&values[2], &units[2], &values[3], &units[3],
			&values[4], &units[4],
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		for i, name := range dimensionNames {
			if values[i] == nil {
				continue
			}
			if p.Dimensions == nil {
				p.Dimensions = make(map[string]domain.Dimension)
			}
			d := domain.Dimension{Value: *values[i]}
			if units[i] != nil {
				d.Unit = *units[i]
			}
			p.Dimensions[name] = d
		}
		index[p.Code] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %v: %w", err, domain.ErrCatalogUnavailable)
	}

	features, err := r.featuresByCode(ctx, nil)
	if err != nil {
		return nil, err
	}
	for code, fs := range features {
		if i, ok := index[code]; ok {
			products[i].Features = fs
		}
	}
	return products, nil
}

// BatchGet looks up series and features for the given product codes in one
// round trip per table. Codes with no catalog row are simply absent from the
// result map.
func (r *Repo) BatchGet(ctx context.Context, codes []string) (map[string]domain.ProductDetails, error) {
	if len(codes) == 0 {
		return map[string]domain.ProductDetails{}, nil
	}

	details := make(map[string]domain.ProductDetails, len(codes))

	rows, err := r.pool.Query(ctx,
		`SELECT product_code, COALESCE(series, '') FROM products WHERE product_code = ANY($1)`,
		codes)
	if err != nil {
		return nil, fmt.Errorf("batch get products: %v: %w", err, domain.ErrCatalogUnavailable)
	}
	defer rows.Close()
	for rows.Next() {
		var code, series string
		if err := rows.Scan(&code, &series); err != nil {
			return nil, fmt.Errorf("scan product details: %w", err)
		}
		details[code] = domain.ProductDetails{Series: series}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch get products: %v: %w", err, domain.ErrCatalogUnavailable)
	}

	features, err := r.featuresByCode(ctx, codes)
	if err != nil {
		return nil, err
	}
	for code, fs := range features {
		d := details[code]
		d.Features = fs
		details[code] = d
	}
	return details, nil
}

// featuresByCode loads features grouped by product code. A nil codes slice
// loads the whole table.
func (r *Repo) featuresByCode(ctx context.Context, codes []string) (map[string][]domain.Feature, error) {
	query := `SELECT product_code, COALESCE(feature_code, ''), COALESCE(feature_description, '')
FROM product_features`
	args := []any{}
	if codes != nil {
		query += ` WHERE product_code = ANY($1)`
		args = append(args, codes)
	}
	query += ` ORDER BY product_code, feature_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load features: %v: %w", err, domain.ErrCatalogUnavailable)
	}
	defer rows.Close()

	features := make(map[string][]domain.Feature)
	for rows.Next() {
		var code string
		var f domain.Feature
		if err := rows.Scan(&code, &f.Code, &f.Description); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features[code] = append(features[code], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load features: %v: %w", err, domain.ErrCatalogUnavailable)
	}
	return features, nil
}

// Ping checks database availability.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("catalog ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Repo) Close() { r.pool.Close() }
