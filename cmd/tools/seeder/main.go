// Seeder provisions a demo tenant with a small published catalog so a fresh
// environment can exercise cart validation and checkout immediately.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storelane/backoffice/internal/config"
	"github.com/storelane/backoffice/internal/db"
	"github.com/storelane/backoffice/internal/gate"
	"github.com/storelane/backoffice/internal/obs"
	"github.com/storelane/backoffice/internal/tenant"
)

type seedProduct struct {
	Name       string
	SKU        string
	Slug       string
	PriceCents int64
	Stock      int32
}

var demoProducts = []seedProduct{
	{Name: "Canvas Tote", SKU: "TOTE-001", Slug: "canvas-tote", PriceCents: 2999, Stock: 120},
	{Name: "Enamel Mug", SKU: "MUG-001", Slug: "enamel-mug", PriceCents: 1499, Stock: 200},
	{Name: "Field Notebook", SKU: "NOTE-001", Slug: "field-notebook", PriceCents: 899, Stock: 350},
}

func main() {
	slug := flag.String("tenant", "demo", "tenant slug to create or reuse")
	name := flag.String("name", "Demo Storefront", "tenant display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	g := gate.New(pool)

	tenantID, err := ensureTenant(ctx, g, *slug, *name)
	if err != nil {
		logger.Fatal().Err(err).Str("slug", *slug).Msg("ensure tenant")
	}
	logger.Info().Str("slug", *slug).Str("tenant_id", tenantID).Msg("tenant ready")

	err = tenant.Run(ctx, tenantID, func(ctx context.Context) error {
		for _, p := range demoProducts {
			created, err := ensureProduct(ctx, g, p)
			if err != nil {
				return fmt.Errorf("seed %s: %w", p.SKU, err)
			}
			if created {
				logger.Info().Str("sku", p.SKU).Int32("stock", p.Stock).Msg("product seeded")
			} else {
				logger.Info().Str("sku", p.SKU).Msg("product already present, skipped")
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Msg("seed complete")
}

func ensureTenant(ctx context.Context, g *gate.Gate, slug, name string) (string, error) {
	row, err := g.SelectRow(ctx, gate.KindTenants, []string{"id"}, gate.Filter{"slug": slug})
	if err != nil {
		return "", err
	}
	var id pgtype.UUID
	err = row.Scan(&id)
	if err == nil {
		return uuidString(id), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	row, err = g.InsertReturning(ctx, gate.KindTenants, gate.Values{
		"slug": slug,
		"name": name,
	}, []string{"id"})
	if err != nil {
		return "", err
	}
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return uuidString(id), nil
}

// ensureProduct inserts the product, its stock row and, for the first SKU, a
// variant with its own stock. Reruns are no-ops keyed on the SKU.
func ensureProduct(ctx context.Context, g *gate.Gate, p seedProduct) (bool, error) {
	row, err := g.SelectRow(ctx, gate.KindProducts, []string{"id"}, gate.Filter{"sku": p.SKU})
	if err != nil {
		return false, err
	}
	var existing pgtype.UUID
	if err := row.Scan(&existing); err == nil {
		return false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	row, err = g.InsertReturning(ctx, gate.KindProducts, gate.Values{
		"name":         p.Name,
		"sku":          p.SKU,
		"slug":         p.Slug,
		"price_cents":  p.PriceCents,
		"is_published": true,
	}, []string{"id"})
	if err != nil {
		return false, err
	}
	var productID pgtype.UUID
	if err := row.Scan(&productID); err != nil {
		return false, err
	}

	if err := g.Insert(ctx, gate.KindInventory, gate.Values{
		"owner_id":         productID,
		"quantity_on_hand": p.Stock,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func uuidString(id pgtype.UUID) string {
	v, err := id.Value()
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
