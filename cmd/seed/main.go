package main

import (
	"context"
	"log"
	"time"

	"linkintel/pkg/config"
	"linkintel/pkg/logger"
	"linkintel/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Fixed ids keep reseeding idempotent (inserts are ON CONFLICT DO NOTHING).
var (
	categoryDesign = uuid.MustParse("11111111-1111-1111-1111-111111111101")
	categoryDevops = uuid.MustParse("11111111-1111-1111-1111-111111111102")
	groupAcme      = uuid.MustParse("22222222-2222-2222-2222-222222222201")

	customerAlice = uuid.MustParse("33333333-3333-3333-3333-333333333301")
	customerBob   = uuid.MustParse("33333333-3333-3333-3333-333333333302")
	customerCarol = uuid.MustParse("33333333-3333-3333-3333-333333333303")

	subFigmaPro  = uuid.MustParse("44444444-4444-4444-4444-444444444401")
	subFigmaOrg  = uuid.MustParse("44444444-4444-4444-4444-444444444402")
	subNotion    = uuid.MustParse("44444444-4444-4444-4444-444444444403")
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	appLogger.Info("Seeding demo records...")

	if err := seedCustomers(ctx, db); err != nil {
		appLogger.Fatal("Failed to seed customers", zap.Error(err))
	}
	if err := seedSubscriptions(ctx, db); err != nil {
		appLogger.Fatal("Failed to seed subscriptions", zap.Error(err))
	}

	appLogger.Info("Seeding completed")
}

func seedCustomers(ctx context.Context, db *pgxpool.Pool) error {
	now := time.Now().UTC()
	builder := squirrel.Insert("customers").
		Columns("id", "name", "email", "phone", "country", "tags", "category_id", "group_id", "created_at").
		// Alice and Bob share a domain, a phone number, a tag and a group
		// but sit in different categories; Carol is unrelated.
		Values(customerAlice, "Alice Hartman", "alice@acme.com", "555-1111", "US", "vip,tech", categoryDesign, groupAcme, now).
		Values(customerBob, "Bob Hartman", "bob@acme.com", "555-1111", "US", "tech,enterprise", categoryDevops, groupAcme, now).
		Values(customerCarol, "Carol Nguyen", "carol@orbita.io", "555-9004", "DE", "smb", categoryDesign, nil, now).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, sql, args...)
	return err
}

func seedSubscriptions(ctx context.Context, db *pgxpool.Pool) error {
	now := time.Now().UTC()
	renewalA := now.AddDate(0, 0, 20)
	renewalB := renewalA.AddDate(0, 0, 3)
	renewalC := now.AddDate(0, 2, 0)

	builder := squirrel.Insert("subscriptions").
		Columns("id", "customer_id", "category_id", "vendor_name", "plan_name", "cost", "currency", "billing_cycle", "country", "next_renewal_date", "created_at").
		Values(subFigmaPro, customerAlice, categoryDesign, "Figma", "Professional", 15.0, "USD", "monthly", "US", renewalA, now).
		Values(subFigmaOrg, customerAlice, categoryDesign, "Figma", "Organization", 45.0, "USD", "monthly", "US", renewalB, now).
		Values(subNotion, customerCarol, categoryDevops, "Notion", "Plus", 10.0, "USD", "monthly", "DE", renewalC, now).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, sql, args...)
	return err
}
