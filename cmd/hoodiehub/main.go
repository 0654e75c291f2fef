package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kihuni/Hoodie-Hub/internal/config"
	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/env"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/cache"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/mpesa"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/receipt"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/repo"
	"github.com/kihuni/Hoodie-Hub/internal/metrics"
	"github.com/kihuni/Hoodie-Hub/internal/publisher"
	"github.com/kihuni/Hoodie-Hub/internal/server"
	"github.com/kihuni/Hoodie-Hub/internal/usecase"
)

func main() {
	env.Load(".env", ".env.local")
	envDefaults := config.EnvDefaults()

	envName := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	databaseURL := flag.String("database-url", envDefaults.DatabaseURL, "")
	migrationsDir := flag.String("migrations-dir", envDefaults.MigrationsDir, "")
	redisAddr := flag.String("redis-addr", envDefaults.RedisAddr, "")
	kafkaBrokers := flag.String("kafka-brokers", envDefaults.KafkaBrokers, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	seedSample := flag.Bool("seed-sample", envDefaults.SeedSample, "")
	siteBaseURL := flag.String("site-base-url", envDefaults.SiteBaseURL, "")

	flag.Parse()

	cfg := envDefaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.DatabaseURL = *databaseURL
	cfg.MigrationsDir = *migrationsDir
	cfg.RedisAddr = *redisAddr
	cfg.KafkaBrokers = *kafkaBrokers
	cfg.JWTSecret = *jwtSecret
	cfg.SeedSample = *seedSample
	cfg.SiteBaseURL = *siteBaseURL

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
		log.Println("no jwt secret configured, generated an ephemeral one")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		products usecase.ProductRepo
		users    usecase.UserRepo
		carts    usecase.CartRepo
		orders   usecase.OrderRepo
		outbox   publisher.OutboxSource
	)
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.RunMigrations(cfg.MigrationsDir); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		products, users, carts, orders, outbox = pg, pg, pg, pg, pg
	} else {
		log.Println("no database configured, using in-memory stores")
		mem := repo.NewMemoryOrderRepo()
		products = repo.NewMemoryProductRepo()
		users = repo.NewMemoryUserRepo()
		carts = repo.NewMemoryCartRepo()
		orders, outbox = mem, mem
	}

	var cartCache cache.CartCache
	if cfg.RedisAddr != "" {
		cartCache = cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		cartCache = cache.NewMemoryCache()
	}

	gateway := mpesa.NewClient(mpesa.Config{
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Environment:    cfg.Mpesa.Environment,
		CountryCode:    cfg.Mpesa.CountryCode,
	})

	m := metrics.NewStoreMetrics(nil)
	cartSvc := usecase.NewCartService(carts, products, cartCache)
	deps := server.Deps{
		Catalog:   usecase.NewCatalogService(products),
		Carts:     cartSvc,
		Checkout:  usecase.NewCheckoutService(cartSvc, orders, gateway, m),
		Reconcile: usecase.NewReconcileService(orders, m),
		Orders:    usecase.NewOrderService(orders),
		Auth:      usecase.NewAuthService(users, cartSvc, cfg.JWTSecret),
		Receipts:  receipt.NewGenerator("Hoodie Hub"),
	}

	if cfg.SeedSample {
		if err := seedProducts(ctx, products); err != nil {
			log.Fatalf("seed sample data: %v", err)
		}
	}

	if cfg.KafkaBrokers != "" {
		writer := publisher.NewKafkaWriter(strings.Split(cfg.KafkaBrokers, ","), "order-events")
		defer writer.Close()
		go publisher.NewOutboxPoller(outbox, writer).Run(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.New(cfg, deps).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("listening on :%d (env=%s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
		os.Exit(1)
	}
}

// seedProducts loads the starter catalog on fresh installs. Existing rows
// with the same id are upserted, so re-running is harmless.
func seedProducts(ctx context.Context, products usecase.ProductRepo) error {
	type row struct {
		id    string
		name  string
		desc  string
		price int64
		sizes string
		stock int
	}
	rows := []row{
		{"5f6e1f9e-0a3c-4c43-9f10-7b1f19a10001", "Classic Black Hoodie", "Heavyweight cotton hoodie in black.", 2500, "S,M,L,XL", 50},
		{"5f6e1f9e-0a3c-4c43-9f10-7b1f19a10002", "Forest Green Hoodie", "Fleece-lined hoodie in forest green.", 2800, "M,L,XL", 35},
		{"5f6e1f9e-0a3c-4c43-9f10-7b1f19a10003", "Navy Zip Hoodie", "Full-zip hoodie with kangaroo pockets.", 3200, "S,M,L,XL,XXL", 20},
		{"5f6e1f9e-0a3c-4c43-9f10-7b1f19a10004", "Limited Tie-Dye Hoodie", "Small-batch tie-dye, each one unique.", 4000, "M,L", 5},
	}
	now := time.Now().UTC()
	for _, r := range rows {
		p := &domain.Product{
			ID:             uuid.MustParse(r.id),
			Name:           r.name,
			Description:    r.desc,
			Price:          decimal.NewFromInt(r.price),
			AvailableSizes: r.sizes,
			StockQuantity:  r.stock,
			Active:         true,
			CreatedAt:      now,
		}
		if err := products.PutProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
