package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/acampos/tienda-api/docs"
	"github.com/acampos/tienda-api/internal/config"
	"github.com/acampos/tienda-api/internal/events"
	"github.com/acampos/tienda-api/internal/httpx"
	"github.com/acampos/tienda-api/internal/metrics"
	"github.com/acampos/tienda-api/internal/order"
	"github.com/acampos/tienda-api/internal/product"
	"github.com/acampos/tienda-api/internal/session"
	"github.com/acampos/tienda-api/internal/user"
	"github.com/acampos/tienda-api/migrations"
)

const shutdownTimeout = 10 * time.Second

// @title tienda-api
// @version 1.0
// @description Storefront API: catalog, accounts, orders.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, sessions are in-memory")
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	var pub events.Publisher = events.Noop{}
	if kp := events.NewKafkaPublisher(cfg.KafkaBrokers, "order-events"); kp != nil {
		defer kp.Close()
		pub = kp
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	products := product.NewPGRepo(pool)
	users := user.NewService(user.NewPGRepo(pool), sessions)
	orders := order.NewService(order.NewPGRepo(pool), products, pub)

	r := newRouter(users, products, orders, sessions, m)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("shop-api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newRouter(users *user.Service, products product.Repository, orders *order.Service, sessions session.Store, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.Metrics(m))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/register", registerHandler(users))
	r.POST("/login", loginHandler(users))

	r.GET("/products", listProductsHandler(products))
	r.GET("/products/price-range", priceRangeHandler(products))
	r.GET("/products/:id", getProductHandler(products))
	r.GET("/categories", listCategoriesHandler(products))

	authed := r.Group("", httpx.Auth(sessions))
	authed.POST("/logout", logoutHandler(users))
	authed.GET("/me", meHandler(users))
	authed.POST("/orders", createOrderHandler(orders, m))
	authed.GET("/orders", listOrdersHandler(orders))
	authed.GET("/orders/:id", getOrderHandler(orders))
	authed.POST("/orders/:id/cancel", cancelOrderHandler(orders, m))

	admin := authed.Group("/admin", requireAdmin())
	admin.POST("/products", createProductHandler(products))
	admin.PUT("/products/:id", updateProductHandler(products))
	admin.DELETE("/products/:id", deleteProductHandler(products))
	admin.POST("/categories", createCategoryHandler(products))
	admin.PUT("/users/:id", updateUserHandler(users))
	admin.DELETE("/users/:id", deleteUserHandler(users))

	return r
}
