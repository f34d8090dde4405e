package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/visadesk/walletcore/internal/core/events"
	"github.com/visadesk/walletcore/internal/core/gateway/paylink"
	"github.com/visadesk/walletcore/internal/core/handler"
	"github.com/visadesk/walletcore/internal/core/logger"
	middlWre "github.com/visadesk/walletcore/internal/core/middleware"
	"github.com/visadesk/walletcore/internal/core/repository/postgres"
	"github.com/visadesk/walletcore/internal/core/usecase"
	"github.com/visadesk/walletcore/pkg/config"
	"github.com/visadesk/walletcore/pkg/postgresdb"
)

type Server struct {
	router     *mux.Router
	log        logger.Logger
	httpServer *http.Server
	db         *postgresdb.Database
	rdb        *redis.Client

	walletHandler  *handler.WalletHandler
	paymentHandler *handler.PaymentHandler
	orderHandler   *handler.OrderHandler
	webhookHandler *handler.WebhookHandler
}

func NewServer(cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := postgresdb.NewPostgresDB(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
	}
	pub := events.NewPublisher(rdb, log)

	walletRepo := postgres.NewPostgresWalletRepo(db.DB, log)
	paymentRepo := postgres.NewPostgresPaymentRepo(db.DB, log)
	orderRepo := postgres.NewPostgresOrderRepo(db.DB, log)
	partners := postgres.NewPostgresPartnerDirectory(db.DB)

	adapter := paylink.NewProvider(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.WebhookSecret, log)

	ledgerUC := usecase.NewLedgerUsecase(walletRepo, partners, pub, log)
	paymentUC := usecase.NewPaymentUsecase(paymentRepo, walletRepo, partners, adapter, pub, cfg.MinTopupAmount, log)
	settlementUC := usecase.NewSettlementUsecase(orderRepo, walletRepo, paymentRepo, adapter, pub, log)

	server := &Server{
		log:            log,
		router:         mux.NewRouter(),
		db:             db,
		rdb:            rdb,
		walletHandler:  handler.NewWalletHandler(ledgerUC, paymentUC, log),
		paymentHandler: handler.NewPaymentHandler(paymentUC, log),
		orderHandler:   handler.NewOrderHandler(settlementUC, log),
		webhookHandler: handler.NewWebhookHandler(adapter, paymentUC, log),
	}

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})
	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.RequestLogger(s.log),
		middlWre.Recovery(s.log),
	)

	s.router.HandleFunc("/api/v1/wallet", s.walletHandler.GetWallet).Methods("GET")
	s.router.HandleFunc("/api/v1/wallet/transactions", s.walletHandler.ListTransactions).Methods("GET")
	s.router.HandleFunc("/api/v1/wallet/topup", s.walletHandler.InitiateTopup).Methods("POST")
	s.router.HandleFunc("/api/v1/orders/{order_id}/pay", s.orderHandler.PayOrder).Methods("POST")
	s.router.HandleFunc("/api/v1/payments/{code}", s.paymentHandler.GetPaymentStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/webhooks/paylink", s.webhookHandler.HandleGatewayWebhook).Methods("POST")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.rdb != nil {
			if err := s.rdb.Close(); err != nil {
				s.log.Error("failed to close redis connection", logger.ErrorField("error", err))
			}
		}

		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
