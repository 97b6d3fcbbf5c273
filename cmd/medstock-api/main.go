package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	authhandler "github.com/medstock/medstock-backend/internal/auth/handler"
	"github.com/medstock/medstock-backend/internal/auth/jwt"
	authmiddleware "github.com/medstock/medstock-backend/internal/auth/middleware"
	authrepo "github.com/medstock/medstock-backend/internal/auth/repository"
	authservice "github.com/medstock/medstock-backend/internal/auth/service"
	cataloghandler "github.com/medstock/medstock-backend/internal/catalog/handler"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/inventory/events"
	"github.com/medstock/medstock-backend/internal/inventory/handler"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/internal/inventory/service"
	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

const serviceName = "medstock-api"

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting MedStock API")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	if err := migrator.Up(); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// The broker is optional: without a URL the service runs without
	// publishing stock events.
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
	} else {
		log.Warn().Msg("RabbitMQ URL not configured, stock events disabled")
	}

	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	batchRepo := repository.NewBatchStockRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	issueRepo := repository.NewStockIssueRepository(db)
	settingsRepo := repository.NewSettingsRepository(db,
		cfg.Stock.DefaultLowStockLimitBoxes, cfg.Stock.DefaultExpiryAlertDays)
	medicineRepo := catalogrepo.NewMedicineRepository(db)
	supplierRepo := catalogrepo.NewSupplierRepository(db)
	userRepo := authrepo.NewUserRepository(db)

	jwtManager := jwt.NewManager(&cfg.JWT)

	stockService := service.NewStockService(db, batchRepo, receiptRepo, issueRepo,
		settingsRepo, medicineRepo, publisher, log)
	authService := authservice.NewAuthService(userRepo, jwtManager, log)

	batchHandler := handler.NewBatchHandler(stockService, log)
	receiptHandler := handler.NewReceiptHandler(stockService, log)
	issueHandler := handler.NewIssueHandler(stockService, log)
	alertHandler := handler.NewAlertHandler(stockService, log)
	dashboardHandler := handler.NewDashboardHandler(stockService, log)
	settingsHandler := handler.NewSettingsHandler(stockService, log)
	searchHandler := handler.NewSearchHandler(stockService, log)
	medicineHandler := cataloghandler.NewMedicineHandler(medicineRepo, log)
	supplierHandler := cataloghandler.NewSupplierHandler(supplierRepo, log)
	authHandler := authhandler.NewAuthHandler(authService, log)

	authenticate := authmiddleware.Authenticate(jwtManager, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/auth/me", authHandler.Me)

			r.Route("/medicines", func(r chi.Router) {
				r.Get("/", medicineHandler.List)
				r.Post("/", medicineHandler.Create)
				r.Get("/{id}", medicineHandler.Get)
				r.Put("/{id}", medicineHandler.Update)
				r.Get("/{id}/price-history", searchHandler.PriceHistory)
			})

			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", supplierHandler.List)
				r.Post("/", supplierHandler.Create)
				r.Get("/{id}", supplierHandler.Get)
				r.Put("/{id}", supplierHandler.Update)
			})

			r.Route("/batches", func(r chi.Router) {
				r.Get("/", batchHandler.List)
				r.Get("/lookup", batchHandler.Lookup)
				r.Get("/{id}", batchHandler.Get)
			})

			r.Route("/receipts", func(r chi.Router) {
				r.Get("/", receiptHandler.List)
				r.Post("/", receiptHandler.Create)
				r.Get("/search", searchHandler.ReceiptSearch)
				r.Get("/{id}", receiptHandler.Get)
			})

			r.Route("/stock-issues", func(r chi.Router) {
				r.Get("/", issueHandler.List)
				r.Post("/", issueHandler.Create)
				r.Get("/fefo-suggest", issueHandler.SuggestFEFO)
			})

			r.Get("/alerts/{alertType}", alertHandler.List)
			r.Get("/dashboard/summary", dashboardHandler.Summary)

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.Get)
				r.Patch("/", settingsHandler.Update)
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
