package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/microvest/backoffice/docs"
	"github.com/microvest/backoffice/internal/database"
	"github.com/microvest/backoffice/internal/handlers"
	"github.com/microvest/backoffice/internal/jobs"
	mW "github.com/microvest/backoffice/internal/middleware"
	"github.com/microvest/backoffice/internal/models"
	"github.com/microvest/backoffice/internal/scheduler"
	"github.com/microvest/backoffice/internal/services"
)

// @title MicroVest Back Office API
// @version 1.0
// @description Ledger, loan and reporting API for the MicroVest back office
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("sendgrid.api_key", "SENDGRID_API_KEY")
	viper.BindEnv("email.from", "EMAIL_FROM")
	viper.BindEnv("email.from_name", "EMAIL_FROM_NAME")

	viper.BindEnv("bank.currency", "BANK_CURRENCY")
	viper.BindEnv("bank.bicfi", "BANK_BICFI")

	viper.BindEnv("scheduler.mark_overdue_loans", "SCHEDULER_MARK_OVERDUE_LOANS")
	viper.BindEnv("scheduler.repayment_reminders", "SCHEDULER_REPAYMENT_REMINDERS")
	viper.BindEnv("scheduler.cleanup_collection_codes", "SCHEDULER_CLEANUP_COLLECTION_CODES")
	viper.BindEnv("scheduler.balance_drift_sweep", "SCHEDULER_BALANCE_DRIFT_SWEEP")
	viper.BindEnv("scheduler.retained_earnings_snapshot", "SCHEDULER_RETAINED_EARNINGS_SNAPSHOT")

	viper.SetDefault("jwt.expiry_hours", 12)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("email.from", "noreply@microvest.example")
	viper.SetDefault("email.from_name", "MicroVest Back Office")
	viper.SetDefault("bank.currency", "NGN")
	viper.SetDefault("bank.bicfi", "MICROVST")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "MicroVest Back Office API"
	docs.SwaggerInfo.Description = "Ledger, loan and reporting API for the MicroVest back office"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize stores
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services
	postingService := services.NewPostingService(db)
	ledgerService := services.NewLedgerService(db, redisClient)
	reportService := services.NewReportService(db)
	authService := services.NewAuthService(db, redisClient)
	bankService := services.NewBankService()
	notificationService := services.NewNotificationService(db,
		viper.GetString("sendgrid.api_key"),
		viper.GetString("email.from"),
		viper.GetString("email.from_name"))
	loanService := services.NewLoanService(db, postingService, notificationService, bankService)
	collectionService := services.NewCollectionService(db, redisClient, loanService)
	collectionHandler := handlers.NewCollectionHandler(collectionService)
	exportService := services.NewDisbursementExportService(db, bankService,
		viper.GetString("bank.currency"),
		viper.GetString("bank.bicfi"))

	// Scheduled jobs
	jobRunner := jobs.NewJobRunner(db, loanService, postingService, collectionService, notificationService)
	sched := scheduler.NewScheduler(jobRunner)
	sched.Start()
	defer sched.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for bank logos and client documents
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer("./static")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/banks", bankService.GetAllBanks)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Post("/auth/register", authService.Register)
			r.Get("/auth/profile", authService.GetProfile)
			r.Get("/auth/staff", authService.ListStaff)

			// Chart of accounts and ledger
			r.Post("/ledger/bootstrap", ledgerService.BootstrapChart)
			r.Post("/ledger/accounts", ledgerService.CreateAccount)
			r.Get("/ledger/accounts", ledgerService.ListAccounts)
			r.Get("/ledger/accounts/{accountId}/balance", ledgerService.AccountBalanceEnquiry)
			r.Post("/ledger/accounts/{accountId}/reconcile", ledgerService.ReconcileAccount)
			r.Post("/ledger/entries", ledgerService.PostJournalEntry)
			r.Get("/ledger/entries", ledgerService.ListJournalEntries)
			r.Post("/ledger/capital-injections", ledgerService.PostCapitalInjection)
			r.Post("/ledger/transfers", ledgerService.PostTransfer)

			// Reports
			r.Get("/reports/income-statement", reportService.GetIncomeStatement)
			r.Get("/reports/balance-sheet", reportService.GetBalanceSheet)
			r.Get("/reports/liquidity", reportService.GetTotalLiquidity)
			r.Get("/reports/budget-variance", reportService.GetBudgetVariance)
			r.Put("/budgets", reportService.SetBudget)

			// Clients and loans
			r.Post("/clients", loanService.CreateClient)
			r.Get("/clients", loanService.ListClients)
			r.Get("/clients/{clientId}", loanService.GetClient)
			r.Post("/loans", loanService.CreateLoan)
			r.Get("/loans", loanService.ListLoans)
			r.Put("/loans/{loanId}/approve", loanService.ApproveLoan)
			r.Post("/loans/{loanId}/disburse", loanService.DisburseLoan)
			r.Post("/loans/{loanId}/repayments", loanService.RecordRepayment)

			// ISO 20022 disbursement export
			r.Get("/loans/{loanId}/export", exportService.ExportDisbursement)
			r.Get("/loans/{loanId}/export/status", exportService.AcknowledgeDisbursement)

			// Collection codes
			r.Post("/collections/codes", collectionHandler.GenerateCode)
			r.Post("/collections/redeem", collectionHandler.RedeemCode)
			r.Get("/collections/loans/{loanId}/codes", collectionHandler.LoanCodes)

			// Notifications
			r.Get("/notifications", notificationService.ListNotifications)
			r.Put("/notifications/{notificationId}/read", notificationService.MarkNotificationRead)

			// Admin-only maintenance
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleAdmin))
				r.Post("/admin/jobs/nightly", func(w http.ResponseWriter, r *http.Request) {
					go jobRunner.RunAllNightlyJobs()
					w.WriteHeader(http.StatusAccepted)
					json.NewEncoder(w).Encode(map[string]string{"status": "started"})
				})
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
