package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/serantau/payflow/internal/allocation"
	"github.com/serantau/payflow/internal/api"
	"github.com/serantau/payflow/internal/disbursement"
	"github.com/serantau/payflow/internal/events"
	"github.com/serantau/payflow/internal/executor"
	"github.com/serantau/payflow/internal/ingestion"
	"github.com/serantau/payflow/internal/payment"
	"github.com/serantau/payflow/internal/reconciliation"
	"github.com/serantau/payflow/internal/repository"
	"github.com/serantau/payflow/internal/settlement"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "payflow.db"
	}

	maxAmount := envInt64("MAX_PAYMENT_AMOUNT", 0)
	ttlHours := envInt64("IDEMPOTENCY_TTL_HOURS", 24)

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	paymentRepo := repository.NewPaymentRepo(db)
	disbursementRepo := repository.NewDisbursementRepo(db)
	batchRepo := repository.NewSettlementBatchRepo(db)

	// Create services.
	dispatcher := events.NewLogDispatcher()
	sandbox := executor.NewSandbox()
	paymentMgr := payment.NewManager(paymentRepo, sandbox, dispatcher, payment.Config{
		MaxAmountMinorUnits: maxAmount,
		IdempotencyKeyTTL:   time.Duration(ttlHours) * time.Hour,
	})
	disbursementMgr := disbursement.NewManager(disbursementRepo, sandbox, dispatcher)
	settlementSvc := settlement.NewService(batchRepo, paymentRepo)
	engine := allocation.NewEngine()
	importSvc := ingestion.NewService(paymentMgr)
	verifySvc := reconciliation.NewService(batchRepo, paymentRepo)

	// Redis is optional; without it only the store-level idempotency
	// constraint applies.
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		log.Printf("Response-cache idempotency enabled via redis at %s", addr)
	}

	// Create router.
	router := api.NewRouter(api.RouterConfig{
		Payments:       paymentMgr,
		Disbursements:  disbursementMgr,
		Settlements:    settlementSvc,
		Engine:         engine,
		PaymentRepo:    paymentRepo,
		Importer:       importSvc,
		Verifier:       verifySvc,
		Redis:          rdb,
		IdempotencyTTL: time.Duration(ttlHours) * time.Hour,
	})

	log.Printf("Payflow Payment Transaction & Allocation Engine")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("API base: http://localhost:%s/api/v1", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/payments")
	log.Printf("  POST   /api/v1/payments/import")
	log.Printf("  GET    /api/v1/payments")
	log.Printf("  GET    /api/v1/payments/{id}")
	log.Printf("  GET    /api/v1/payments/{id}/status")
	log.Printf("  POST   /api/v1/payments/{id}/activate")
	log.Printf("  POST   /api/v1/payments/{id}/execute")
	log.Printf("  POST   /api/v1/payments/{id}/retry")
	log.Printf("  POST   /api/v1/payments/{id}/cancel")
	log.Printf("  POST   /api/v1/payments/{id}/reverse")
	log.Printf("  POST   /api/v1/allocations")
	log.Printf("  POST   /api/v1/allocations/preview")
	log.Printf("  POST   /api/v1/allocations/validate")
	log.Printf("  POST   /api/v1/disbursements")
	log.Printf("  GET    /api/v1/disbursements/pending-approvals")
	log.Printf("  GET    /api/v1/disbursements/ready-for-processing")
	log.Printf("  POST   /api/v1/disbursements/{id}/...")
	log.Printf("  POST   /api/v1/settlement-batches")
	log.Printf("  GET    /api/v1/dashboard")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envInt64(name string, def int64) int64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return v
}
