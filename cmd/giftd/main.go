package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/gift-practice/giftpractice/internal/api/http"
	"github.com/gift-practice/giftpractice/internal/auth"
	"github.com/gift-practice/giftpractice/internal/config"
	"github.com/gift-practice/giftpractice/internal/db"
	"github.com/gift-practice/giftpractice/internal/enrich"
	"github.com/gift-practice/giftpractice/internal/explain"
	"github.com/gift-practice/giftpractice/internal/gift"
	"github.com/gift-practice/giftpractice/internal/history"
	"github.com/gift-practice/giftpractice/internal/llm"
	"github.com/gift-practice/giftpractice/internal/prefs"
	"github.com/gift-practice/giftpractice/internal/session"
	"github.com/gift-practice/giftpractice/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- Preferences ---
	pm, err := prefs.NewManager(cfg.PrefsPath)
	if err != nil {
		log.Fatalf("preferences: %v", err)
	}

	// --- History backend ---
	var histStore history.Store
	switch cfg.HistoryDriver {
	case "", "json":
		s, err := history.NewJSONStore(cfg.HistoryPath)
		if err != nil {
			log.Fatalf("history store: %v", err)
		}
		histStore = s
	case "sqlite", "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbh, err := db.Open(ctx, db.Driver(cfg.HistoryDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		histStore = history.NewSQLStore(dbh)
	default:
		log.Fatalf("unknown history driver: %q", cfg.HistoryDriver)
	}
	logger := history.NewLogger(histStore)

	// --- Bank storage + initial bank ---
	banks, err := storage.NewFSStore(cfg.BankDir)
	if err != nil {
		log.Fatalf("bank store: %v", err)
	}
	bankState := &api.BankState{}
	if path := firstNonEmpty(cfg.GiftFile, pm.LastGiftFile()); path != "" {
		if bank, err := gift.ParseFile(path); err == nil {
			bankState.Set(bank)
			log.Printf("loaded bank %s (%d questions)", path, len(bank.Questions))
		} else {
			log.Printf("bank %s not loaded: %v", path, err)
		}
	}

	// --- Explanations ---
	httpLog, err := llm.NewHTTPLog(cfg.HTTPLogPath)
	if err != nil {
		log.Fatalf("http log: %v", err)
	}
	explainDeps := &api.ExplainDeps{
		Service: explain.NewService(2 * time.Second),
		Bank:    bankState,
		Prefs:   pm,
		HTTPLog: httpLog,
		Results: enrich.NewResultCache(0),
		Bytes:   enrich.NewByteCache(0),
	}

	sessions := session.NewInMemoryStore()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var authSvc *auth.Service
	if cfg.EnableLocalAuth {
		secret := cfg.JWTSecret
		if secret == "" {
			log.Fatal("ENABLE_LOCAL_AUTH requires JWT_SECRET")
		}
		authSvc = auth.NewService(secret, cfg.AdminUser, cfg.AdminPassHash)
		r.Post("/auth/login", auth.LoginHandler(authSvc))
	}

	r.Group(func(pr chi.Router) {
		if authSvc != nil {
			pr.Use(auth.JWTMiddleware(authSvc))
		}

		pr.Route("/bank", func(br chi.Router) {
			br.Post("/", api.LoadBankHandler(bankState, banks, pm))
			br.Get("/", api.GetBankHandler(bankState))
			br.Get("/questions", api.ListQuestionsHandler(bankState))
			br.Get("/questions/{number}", api.GetQuestionHandler(bankState))
			br.Get("/report", api.BankReportHandler(bankState))
			br.Get("/files", api.ListBankFilesHandler(banks))
			br.Put("/files/{name}", api.UploadBankFileHandler(banks))
		})

		pr.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", api.CreateSessionHandler(bankState, sessions, pm))
			sr.Get("/{sessionID}", api.GetSessionHandler(sessions))
			sr.Post("/{sessionID}/answers", api.RecordAnswerHandler(sessions))
			sr.Post("/{sessionID}/advance", api.AdvanceHandler(sessions))
			sr.Post("/{sessionID}/retreat", api.RetreatHandler(sessions))
			sr.Post("/{sessionID}/finish", api.FinishSessionHandler(sessions, logger))
			sr.Delete("/{sessionID}", api.DeleteSessionHandler(sessions))
		})

		pr.Route("/history", func(hr chi.Router) {
			hr.Get("/", api.ListHistoryHandler(logger))
			hr.Get("/statistics", api.HistoryStatisticsHandler(logger))
			hr.Delete("/", api.ClearHistoryHandler(logger))
		})

		pr.Route("/explanations", func(er chi.Router) {
			er.Post("/", api.CreateExplanationHandler(explainDeps))
			er.Get("/{explanationID}", api.GetExplanationHandler(explainDeps))
			er.Post("/{explanationID}/images", api.EnrichExplanationHandler(explainDeps))
			er.Delete("/{explanationID}", api.CloseExplanationHandler(explainDeps))
		})

		pr.Get("/providers", api.ListProvidersHandler())
		pr.Get("/providers/models", api.ListProviderModelsHandler(explainDeps))

		pr.Get("/prefs", api.GetPrefsHandler(pm))
		pr.Put("/prefs", api.PutPrefsHandler(pm))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (history=%s)", cfg.HTTPAddr, cfg.HistoryDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
