// Package server provides the HTTP REST API for the autofill engine.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/config"
	"github.com/digifynow/autofill-agent/internal/db"
	"github.com/digifynow/autofill-agent/internal/engine"
	"github.com/digifynow/autofill-agent/internal/llm"
	"github.com/digifynow/autofill-agent/internal/mapping"
	"github.com/digifynow/autofill-agent/internal/notify"
	"github.com/digifynow/autofill-agent/internal/server/middleware"
	"github.com/digifynow/autofill-agent/internal/server/ratelimit"
	"github.com/digifynow/autofill-agent/internal/store"
	"github.com/digifynow/autofill-agent/internal/types"
)

// DataStore is the subset of database operations the resource handlers
// need. *db.DB satisfies it; tests substitute in-memory fakes.
type DataStore interface {
	CreateTemplate(ctx context.Context, brokerID uuid.UUID, input *db.TemplateInput) (uuid.UUID, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*db.Template, error)
	ListTemplatesByBroker(ctx context.Context, brokerID uuid.UUID) ([]db.Template, error)
	UpdateTemplateSchema(ctx context.Context, id uuid.UUID, schema []byte, dateLayout string) error
	DeleteTemplate(ctx context.Context, id, brokerID uuid.UUID) error

	CreateCustomer(ctx context.Context, brokerID uuid.UUID, record *types.CustomerRecord) (uuid.UUID, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*db.Customer, error)
	ListCustomersByBroker(ctx context.Context, brokerID uuid.UUID) ([]db.Customer, error)
	UpdateCustomer(ctx context.Context, id, brokerID uuid.UUID, record *types.CustomerRecord) error
	DeleteCustomer(ctx context.Context, id, brokerID uuid.UUID) error

	CreateCustomerDocument(ctx context.Context, input *db.CustomerDocumentInput) (uuid.UUID, error)
	GetCustomerDocument(ctx context.Context, id uuid.UUID) (*db.CustomerDocument, error)
	ListCustomerDocuments(ctx context.Context, customerID uuid.UUID) ([]db.CustomerDocument, error)
	MarkDocumentSent(ctx context.Context, id, brokerID uuid.UUID) error

	Report(ctx context.Context, runID uuid.UUID) (*types.MappingReport, error)
	ListReportsByCustomer(ctx context.Context, customerID uuid.UUID) ([]types.MappingReport, error)
}

// Runner starts and cancels autofill runs. *engine.Coordinator satisfies it.
type Runner interface {
	StartRun(ctx context.Context, spec engine.RunSpec) (*types.MappingReport, error)
	Cancel(runID uuid.UUID) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	db         *db.DB

	store  DataStore
	files  engine.FileStore
	runner Runner

	rateLimiter   *ratelimit.Limiter
	jwtService    *JWTService
	brokerService *BrokerService
	authHandler   *AuthHandler
	validator     *validator.Validate
}

// Config holds server configuration
type Config struct {
	ListenAddr  string
	DatabaseURL string
	FileRoot    string

	// APIKey enables Gemini-backed mapping inference; empty runs
	// fallback-only.
	APIKey           string
	InferenceTimeout time.Duration
	IncludeValues    bool
}

// New creates a fully wired server instance backed by Postgres and the
// local file store.
func New(ctx context.Context, cfg Config) (*Server, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	files, err := store.NewLocal(cfg.FileRoot)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}

	var inference mapping.Strategy
	if cfg.APIKey != "" {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to create inference client: %w", err)
		}
		inference = mapping.NewInferenceStrategy(client, mapping.InferenceOptions{
			Timeout:       cfg.InferenceTimeout,
			IncludeValues: cfg.IncludeValues,
		})
	}

	targets := db.NewTargetSource(database, files)
	coordinator := engine.NewCoordinator(targets, targets, database, files, engine.Options{
		Inference: inference,
		Notifier: notify.Multi{
			notify.Log{},
			db.NewDocumentRecorder(database),
		},
	})

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	s := newServer(database, files, coordinator, database, passwordConfig, jwtConfig)
	s.db = database

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// newServer wires handlers over their collaborators without any transport
// or database setup. Tests build servers through this path with fakes.
func newServer(data DataStore, files engine.FileStore, runner Runner, brokers BrokerStore, passwordConfig *config.PasswordConfig, jwtConfig *config.JWTConfig) *Server {
	s := &Server{
		store:     data,
		files:     files,
		runner:    runner,
		validator: validator.New(),
	}

	s.rateLimiter = ratelimit.NewLimiter(10, 0.5)
	s.brokerService = NewBrokerService(brokers, passwordConfig)
	s.jwtService = NewJWTService(jwtConfig)
	s.authHandler = NewAuthHandler(s.brokerService, s.jwtService)

	return s
}

// Routes builds the HTTP handler tree: public auth endpoints behind the
// rate limiter, everything else behind JWT authentication.
func (s *Server) Routes() http.Handler {
	auth := http.NewServeMux()
	auth.HandleFunc("POST /auth/register", s.authHandler.Register)
	auth.HandleFunc("POST /auth/login", s.authHandler.Login)

	protected := http.NewServeMux()
	protected.HandleFunc("PUT /auth/password", s.authHandler.UpdatePassword)

	protected.HandleFunc("POST /templates", s.handleCreateTemplate)
	protected.HandleFunc("GET /templates", s.handleListTemplates)
	protected.HandleFunc("GET /templates/{id}", s.handleGetTemplate)
	protected.HandleFunc("GET /templates/{id}/schema", s.handleGetTemplateSchema)
	protected.HandleFunc("PUT /templates/{id}/schema", s.handleUpdateTemplateSchema)
	protected.HandleFunc("DELETE /templates/{id}", s.handleDeleteTemplate)

	protected.HandleFunc("POST /customers", s.handleCreateCustomer)
	protected.HandleFunc("GET /customers", s.handleListCustomers)
	protected.HandleFunc("GET /customers/{id}", s.handleGetCustomer)
	protected.HandleFunc("PUT /customers/{id}", s.handleUpdateCustomer)
	protected.HandleFunc("DELETE /customers/{id}", s.handleDeleteCustomer)
	protected.HandleFunc("GET /customers/{id}/runs", s.handleListCustomerRuns)
	protected.HandleFunc("GET /customers/{id}/documents", s.handleListCustomerDocuments)
	protected.HandleFunc("POST /customers/{id}/documents", s.handleUploadCustomerDocument)

	protected.HandleFunc("POST /runs", s.handleStartRun)
	protected.HandleFunc("GET /runs/{id}", s.handleGetRun)
	protected.HandleFunc("GET /runs/{id}/document", s.handleGetRunDocument)
	protected.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)

	protected.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	protected.HandleFunc("GET /documents/{id}/file", s.handleGetDocumentFile)
	protected.HandleFunc("POST /documents/{id}/sent", s.handleMarkDocumentSent)

	authMiddleware := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/auth/register", s.rateLimiter.Middleware(auth))
	mux.Handle("/auth/login", s.rateLimiter.Middleware(auth))
	mux.Handle("/", authMiddleware(protected))

	return s.withLogging(s.withCORS(mux))
}

// Start begins listening for requests and blocks until shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
