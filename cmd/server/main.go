package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/mmynk/groupchat/internal/auth"
	"github.com/mmynk/groupchat/internal/metrics"
	"github.com/mmynk/groupchat/internal/middleware"
	"github.com/mmynk/groupchat/internal/realtime"
	"github.com/mmynk/groupchat/internal/realtime/fsstore"
	"github.com/mmynk/groupchat/internal/service"
	"github.com/mmynk/groupchat/internal/storage/sqlite"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
	"github.com/mmynk/groupchat/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := getEnv("LISTEN_ADDR", ":8080")
	dbPath := getEnv("DB_PATH", "./data/groupchat.db")
	backend := getEnv("BACKEND", "sqlite")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Accounts and revoked sessions always live in SQLite.
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	m := metrics.New()

	var tree realtime.Store
	switch backend {
	case "sqlite":
		tree = realtime.NewHub(store, realtime.WithObserver(m))
	case "firestore":
		client, err := newFirestoreClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		tree = m.Observe(fsstore.New(client))
	default:
		return fmt.Errorf("unknown BACKEND %q", backend)
	}
	slog.Info("Tree backend ready", "backend", backend)

	jwtManager := auth.NewJWTManager(jwtSecret, tokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	server := &http.Server{
		Addr:              addr,
		Handler:           newHandler(store, tree, jwtManager, authenticator, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	configureShutdown(server)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newHandler serves the tree and auth services plus the operational
// endpoints.
func newHandler(store *sqlite.SQLiteStore, tree realtime.Store, jwtManager *auth.JWTManager, authenticator auth.Authenticator, m *metrics.Metrics) http.Handler {
	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, store, apiconnect.PublicProcedures),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewTreeServiceHandler(service.NewTreeService(tree), interceptors))
	mux.Handle(apiconnect.NewAuthServiceHandler(
		service.NewAuthService(authenticator, jwtManager, store, store, tree, slog.Default()),
		interceptors,
	))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	return h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})
}

// configureShutdown cancels every request context when Shutdown starts.
// Subscribe streams never finish on their own and would otherwise hold
// Shutdown until its deadline.
func configureShutdown(server *http.Server) {
	baseCtx, cancel := context.WithCancel(context.Background())
	server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	server.RegisterOnShutdown(cancel)
}

func newFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	project := os.Getenv("FIRESTORE_PROJECT")
	if project == "" {
		return nil, errors.New("FIRESTORE_PROJECT must be set for the firestore backend")
	}
	var opts []option.ClientOption
	if creds := os.Getenv("FIRESTORE_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
