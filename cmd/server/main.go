// Command je-server starts the Just-Ease vault gRPC server and the signed download server.
//
//	je-server [flags]                     serve
//	je-server add-caseworker [flags]      provision a caseworker account
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/AngiE300512/just-ease/internal/config"
	"github.com/AngiE300512/just-ease/internal/crypto/sealer"
	"github.com/AngiE300512/just-ease/internal/limiter"
	"github.com/AngiE300512/just-ease/internal/migrate"
	"github.com/AngiE300512/just-ease/internal/repository/postgres"
	"github.com/AngiE300512/just-ease/internal/server/files"
	grpcserver "github.com/AngiE300512/just-ease/internal/server/grpc"
	"github.com/AngiE300512/just-ease/internal/service"
	"github.com/AngiE300512/just-ease/internal/storage"
	"github.com/AngiE300512/just-ease/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const purgeEvery = 10 * time.Minute

func main() {
	args := os.Args[1:]
	run := serve
	if len(args) > 0 && args[0] == "add-caseworker" {
		run, args = addCaseworker, args[1:]
	}
	if err := run(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// serve parses configuration, runs migrations and starts both listeners.
func serve(args []string) error {
	cfg, _, err := config.Load("je-server", args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("files_addr", cfg.FilesAddr),
		zap.String("blob_backend", cfg.BlobBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "just-ease", version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	seal, err := sealer.New([]byte(cfg.SealKey))
	if err != nil {
		return fmt.Errorf("sealer: %w", err)
	}
	blobs, err := storage.New(cfg.Storage(), logger.Named("storage"))
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}

	// Repositories
	users := postgres.NewUserRepo(db)
	docRepo := postgres.NewDocumentRepo(db)
	lim := limiter.NewPG(db.Pool, limiter.DefaultPolicy)
	signer := service.NewSigner([]byte(cfg.JWTKey))

	// Services
	authSvc := service.NewAuthService(users, signer, cfg.AccessTTL, lim, logger.Named("auth"))
	passkeySvc := service.NewPasskeyService(postgres.NewPasskeyRepo(db), cfg.RPID, cfg.RPOrigins, logger.Named("passkey"))
	docSvc := service.NewDocumentService(docRepo, postgres.NewLinkRepo(db), blobs, seal, signer, cfg.LinkTTL, cfg.FilesBaseURL, logger.Named("vault"))
	cwSvc := service.NewCaseworkerService(service.CaseworkerDeps{
		Caseworkers: postgres.NewCaseworkerRepo(db),
		Grants:      postgres.NewGrantRepo(db),
		Users:       users,
		Documents:   docRepo,
		Vault:       docSvc,
		Signer:      signer,
		Limiter:     lim,
	}, cfg.SessionTTL, logger.Named("caseworker"))

	// gRPC server
	opts := []grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}
	if !cfg.Dev {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	app := grpcserver.New(grpcserver.Services{
		Auth:        authSvc,
		Passkeys:    passkeySvc,
		Documents:   docSvc,
		Caseworkers: cwSvc,
	}, logger)
	s := grpcserver.NewGRPCServer(app, signer, logger.Named("grpc"), opts...)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	fileSrv := &http.Server{
		Addr:              cfg.FilesAddr,
		Handler:           files.NewHandler(docSvc, logger.Named("files")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Dev))
		errCh <- s.Serve(lis)
	}()
	go func() {
		logger.Info("files listening", zap.String("addr", cfg.FilesAddr))
		if err := fileSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go purgeExpired(ctx, logger, passkeySvc.PurgeChallenges, docSvc.PurgeLinks)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	// graceful shutdown
	hs.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = fileSrv.Shutdown(sctx)
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
		s.Stop()
	}

	logger.Info("shutdown complete")
	return runErr
}

// purgeExpired drops expired passkey challenges and link redemptions until ctx ends.
func purgeExpired(ctx context.Context, log *zap.Logger, challenges, links func(context.Context) (int64, error)) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for name, purge := range map[string]func(context.Context) (int64, error){"challenges": challenges, "links": links} {
				n, err := purge(ctx)
				if err != nil {
					log.Warn("purge failed", zap.String("table", name), zap.Error(err))
					continue
				}
				if n > 0 {
					log.Debug("purged", zap.String("table", name), zap.Int64("count", n))
				}
			}
		}
	}
}

// addCaseworker provisions a caseworker. The password is read from
// JE_CASEWORKER_PASSWORD or the first line of stdin.
func addCaseworker(args []string) error {
	fs := flag.NewFlagSet("je-server add-caseworker", flag.ContinueOnError)
	email := fs.String("email", "", "caseworker email (required)")
	name := fs.String("name", "", "display name (required)")
	org := fs.String("org", "", "organization (required)")
	dsn := fs.String("dsn", os.Getenv("JE_DSN"), "PostgreSQL DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password := os.Getenv("JE_CASEWORKER_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		var err error
		if password, err = readLine(os.Stdin); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	logger := newLogger(false)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, *dsn); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, *dsn)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	svc := service.NewCaseworkerService(service.CaseworkerDeps{
		Caseworkers: postgres.NewCaseworkerRepo(db),
	}, time.Hour, logger)
	c, err := svc.Provision(ctx, service.NewCaseworker{Email: *email, Name: *name, Organization: *org, Password: password})
	if err != nil {
		return err
	}
	fmt.Println(c.ID.String())
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
