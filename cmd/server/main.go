package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"tabibdesk/internal/config"
	"tabibdesk/internal/grpcweb"
	"tabibdesk/internal/handler"
	"tabibdesk/internal/logging"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "tabibdesk",
		Short:        "Clinic management backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gRPC server and the gRPC-Web bridge",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), envFile)
			},
		},
	)
	return root
}

func boot(envFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func migrate(ctx context.Context, envFile string) error {
	cfg, log, err := boot(envFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pg.Close()

	applied, err := pg.Migrate(ctx)
	if err != nil {
		return err
	}
	log.Info("migrations applied", zap.Strings("files", applied))
	return nil
}

// openStore returns the configured backend and its cleanup.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	applied, err := pg.Migrate(ctx)
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	log.Info("connected to postgres", zap.Strings("migrations", applied))
	return pg, pg.Close, nil
}

func serve(ctx context.Context, envFile string) error {
	cfg, log, err := boot(envFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := config.LoadSchedule(cfg.ScheduleFile)
	if err != nil {
		return err
	}

	h := handler.New(st, cfg.JWTSecret, handler.Options{
		AccessTTL:         cfg.AccessTokenTTL,
		RefreshTTL:        cfg.RefreshTokenTTL,
		Schedule:          sched,
		DefaultTimezone:   cfg.DefaultTimezone,
		InactiveAfterDays: cfg.InactiveAfterDays,
		Logger:            log.Named("handler"),
	})

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Stop()
	stack := middleware.Stack(log.Named("rpc"), rl, cfg.JWTSecret)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(stack...))
	rpc.RegisterClinicServiceServer(srv, h)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	bridge := grpcweb.New(h, stack, grpcweb.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.SecureCookies,
		Logger:         log.Named("grpcweb"),
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc listening", zap.String("port", cfg.GRPCPort), zap.String("store", cfg.Store))
		return srv.Serve(lis)
	})
	g.Go(func() error {
		log.Info("grpc-web listening", zap.String("port", cfg.WebPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		srv.GracefulStop()
		return nil
	})
	return g.Wait()
}
