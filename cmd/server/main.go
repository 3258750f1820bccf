package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/efeurhobobullish/vcf-generator/contract"
	grpc2 "github.com/efeurhobobullish/vcf-generator/grpc"
	"github.com/efeurhobobullish/vcf-generator/notifier"
	"github.com/efeurhobobullish/vcf-generator/repositories"
	"github.com/efeurhobobullish/vcf-generator/runtime/workers"
	"github.com/efeurhobobullish/vcf-generator/services"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the store, the notification channel, the sweeper and the gRPC
// server, and blocks until a termination signal or a server failure.
func run() (int, error) {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return exitConfig, fmt.Errorf("load .env: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Domain services
	clk := clockwork.NewRealClock()
	sessionRepository := repositories.NewSessionRepository(db, log)
	channel, err := newNotifier(log, config, clk)
	if err != nil {
		return exitConfig, err
	}
	sessionService := services.NewSessionService(log, sessionRepository, channel, clk,
		services.SessionServiceConfig{
			Destination:     config.TelegramChatID,
			DeliveryTimeout: config.DeliveryTimeout,
			NotifyOnContact: config.NotifyOnContact,
		})

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised sweeper
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sweeper := workers.NewExpirySweeper(log, sessionRepository, sessionService, clk, config.SweepInterval)
	supervisorDone := startSupervised(ctx, sup, sweeper)

	// 6. gRPC Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		sup.Stop()
		<-supervisorDone
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpc2.LoggingInterceptor(log)))
	grpc2.RegisterSessionServiceServer(s, grpc2.NewSessionServer(log, sessionService))

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gRPC server", "address", address, "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Final Cleanup
	s.GracefulStop()
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return code, runErr
}

// startSupervised runs the workers under sup and closes the returned channel
// once the supervisor has returned.
func startSupervised(ctx context.Context, sup contract.ISupervisor, worker ...contract.Worker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Add(worker...).Run(ctx)
	}()
	return done
}

func newNotifier(log *slog.Logger, config Config, clk clockwork.Clock) (contract.Notifier, error) {
	if config.TelegramBotToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, deliveries go to the outbox directory", "dir", config.OutboxDir)
		return notifier.NewOutboxNotifier(log, config.OutboxDir, clk)
	}
	return notifier.NewTelegramNotifier(log, config.TelegramAPIURL, config.TelegramBotToken, config.DeliveryTimeout)
}
