package main

import (
	"chat-sessions/auth"
	"chat-sessions/moderation"
	"chat-sessions/repositories"
	"chat-sessions/runtime"
	"chat-sessions/runtime/workers"
	"chat-sessions/server"
	"chat-sessions/services"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	replacement := []rune(config.ModerationCharReplacement)
	if len(replacement) != 1 {
		return fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			config.ModerationCharReplacement)
	}

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 3. Moderation
	wordList, err := moderation.LoadWordLists()
	if err != nil {
		return fmt.Errorf("loading censored words failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(wordList.Languages), strings.Join(wordList.Languages, ",")))
	moderator, err := moderation.NewModerator(wordList.Words, replacement[0])
	if err != nil {
		return err
	}

	// 4. Domain wiring
	chatRepository := repositories.NewChatRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)
	searchIndex := repositories.NewSearchIndex(writer, log)

	signer := auth.NewTokenSigner(config.TokenSecret, config.TokenDuration)
	identity := services.NewGuestIdentity(log, userRepository, signer)
	lifecycle := services.NewChatLifecycle(log, chatRepository, userRepository)

	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, registry, lifecycle, identity,
		userRepository, messageRepository, searchIndex, &moderator, config.TypingIdle)

	// 5. Supervision & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewTelemetryWorker(log, registry))
	go sup.Run(ctx)

	// 6. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := &http.Server{
		Addr:    address,
		Handler: server.NewServer(log, orchestrator).Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
