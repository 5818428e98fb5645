package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"kitbot/bus"
	"kitbot/chatlog"
	"kitbot/domain"
	"kitbot/extensions"
	"kitbot/extensions/menu"
	"kitbot/extensions/ping"
	"kitbot/extensions/postponed"
	"kitbot/moderation"
	"kitbot/observability"
	"kitbot/repositories"
	"kitbot/runtime"
	"kitbot/runtime/workers"
	"kitbot/search"
	"kitbot/transport/ws"
	"kitbot/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// available lists every extension a manifest may enable.
func available() map[string]extensions.Constructor {
	return map[string]extensions.Constructor{
		"ping":               ping.New,
		"postponed-messages": postponed.New,
		"menu":               menu.New,
	}
}

// run initializes all components, manages their lifecycle, and centralizes
// error reporting, so every defer (database close, transcript flush) runs
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	manifest, err := loadManifest(config.ManifestPath)
	if err != nil {
		return err
	}

	// 2. Storage: postponed messages (BadgerDB) and the search index
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = index.Close()
	}()

	// 3. Bus & subscribers that live for the whole process
	b := bus.New(log)
	index.Attach(b)

	monitor, err := observability.NewMonitor(log)
	if err != nil {
		return fmt.Errorf("monitor setup failed: %w", err)
	}
	monitor.Attach(b)

	redactor, err := moderation.NewRedactor(manifest.Moderation.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. One session per manifest room, all under one supervisor
	store := repositories.NewPostponedRepository(db, log)
	registry := runtime.NewRegistry()
	sup := workers.NewSupervisor(log, config.RestartInterval)

	webRooms := make([]web.Room, 0, len(manifest.Rooms))
	for _, rc := range manifest.Rooms {
		identity := domain.RoomIdentity{Host: rc.Host, Room: rc.Room, Nick: rc.Nick}

		transcript, err := chatlog.Open(identity.LogBase(), config.LogDir)
		if err != nil {
			return fmt.Errorf("open transcript for %s: %w", identity, err)
		}
		defer func() {
			_ = transcript.Close()
		}()

		session := runtime.NewSession(identity, rc.Password, log, transcript, b,
			ws.Dialer(rc.RelayURL, identity, log), redactor)
		registry.Register(session)
		sup.Add(session)

		webRooms = append(webRooms, web.Room{Identity: identity, LogDir: config.LogDir, Auth: rc.Auth})
	}

	// 5. Extensions from the manifest
	err = extensions.Load(extensions.Env{
		Log:      log,
		Bus:      b,
		Store:    store,
		Sessions: registry,
	}, available(), manifest.Extensions)
	if err != nil {
		return err
	}

	// 6. Log browser
	stats := func() map[string]any {
		values := monitor.Stats()
		for _, s := range registry.All() {
			values["room "+s.Identity().Key()] = s.State().String()
		}
		return values
	}
	sup.Add(web.NewWorker(log, config.HTTPAddr, web.NewServer(log, webRooms, index, stats)))

	// 7. Run until a signal stops everything
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting kitbot", "rooms", len(manifest.Rooms), "addr", config.HTTPAddr)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
