package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"streamwatch/api"
	"streamwatch/config"
	"streamwatch/handlers"
	"streamwatch/models"
	"streamwatch/services/demo"
	"streamwatch/services/moviedb"
	"streamwatch/services/plexauth"
	"streamwatch/services/plexserver"
	"streamwatch/services/sessions"
)

func main() {
	demoMode := flag.Bool("demo", false, "serve fixture sessions and metadata instead of a live server")
	portOverride := flag.Int("port", 0, "override API port from config")
	doLogin := flag.Bool("login", false, "run the PIN handshake in the terminal and exit")
	flag.Parse()

	configPath := os.Getenv("STREAMWATCH_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	authClient := plexauth.NewClient(settings.Plex.ClientID)

	if *doLogin {
		runLogin(cfgManager, authClient)
		return
	}

	if *portOverride > 0 {
		settings.API.Port = *portOverride
	}

	buildSource := func(s config.Settings) (sessions.Fetcher, sessions.MetadataFetcher) {
		if s.Server.Host == "" || s.Plex.AuthToken == "" {
			return nil, nil
		}
		client := plexserver.NewClient(s.Server.Host, s.Server.Port, s.Plex.AuthToken)
		return client, client
	}

	var sync *sessions.Synchronizer
	if *demoMode {
		log.Printf("Demo mode enabled: serving fixture sessions")
		provider := demo.NewProvider()
		sync = sessions.New(provider, provider, demo.Credential())
	} else {
		fetcher, metaFetcher := buildSource(settings)
		sync = sessions.New(fetcher, metaFetcher, settings.Plex.Credential())
	}

	movieDB := moviedb.NewClient(settings.Metadata.TMDBAPIKey, settings.Metadata.Language)

	authHandler := handlers.NewAuthHandler(cfgManager, authClient, sync, buildSource)
	sessionsHandler := handlers.NewSessionsHandler(sync, movieDB)
	settingsHandler := handlers.NewSettingsHandler(cfgManager, *demoMode)
	settingsHandler.Reload = func(s config.Settings) {
		fetcher, metaFetcher := buildSource(s)
		sync.SetSource(fetcher, metaFetcher, s.Plex.Credential())
	}

	router := api.NewRouter(authHandler, sessionsHandler, settingsHandler)

	addr := fmt.Sprintf("%s:%d", settings.API.Host, settings.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background refresh keeps the snapshot warm between UI pulls. The
	// synchronizer supersedes in-flight refreshes, so a slow fetch and a
	// tick can never pile up.
	go refreshLoop(ctx, sync, time.Duration(settings.Refresh.IntervalSeconds)*time.Second)

	go func() {
		log.Printf("streamwatch API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func refreshLoop(ctx context.Context, sync *sessions.Synchronizer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sync.Refresh(ctx); err != nil &&
				!errors.Is(err, plexserver.ErrNotAuthenticated) &&
				!errors.Is(err, context.Canceled) {
				log.Printf("background refresh failed: %v", err)
			}
		}
	}
}

// runLogin drives the PIN handshake interactively and persists the
// resulting credential.
func runLogin(cfgManager *config.Manager, authClient *plexauth.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cred, err := authClient.Login(ctx, func(authURL string) {
		fmt.Printf("Open this page to authorize streamwatch:\n\n  %s\n\nWaiting for authorization...\n", authURL)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Login cancelled.")
			return
		}
		log.Fatalf("login failed: %v", err)
	}

	if err := persistCredential(cfgManager, cred); err != nil {
		log.Fatalf("failed to persist credential: %v", err)
	}
	fmt.Printf("Authorized as %s.\n", cred.Username)
}

func persistCredential(cfgManager *config.Manager, cred models.Credential) error {
	settings, err := cfgManager.Load()
	if err != nil {
		return err
	}
	settings.Plex.SetCredential(cred)
	return cfgManager.Save(settings)
}
