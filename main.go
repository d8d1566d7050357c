package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"assettrack/config"
	"assettrack/database"
	"assettrack/handlers"
	"assettrack/middleware"
	"assettrack/models"
	"assettrack/routes"
	"assettrack/store"
	"assettrack/utils"
	ws "assettrack/websocket"
	"assettrack/workflow"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it")
	}

	config.LoadConfig()

	// Database connection
	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	st := store.NewMongo(database.Client, config.DBName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.EnsureIndexes(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to create indexes: %v", err)
	}
	if err := seedTemplates(ctx, st); err != nil {
		cancel()
		log.Fatalf("Failed to seed document templates: %v", err)
	}
	if err := seedAdminUser(ctx, st); err != nil {
		cancel()
		log.Fatalf("Failed to seed admin user: %v", err)
	}
	cancel()

	// Workflow services share one lock table so registry and coordinator
	// operations on the same asset are linearized.
	locks := workflow.NewLockTable()
	recorder := workflow.NewRecorder(st)
	signing := workflow.NewSigning(st)
	registry := workflow.NewRegistry(st, recorder, locks)
	coordinator := workflow.NewCoordinator(st, signing, recorder, locks)
	monitor := workflow.NewMonitor(st, config.OverdueDays)

	hub := ws.NewHub()
	go hub.Run()
	recorder.Notify(hub.BroadcastAudit)

	handlers.InitServices(st, registry, coordinator, signing, monitor, recorder)

	// Router setup
	router := mux.NewRouter()
	routes.RegisterRoutes(router, hub)

	// Global middlewares (order matters!)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.CorsMiddleware)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("AssetTrack backend running on http://localhost:%s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	database.Disconnect()
	log.Println("Server stopped gracefully")
}

// seedTemplates installs the default compliance documents if missing.
// Existing templates are left untouched.
func seedTemplates(ctx context.Context, st store.Store) error {
	for _, t := range workflow.DefaultTemplates() {
		if _, err := st.GetTemplate(ctx, t.DocumentType); err == nil {
			continue
		}
		tmpl := t
		if err := st.UpsertTemplate(ctx, &tmpl); err != nil {
			return err
		}
		log.Printf("Seeded document template %q", t.DocumentType)
	}
	return nil
}

// seedAdminUser creates the bootstrap administrator when the directory has
// no entry for ADMIN_EMAIL yet.
func seedAdminUser(ctx context.Context, st store.Store) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	if _, err := st.GetUserByEmail(ctx, email); err == nil {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
		log.Printf("ADMIN_PASSWORD not set, seeding %s with the default password", email)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return st.InsertUser(ctx, &models.User{
		FullName:     "Administrator",
		Email:        email,
		Department:   "IT",
		PasswordHash: hash,
		Role:         "admin",
		CreatedAt:    time.Now().UTC(),
	})
}
