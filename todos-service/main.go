package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/magna-todo/internal/config"
	"github.com/chepyr/magna-todo/internal/logger"
	"github.com/chepyr/magna-todo/todos-service/db"
	"github.com/chepyr/magna-todo/todos-service/handlers"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Getenv("MODE"), os.Getenv("LOG_LEVEL"))

	validateEnv(log)
	dbConn := initDB(log)
	defer dbConn.Close()

	mux := initHandlers(log, dbConn)
	server := initServer(mux)
	startServer(log, server)
}

func driverName() string {
	if d := os.Getenv("DB_DRIVER"); d != "" {
		return d
	}
	return "postgres"
}

func validateEnv(log zerolog.Logger) {
	required := []string{"SERVER_PORT_TODOS"}
	switch driverName() {
	case "postgres":
		required = append(required,
			"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
			"POSTGRES_HOST", "POSTGRES_PORT")
	case "sqlite3":
		required = append(required, "SQLITE_PATH")
	default:
		log.Fatal().Str("driver", driverName()).Msg("DB_DRIVER must be postgres or sqlite3")
	}
	if err := config.RequireEnv(required...); err != nil {
		log.Fatal().Err(err).Msg("invalid environment")
	}
}

func initDB(log zerolog.Logger) *sql.DB {
	var dsn string
	switch driverName() {
	case "sqlite3":
		dsn = os.Getenv("SQLITE_PATH")
	default:
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"), os.Getenv("POSTGRES_DB"),
			os.Getenv("POSTGRES_PORT"))
	}

	dbConn, err := db.Connect(driverName(), dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, dbConn); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return dbConn
}

func initHandlers(log zerolog.Logger, dbConn *sql.DB) *http.ServeMux {
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	images, err := handlers.NewImageStore(uploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	handler := &handlers.Handler{
		TodoRepo:    db.NewTodoRepository(dbConn),
		Images:      images,
		RateLimiter: handlers.NewRateLimiter(5, time.Second),
		WSHub:       handlers.NewWSHub(),
		Log:         log,
	}
	mux := http.NewServeMux()
	handler.Routes(mux)
	return mux
}

func initServer(mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              ":" + os.Getenv("SERVER_PORT_TODOS"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startServer(log zerolog.Logger, server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Starting todos server")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
