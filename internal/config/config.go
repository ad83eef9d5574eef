package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DevTicketURL  = "http://localhost:8000/support/ticket"
	ProdTicketURL = "https://api.inside-nfts.com/support/ticket"

	defaultAPIURL = "http://localhost:8000"
)

// Config is the client side configuration shared by the CLI and the stores.
type Config struct {
	Mode       string
	APIBaseURL string
	TicketURL  string
	LogLevel   string
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (*Config, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}
	mode := os.Getenv("MODE")
	cfg := &Config{
		Mode:       mode,
		APIBaseURL: strings.TrimRight(getenv("TODO_API_URL", defaultAPIURL), "/"),
		TicketURL:  getenv("TICKET_URL", TicketEndpoint(mode)),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// TicketEndpoint picks the ticket target for the offline variant.
func TicketEndpoint(mode string) string {
	if mode == "dev" {
		return DevTicketURL
	}
	return ProdTicketURL
}

// RequireEnv returns an error naming every variable that is unset.
func RequireEnv(names ...string) error {
	var missing []string
	for _, name := range names {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("environment variables must be set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// a missing .env is fine, environment variables may come from elsewhere
func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", f, err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
