package config

import (
	"errors"
	"log"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl string `env:"DB_URL"`
	Port  string `env:"PORT,default=8080"`

	UploadDir string `env:"UPLOAD_DIR,default=uploads"`

	MapsAPIKey  string        `env:"MAPS_API_KEY"`
	MapsBaseURL string        `env:"MAPS_BASE_URL,default=https://maps.googleapis.com/maps/api"`
	MapsTimeout time.Duration `env:"MAPS_TIMEOUT,default=5s"`

	// NodeID seeds the product id generator; must differ per running instance.
	NodeID int64 `env:"NODE_ID,default=1"`

	RateLimit float64 `env:"RATE_LIMIT,default=10"`
	RateBurst int     `env:"RATE_BURST,default=20"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogFile  string `env:"LOG_FILE"`
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		log.Fatal("invalid configuration: ", err)
	}

	return cfg
}
