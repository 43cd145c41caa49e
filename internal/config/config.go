package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment          string
	DBHost               string
	DBPort               string
	DBUsername           string
	DBPassword           string
	DBName               string
	DBSSLMode            string
	StorageRoot          string
	ImageBaseURL         string
	GmailCredentialsPath string
	GmailTokenPath       string
	Timezone             string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("ARCHIVE_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:          env,
		DBHost:               getEnvOrDefault("ARCHIVE_DB_HOST", "localhost"),
		DBPort:               getEnvOrDefault("ARCHIVE_DB_PORT", "5432"),
		DBUsername:           getEnvOrDefault("ARCHIVE_DB_USER", "archive"),
		DBPassword:           os.Getenv("ARCHIVE_DB_PASSWORD"),
		DBName:               getEnvOrDefault("ARCHIVE_DB_NAME", "archive"),
		DBSSLMode:            getEnvOrDefault("ARCHIVE_DB_SSLMODE", "disable"),
		StorageRoot:          getEnvOrDefault("STORAGE_ROOT", "storage"),
		ImageBaseURL:         getEnvOrDefault("IMAGE_BASE_URL", "http://localhost:3001/api/images"),
		GmailCredentialsPath: getEnvOrDefault("GMAIL_CREDENTIALS_PATH", "credentials.json"),
		GmailTokenPath:       getEnvOrDefault("GMAIL_TOKEN_PATH", "token.json"),
		Timezone:             getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("ARCHIVE_DB_PASSWORD is required")
	}

	if c.StorageRoot == "" {
		return fmt.Errorf("STORAGE_ROOT must not be empty")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
