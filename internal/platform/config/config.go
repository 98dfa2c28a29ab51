package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	LogMode string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuditQueueName       string
	CurriculumCacheTTL   time.Duration
	SandboxTimeout       time.Duration
	SandboxMemoryLimitMB int

	MaxSubmissionBytes int

	RateLimitWindow           time.Duration
	RateLimitMaxPerWindow     int
	RateLimitFailureThreshold int
	RateLimitPenaltyCooldown  time.Duration
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort: getEnv("API_PORT", "8080"),
		LogMode: getEnv("LOG_MODE", "dev"),
		JWTKey:  []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:  time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "codesteps_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AuditQueueName:       getEnv("AUDIT_QUEUE_NAME", "admin_audit_queue"),
		CurriculumCacheTTL:   time.Duration(getEnvAsInt("CURRICULUM_CACHE_TTL_SECONDS", 120)) * time.Second,
		SandboxTimeout:       time.Duration(getEnvAsInt("SANDBOX_TIMEOUT_SECONDS", 5)) * time.Second,
		SandboxMemoryLimitMB: getEnvAsInt("SANDBOX_MEMORY_LIMIT_MB", 128),

		MaxSubmissionBytes: getEnvAsInt("MAX_SUBMISSION_BYTES", 65536),

		RateLimitWindow:           time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitMaxPerWindow:     getEnvAsInt("RATE_LIMIT_MAX_PER_WINDOW", 5),
		RateLimitFailureThreshold: getEnvAsInt("RATE_LIMIT_FAILURE_THRESHOLD", 3),
		RateLimitPenaltyCooldown:  time.Duration(getEnvAsInt("RATE_LIMIT_PENALTY_COOLDOWN_SECONDS", 300)) * time.Second,
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
