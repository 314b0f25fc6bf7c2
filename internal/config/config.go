package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs|gcs|s3
	BlobBasePath string // for fs
	BlobBucket   string // for gcs/s3

	S3Endpoint  string // empty for AWS, host:port for MinIO
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool

	OCRDriver  string // tesseract|vision
	OCRLang    string
	OCRTimeout time.Duration

	LockDriver    string // local|redis
	RedisAddr     string
	RedisPassword string

	AuthSecret       string
	AdminUser        string
	AdminPassHash    string // bcrypt
	OperatorUser     string
	OperatorPassHash string // bcrypt

	CORSOrigins []string

	DownloadURLTTL time.Duration
	MaxVariants    int
	FontPath       string // optional TTF for sheets; Go Regular otherwise
}

// FromEnv reads .env (if present) and then the process environment.
func FromEnv() Config {
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defOrigins := "http://localhost:3000"
	if mode == ModeOnline {
		defOrigins = "https://reshuffle.mindengage.ai"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", "dev"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		BlobDriver:   envOr("BLOB_DRIVER", "fs"),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),
		BlobBucket:   envOr("BLOB_BUCKET", "reshuffle"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3PathStyle: envBool("S3_PATH_STYLE", true),

		OCRDriver:  envOr("OCR_DRIVER", "tesseract"),
		OCRLang:    envOr("OCR_LANG", "eng"),
		OCRTimeout: time.Duration(envInt("OCR_TIMEOUT_SEC", 20)) * time.Second,

		LockDriver:    envOr("LOCK_DRIVER", "local"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AuthSecret:       envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:        envOr("ADMIN_USER", "admin"),
		AdminPassHash:    envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		OperatorUser:     os.Getenv("OPERATOR_USER"),
		OperatorPassHash: os.Getenv("OPERATOR_PASS_HASH"),

		CORSOrigins: csvOr("CORS_ORIGINS", defOrigins),

		DownloadURLTTL: time.Duration(envInt("DOWNLOAD_URL_TTL_SEC", 3600)) * time.Second,
		MaxVariants:    envInt("MAX_VARIANTS", 100),
		FontPath:       os.Getenv("FONT_PATH"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
