package config

import (
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DataDir holds the preferences file, JSON history, and HTTP mirror log
	// unless their paths are overridden individually.
	DataDir     string
	PrefsPath   string
	HistoryPath string
	HTTPLogPath string
	BankDir     string

	// HistoryDriver selects the history backend: json|sqlite|postgres.
	HistoryDriver string
	DBDSN         string

	GiftFile string

	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt
	JWTSecret       string

	CORSOrigins []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	dataDir := envOr("DATA_DIR", "./data")
	return Config{
		HTTPAddr:        addr,
		DataDir:         dataDir,
		PrefsPath:       envOr("PREFS_PATH", filepath.Join(dataDir, "preferences.json")),
		HistoryPath:     envOr("HISTORY_PATH", filepath.Join(dataDir, "test_history.json")),
		HTTPLogPath:     envOr("HTTP_LOG_PATH", filepath.Join(dataDir, "llm_http.log")),
		BankDir:         envOr("BANK_DIR", filepath.Join(dataDir, "banks")),
		HistoryDriver:   envOr("HISTORY_DRIVER", "json"),
		DBDSN:           envOr("DB_DSN", ""),
		GiftFile:        os.Getenv("GIFT_FILE"),
		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", false),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", ""),
		JWTSecret:       envOr("JWT_SECRET", ""),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
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
