package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TGBotToken  string
	TGAdminIDs  map[int64]struct{}
	TGChannelID int64
	DBPath      string
	ArchiveTag  string

	VKToken      string
	VKAPIVersion string
	WallLimit    int
	HTTPTimeout  time.Duration

	SourcesFile string
	APIAddr     string

	LogLevel  string
	LogFormat string
}

// Load: сначала .env (если есть), потом окружение. Без .env тоже работаем.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

// MustLoad падает сразу, если чего-то не хватает.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func fromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		TGBotToken:   os.Getenv("TG_BOT_TOKEN"),
		TGAdminIDs:   ParseAdminIDs(os.Getenv("TG_ADMIN_IDS")),
		DBPath:       getenv("DB_PATH", "bot.db"),
		ArchiveTag:   NormalizeTag(getenv("ARCHIVE_TAG", "#архив")),
		VKToken:      os.Getenv("VK_TOKEN"),
		VKAPIVersion: getenv("VK_API_VERSION", "5.131"),
		SourcesFile:  getenv("SOURCES_FILE", "sources.yml"),
		APIAddr:      getenv("API_ADDR", ":8080"),
		LogLevel:     strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getenv("LOG_FORMAT", "json")),
	}

	if cfg.VKToken == "" {
		errs = append(errs, errors.New("missing env VK_TOKEN"))
	}

	var err error
	if cfg.TGChannelID, err = getInt64("TG_CHANNEL_ID", 0); err != nil {
		errs = append(errs, err)
	}
	wallLimit, err := getInt64("WALL_LIMIT", 100)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.WallLimit = int(wallLimit)

	timeout, err := getInt64("HTTP_TIMEOUT_SECONDS", 20)
	if err != nil {
		errs = append(errs, err)
	}
	if timeout <= 0 {
		errs = append(errs, fmt.Errorf("bad HTTP_TIMEOUT_SECONDS: %d", timeout))
	}
	cfg.HTTPTimeout = time.Duration(timeout) * time.Second

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("bad LOG_LEVEL %q: want debug, info, warn or error", cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("bad LOG_FORMAT %q: want json or text", cfg.LogFormat))
	}

	return cfg, errors.Join(errs...)
}

// RequireTelegram: бот и публикация без токена телеги не живут, а sync/api живут.
func (c Config) RequireTelegram() error {
	if c.TGBotToken == "" {
		return errors.New("missing env TG_BOT_TOKEN")
	}
	return nil
}

func (c Config) IsAdmin(userID int64) bool {
	if len(c.TGAdminIDs) == 0 {
		return false // админов не задали, значит никто не админ
	}
	_, ok := c.TGAdminIDs[userID]
	return ok
}

// ParseAdminIDs: TG_ADMIN_IDS=123,456,789
func ParseAdminIDs(s string) map[int64]struct{} {
	out := map[int64]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id != 0 {
			out[id] = struct{}{}
		}
	}
	return out
}

// NormalizeTag: ARCHIVE_TAG=#матрица (или ARCHIVE_TAG=матрица)
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "#архив"
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getInt64(k string, def int64) (int64, error) {
	s := strings.TrimSpace(os.Getenv(k))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", k, err)
	}
	return v, nil
}
