// Пакет config собирает конфигурацию музыкального бота из окружения.
// Он:
//  1. читает переменные из .env (через godotenv; отсутствие файла не ошибка),
//  2. нормализует и валидирует значения, подставляя дефолты,
//  3. копит предупреждения о подставленных значениях (Warnings),
//  4. отдаёт неизменяемый снимок через Env().
//
// Бизнес-контекст: бот подключается к Telegram по MTProto с bot-токеном,
// скачивает медиа через внешний download API и кладёт копии в канал-хранилище
// (UPLOAD_CHANNEL), чтобы следующий запрос того же трека обслуживался из Telegram.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Поддерживаемые бэкенды кеша ссылок на канал.
const (
	CacheBackendJSON     = "json"
	CacheBackendBolt     = "bolt"
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
)

// Режимы ответа на /play.
const (
	PlayModeDirect = "Direct"
	PlayModeInline = "Inline"
)

// EnvConfig - операционные настройки запуска. Значения уже прошли нормализацию в loadConfig.
type EnvConfig struct {
	APIID       int
	APIHash     string
	BotToken    string
	TestDC      bool
	SessionFile string
	StateFile   string
	PeersFile   string

	// Медиа-конвейер
	UploadChannel       string // "@username" или числовой id канала; пусто - без повторной загрузки
	DownloadDir         string
	CacheDir            string // миниатюры
	CacheBackend        string
	CacheFile           string // json-бэкенд
	BoltCacheFile       string
	PostgresDSN         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	MediaAPIURL         string
	MediaAPIURLSource   string
	MediaAPIURLFallback string
	CookiesDir          string
	UploadConcurrency   int
	UploadRPS           int

	// Ограничения воспроизведения
	DurationLimitMin   int
	AudioFileSizeLimit int64
	VideoFileSizeLimit int64
	PlaylistFetchLimit int
	PlayMode           string

	// Чаты и оформление
	OwnerID        int64
	LogGroupID     int64
	PlayLogs       bool
	SupportGroup   string
	StartImgURL    string
	PlaylistImgURL string
	YoutubeImgURL  string
	Language       string

	DedupWindowSec int
	CLI            bool

	// Логирование
	LogLevel          string
	LogFile           string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// DurationLimit возвращает лимит длительности трека в секундах.
func (e EnvConfig) DurationLimit() int {
	return e.DurationLimitMin * 60 //nolint:mnd // минуты в секунды
}

// Config хранит снимок окружения и предупреждения загрузки.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultLogLevel            = "info"
	defaultSessionFile         = "data/session.json"
	defaultStateFile           = "data/state.bbolt"
	defaultPeersFile           = "data/peers.bbolt"
	defaultDownloadDir         = "downloads"
	defaultCacheDir            = "cache"
	defaultCacheBackend        = CacheBackendJSON
	defaultCacheFile           = "data/yt_cache.json"
	defaultBoltCacheFile       = "data/yt_cache.bbolt"
	defaultRedisDB             = 0
	defaultMediaAPIURLFallback = "https://ytdl-api.fly.dev"
	defaultCookiesDir          = "assets/cookies"
	defaultUploadConcurrency   = 2
	defaultUploadRPS           = 1
	defaultDurationLimitMin    = 60
	defaultAudioFileSizeLimit  = 104857600
	defaultVideoFileSizeLimit  = 1073741824
	defaultPlaylistFetchLimit  = 25
	defaultPlayMode            = PlayModeDirect
	defaultPlayLogs            = true
	defaultStartImgURL         = "https://telegra.ph/file/start.jpg"
	defaultPlaylistImgURL      = "https://telegra.ph/file/playlist.jpg"
	defaultYoutubeImgURL       = "https://telegra.ph/file/youtube.jpg"
	defaultLanguage            = "en"
	defaultDedupWindowSec      = 120
	defaultLogFileMaxSize      = 50
	defaultLogFileMaxBackups   = 3
	defaultLogFileMaxAge       = 7
	defaultLogFileCompress     = true
)

var (
	cfgInstance = &Config{}
	cfgDone     bool
)

// Load - точка входа для инициализации глобальной конфигурации.
// Повторный вызов запрещён, чтобы не ловить гонки конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance.mu.Lock()
	cfgInstance.Env = newCfg.Env
	cfgInstance.warnings = newCfg.warnings
	cfgInstance.mu.Unlock()
	cfgDone = true
	return nil
}

// loadConfig выполняет загрузку без установки глобального состояния. Нужна тестам.
func loadConfig(envPath string) (*Config, error) {
	var warnings []string

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrapf(err, "load %s", envPath)
			}
			appendWarningf(&warnings, "env file %q not found; using process environment", envPath)
		}
	}

	apiID, err := parseRequiredInt("API_ID")
	if err != nil {
		return nil, err
	}
	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiHash == "" {
		return nil, errors.New("env API_HASH must be set")
	}
	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if botToken == "" {
		return nil, errors.New("env BOT_TOKEN must be set")
	}

	env := EnvConfig{
		APIID:       apiID,
		APIHash:     apiHash,
		BotToken:    botToken,
		TestDC:      parseBoolDefault("TEST_DC", false, &warnings),
		SessionFile: sanitizeFile("SESSION_FILE", os.Getenv("SESSION_FILE"), defaultSessionFile, &warnings),
		StateFile:   sanitizeFile("STATE_FILE", os.Getenv("STATE_FILE"), defaultStateFile, &warnings),
		PeersFile:   sanitizeFile("PEERS_FILE", os.Getenv("PEERS_FILE"), defaultPeersFile, &warnings),

		UploadChannel: sanitizeChannel(os.Getenv("UPLOAD_CHANNEL"), &warnings),
		DownloadDir:   sanitizeFile("DOWNLOAD_DIR", os.Getenv("DOWNLOAD_DIR"), defaultDownloadDir, &warnings),
		CacheDir:      sanitizeFile("CACHE_DIR", os.Getenv("CACHE_DIR"), defaultCacheDir, &warnings),
		CacheFile:     sanitizeFile("CACHE_FILE", os.Getenv("CACHE_FILE"), defaultCacheFile, &warnings),
		BoltCacheFile: sanitizeFile("BOLT_CACHE_FILE", os.Getenv("BOLT_CACHE_FILE"), defaultBoltCacheFile, &warnings),
		PostgresDSN:   strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntDefault("REDIS_DB", defaultRedisDB, nonNegative, &warnings),
		MediaAPIURL: firstNonEmpty(
			os.Getenv("MEDIA_API_URL"),
			os.Getenv("YOUR_API_URL"),
			os.Getenv("MUSIC_API_URL"),
		),
		MediaAPIURLSource: strings.TrimSpace(os.Getenv("MEDIA_API_URL_SOURCE")),
		MediaAPIURLFallback: sanitizeFile("MEDIA_API_URL_FALLBACK",
			firstNonEmpty(os.Getenv("MEDIA_API_URL_FALLBACK"), os.Getenv("YOUR_API_URL_FALLBACK")),
			defaultMediaAPIURLFallback, &warnings),
		CookiesDir:        sanitizeFile("COOKIES_DIR", os.Getenv("COOKIES_DIR"), defaultCookiesDir, &warnings),
		UploadConcurrency: parseIntDefault("UPLOAD_CONCURRENCY", defaultUploadConcurrency, greaterThanZero, &warnings),
		UploadRPS:         parseIntDefault("UPLOAD_RPS", defaultUploadRPS, greaterThanZero, &warnings),

		DurationLimitMin:   parseIntDefault("DURATION_LIMIT_MIN", defaultDurationLimitMin, greaterThanZero, &warnings),
		AudioFileSizeLimit: parseInt64Default("TG_AUDIO_FILESIZE_LIMIT", defaultAudioFileSizeLimit, &warnings),
		VideoFileSizeLimit: parseInt64Default("TG_VIDEO_FILESIZE_LIMIT", defaultVideoFileSizeLimit, &warnings),
		PlaylistFetchLimit: parseIntDefault("PLAYLIST_FETCH_LIMIT", defaultPlaylistFetchLimit, greaterThanZero, &warnings),
		PlayMode:           sanitizePlayMode(os.Getenv("PLAY_MODE"), &warnings),

		OwnerID:        parseInt64Default("OWNER_ID", 0, &warnings),
		LogGroupID:     parseInt64Default("LOG_GROUP_ID", 0, &warnings),
		PlayLogs:       parseBoolDefault("PLAY_LOGS", defaultPlayLogs, &warnings),
		SupportGroup:   strings.TrimSpace(os.Getenv("SUPPORT_GROUP")),
		StartImgURL:    sanitizeFile("START_IMG_URL", os.Getenv("START_IMG_URL"), defaultStartImgURL, &warnings),
		PlaylistImgURL: sanitizeFile("PLAYLIST_IMG_URL", os.Getenv("PLAYLIST_IMG_URL"), defaultPlaylistImgURL, &warnings),
		YoutubeImgURL:  sanitizeFile("YOUTUBE_IMG_URL", os.Getenv("YOUTUBE_IMG_URL"), defaultYoutubeImgURL, &warnings),
		Language:       strings.ToLower(sanitizeFile("LANGUAGE", os.Getenv("LANGUAGE"), defaultLanguage, &warnings)),

		DedupWindowSec: parseIntDefault("DEDUP_WINDOW_SEC", defaultDedupWindowSec, nonNegative, &warnings),
		CLI:            parseBoolDefault("CLI", false, &warnings),

		LogLevel:          sanitizeLogLevel(os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileMaxSize:    parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings),
		LogFileMaxBackups: parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings),
		LogFileMaxAge:     parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings),
		LogFileCompress:   parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings),
	}
	env.CacheBackend = sanitizeCacheBackend(os.Getenv("CACHE_BACKEND"), env, &warnings)

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings возвращает копию предупреждений, накопленных при загрузке.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает снимок конфигурации на момент загрузки.
func Env() EnvConfig {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

func parseRequiredInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, errors.Errorf("env %s must be set", name)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "env %s must be a valid integer", name)
	}
	return v, nil
}

// parseIntDefault читает name как int. Пусто, мусор или отказ validator - defaultVal и предупреждение.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// parseInt64Default - то же для идентификаторов чатов и размеров файлов.
func parseInt64Default(name string, defaultVal int64, warnings *[]string) int64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	return v
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// sanitizeLogLevel ограничивает LOG_LEVEL набором {debug, info, warn, error}.
func sanitizeLogLevel(level string, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultVal)
		return defaultVal
	}
}

// sanitizeFile возвращает значение или fallback с предупреждением.
func sanitizeFile(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}

// sanitizeChannel принимает "@username", "username" или числовой id.
// Голое имя дополняется "@", чтобы ссылки строились в формате t.me/<username>/<id>.
func sanitizeChannel(value string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env UPLOAD_CHANNEL is not set; channel re-upload disabled")
		return ""
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return v
	}
	if !strings.HasPrefix(v, "@") {
		v = "@" + v
	}
	return v
}

func sanitizePlayMode(value string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return defaultPlayMode
	case strings.EqualFold(v, PlayModeDirect):
		return PlayModeDirect
	case strings.EqualFold(v, PlayModeInline):
		return PlayModeInline
	default:
		appendWarningf(warnings, "env PLAY_MODE value %q is invalid; using default %q", value, defaultPlayMode)
		return defaultPlayMode
	}
}

// sanitizeCacheBackend проверяет, что для выбранного бэкенда хватает параметров.
// Postgres без DSN и redis без адреса откатываются на json.
func sanitizeCacheBackend(value string, env EnvConfig, warnings *[]string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return defaultCacheBackend
	case CacheBackendJSON, CacheBackendBolt:
		return v
	case CacheBackendPostgres:
		if env.PostgresDSN == "" {
			appendWarningf(warnings, "CACHE_BACKEND=postgres requires POSTGRES_DSN; using %q", defaultCacheBackend)
			return defaultCacheBackend
		}
		return v
	case CacheBackendRedis:
		if env.RedisAddr == "" {
			appendWarningf(warnings, "CACHE_BACKEND=redis requires REDIS_ADDR; using %q", defaultCacheBackend)
			return defaultCacheBackend
		}
		return v
	default:
		appendWarningf(warnings, "env CACHE_BACKEND value %q is invalid; using default %q", value, defaultCacheBackend)
		return defaultCacheBackend
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
