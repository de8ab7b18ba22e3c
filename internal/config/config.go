package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 认证模式
const (
	AuthModeSession  = "session"
	AuthModeAPIKey   = "apikey"
	AuthModeSupabase = "supabase"
	AuthModeNone     = "none"
)

// 存储驱动
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
	StorageDriverAWS   = "aws"
)

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort           string
	LogLevel           string
	StorageDir         string
	PublicBaseURL      string // 对象公开访问地址前缀，为空时由存储驱动推导
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	RedisAddr          string
	RedisPassword      string
	// 鉴权配置
	AuthMode          string   // session / apikey / supabase / none
	APIKeys           []string // AuthMode=apikey 时有效的 API Keys
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string // bcrypt，优先于明文密码
	AnalyticsUsername string
	AnalyticsPassword string
	SessionSecret     string
	SessionTTL        time.Duration
	SecureCookies     bool
	LoginMaxAttempts  int
	LoginLockout      time.Duration
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string
	// 存储配置
	StorageDriver string // "local"、"s3" 或 "aws"
	S3Endpoint    string // S3/MinIO 端点，不含协议
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3Region      string
	S3UseSSL      bool // 是否使用 HTTPS
	S3PathStyle   bool // 是否使用路径风格访问（MinIO 需要设为 true）
	// 上传配置
	MaxUploadBytes       int64
	MaxBatchFiles        int
	StoreOpTimeout       time.Duration
	ConnectivityInterval time.Duration
}

// source 按优先级查找配置值：环境变量优先，其次是 CONFIG_FILE 指定的 YAML。
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return s.file[key]
}

// Load 从环境变量加载配置，并提供默认值。
// 若存在 .env 文件会先行加载；CONFIG_FILE 指向的 YAML 文件提供可被环境变量覆盖的默认值。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	fileValues, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return load(source{file: fileValues})
}

func load(src source) (*Config, error) {
	port := src.get("PORT")
	if port == "" {
		port = "8080"
	}

	storageDriver := strings.ToLower(envOrDefault(src, "STORAGE_DRIVER", StorageDriverLocal))
	switch storageDriver {
	case StorageDriverLocal, StorageDriverS3, StorageDriverAWS:
	default:
		return nil, fmt.Errorf("未知的 STORAGE_DRIVER: %s", storageDriver)
	}

	storage := envOrDefault(src, "STORAGE_DIR", "./data")
	if storageDriver == StorageDriverLocal {
		if err := ensureDir(storage); err != nil {
			return nil, fmt.Errorf("确保存储目录失败: %w", err)
		}
	}

	corsOrigins := parseList(src.get("CORS_ALLOWED_ORIGINS"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	rateLimitRequests, err := parseIntEnv(src, "RATE_LIMIT_REQUESTS", 60)
	if err != nil {
		return nil, err
	}
	rateLimitWindow, err := parseDurationEnv(src, "RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	dbPort, err := parseIntEnv(src, "DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDurationEnv(src, "SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	loginMaxAttempts, err := parseIntEnv(src, "LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	loginLockout, err := parseDurationEnv(src, "LOGIN_LOCKOUT", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	maxUploadBytes, err := parseIntEnv(src, "MAX_UPLOAD_BYTES", 50*1024*1024)
	if err != nil {
		return nil, err
	}
	maxBatchFiles, err := parseIntEnv(src, "MAX_BATCH_FILES", 20)
	if err != nil {
		return nil, err
	}
	storeOpTimeout, err := parseDurationEnv(src, "STORE_OP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	connectivityInterval, err := parseDurationEnv(src, "CONNECTIVITY_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}

	authMode := strings.ToLower(envOrDefault(src, "AUTH_MODE", AuthModeSession))
	switch authMode {
	case AuthModeSession, AuthModeAPIKey, AuthModeSupabase, AuthModeNone:
	default:
		return nil, fmt.Errorf("未知的 AUTH_MODE: %s", authMode)
	}

	apiKeys := parseList(src.get("API_KEYS"))
	if len(apiKeys) == 0 {
		// 开发环境默认 key
		apiKeys = []string{"dev-api-key-123456"}
	}

	sessionSecret := src.get("SESSION_SECRET")
	if authMode == AuthModeSession && sessionSecret == "" {
		return nil, errors.New("AUTH_MODE=session 时必须设置 SESSION_SECRET")
	}

	return &Config{
		HTTPPort:             port,
		LogLevel:             envOrDefault(src, "LOG_LEVEL", "info"),
		StorageDir:           storage,
		PublicBaseURL:        strings.TrimRight(src.get("PUBLIC_BASE_URL"), "/"),
		CORSAllowedOrigins:   corsOrigins,
		RateLimitRequests:    rateLimitRequests,
		RateLimitWindow:      rateLimitWindow,
		DBHost:               envOrDefault(src, "DB_HOST", "127.0.0.1"),
		DBPort:               dbPort,
		DBUser:               envOrDefault(src, "DB_USER", "fileshelf"),
		DBPassword:           envOrDefault(src, "DB_PASSWORD", "fileshelf"),
		DBName:               envOrDefault(src, "DB_NAME", "fileshelf"),
		DBSSLMode:            envOrDefault(src, "DB_SSL_MODE", "disable"),
		RedisAddr:            strings.TrimSpace(src.get("REDIS_ADDR")),
		RedisPassword:        src.get("REDIS_PASSWORD"),
		AuthMode:             authMode,
		APIKeys:              apiKeys,
		AdminUsername:        src.get("ADMIN_USERNAME"),
		AdminPassword:        src.get("ADMIN_PASSWORD"),
		AdminPasswordHash:    src.get("ADMIN_PASSWORD_HASH"),
		AnalyticsUsername:    src.get("ANALYTICS_USERNAME"),
		AnalyticsPassword:    src.get("ANALYTICS_PASSWORD"),
		SessionSecret:        sessionSecret,
		SessionTTL:           sessionTTL,
		SecureCookies:        parseBoolEnv(src, "SECURE_COOKIES", false),
		LoginMaxAttempts:     loginMaxAttempts,
		LoginLockout:         loginLockout,
		SupabaseURL:          src.get("SUPABASE_URL"),
		SupabaseAnonKey:      src.get("SUPABASE_ANON_KEY"),
		SupabaseJWTSecret:    src.get("SUPABASE_JWT_SECRET"),
		StorageDriver:        storageDriver,
		S3Endpoint:           envOrDefault(src, "S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:          envOrDefault(src, "S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:          envOrDefault(src, "S3_SECRET_KEY", "minioadmin"),
		S3Bucket:             envOrDefault(src, "S3_BUCKET", "files"),
		S3Region:             envOrDefault(src, "S3_REGION", "us-east-1"),
		S3UseSSL:             parseBoolEnv(src, "S3_USE_SSL", false),
		S3PathStyle:          parseBoolEnv(src, "S3_PATH_STYLE", true),
		MaxUploadBytes:       int64(maxUploadBytes),
		MaxBatchFiles:        maxBatchFiles,
		StoreOpTimeout:       storeOpTimeout,
		ConnectivityInterval: connectivityInterval,
	}, nil
}

// loadFile 读取扁平的 KEY: value 形式 YAML 配置；path 为空时返回空集合。
func loadFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return values, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("路径 %s 已存在但不是目录", path)
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}

	return err
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(src source, key string, defaultValue int) (int, error) {
	raw := src.get(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseDurationEnv(src source, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := src.get(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseBoolEnv(src source, key string, defaultValue bool) bool {
	raw := strings.TrimSpace(src.get(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

// PostgresDSN 生成标准 postgres:// 连接串，供数据访问层直接使用。
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func envOrDefault(src source, key, defaultValue string) string {
	if value := src.get(key); value != "" {
		return value
	}
	return defaultValue
}
