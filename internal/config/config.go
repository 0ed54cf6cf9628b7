package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// 개발용 기본 시크릿 (JWT_SECRET 미설정 시)
const fallbackJWTSecret = "fallback_secret"

// Store 드라이버
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Chat      ChatConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	SendBuffer        int
	MaxMessageSize    int64
	PongWait          time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64
	MessageBurst      int

	// 초과 프레임 허용량. 이 속도 이상으로 계속 초과하면 연결 종료
	ViolationsPerSecond float64
	ViolationBurst      int
}

// WebSocket 기본값 (0 이하 설정값은 이 값으로 대체)
const (
	defaultWSBufferSize      = 4096
	defaultSendBuffer        = 256
	defaultMaxMessageSize    = 1024 * 1024
	defaultPongWait          = 60 * time.Second
	defaultWSWriteTimeout    = 10 * time.Second
	defaultMessagesPerSecond = 60
	defaultMessageBurst      = 120
	defaultViolationsPerSec  = 10
	defaultViolationBurst    = 1000
)

// PingPeriod pong 대기시간보다 짧게 유지
func (w WebSocketConfig) PingPeriod() time.Duration {
	return w.PongWait * 9 / 10
}

// Sanitize 0 이하 값을 기본값으로 교체 (ticker/채널 생성이 실패하지 않도록)
func (w WebSocketConfig) Sanitize() WebSocketConfig {
	if w.ReadBufferSize <= 0 {
		w.ReadBufferSize = defaultWSBufferSize
	}
	if w.WriteBufferSize <= 0 {
		w.WriteBufferSize = defaultWSBufferSize
	}
	if w.SendBuffer <= 0 {
		w.SendBuffer = defaultSendBuffer
	}
	if w.MaxMessageSize <= 0 {
		w.MaxMessageSize = defaultMaxMessageSize
	}
	if w.PongWait <= 0 {
		w.PongWait = defaultPongWait
	}
	if w.PingPeriod() <= 0 {
		// 1ns 같은 값은 9/10 하면 0
		w.PongWait = time.Second
	}
	if w.WriteTimeout <= 0 {
		w.WriteTimeout = defaultWSWriteTimeout
	}
	if w.MessagesPerSecond <= 0 {
		w.MessagesPerSecond = defaultMessagesPerSecond
	}
	if w.MessageBurst <= 0 {
		w.MessageBurst = defaultMessageBurst
	}
	if w.ViolationsPerSecond <= 0 {
		w.ViolationsPerSecond = defaultViolationsPerSec
	}
	if w.ViolationBurst <= 0 {
		w.ViolationBurst = defaultViolationBurst
	}
	return w
}

// StoreConfig 문서 저장소 선택
type StoreConfig struct {
	Driver string
}

// PostgresConfig PostgreSQL 접속 설정
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// MongoConfig MongoDB 접속 설정
type MongoConfig struct {
	URI      string
	Database string
}

// AuthConfig 인증 설정
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// RedisConfig Redis 설정 (Addr 비어있으면 presence 미러 비활성화)
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// Enabled Redis 사용 여부
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ChatConfig 채팅 설정
type ChatConfig struct {
	HistoryLimit int
	MaxLength    int
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// LogConfig 로깅 설정
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set, using fallback secret (development only)")
		jwtSecret = fallbackJWTSecret
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreMemory))
	if getBool("IN_MEMORY_DB", false) {
		driver = StoreMemory
	}

	return &Config{
		Server: ServerConfig{
			Port:         normalizePort(getEnv("PORT", ":5000")),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:      getInt("WS_READ_BUFFER_SIZE", defaultWSBufferSize),
			WriteBufferSize:     getInt("WS_WRITE_BUFFER_SIZE", defaultWSBufferSize),
			SendBuffer:          getInt("WS_SEND_BUFFER", defaultSendBuffer),
			MaxMessageSize:      int64(getInt("WS_MAX_MESSAGE_SIZE", defaultMaxMessageSize)),
			PongWait:            getDuration("WS_PONG_WAIT", defaultPongWait),
			WriteTimeout:        getDuration("WS_WRITE_TIMEOUT", defaultWSWriteTimeout),
			MessagesPerSecond:   getFloat("WS_MESSAGES_PER_SECOND", defaultMessagesPerSecond),
			MessageBurst:        getInt("WS_MESSAGE_BURST", defaultMessageBurst),
			ViolationsPerSecond: getFloat("WS_VIOLATIONS_PER_SECOND", defaultViolationsPerSec),
			ViolationBurst:      getInt("WS_VIOLATION_BURST", defaultViolationBurst),
		}.Sanitize(),
		Store: StoreConfig{
			Driver: driver,
		},
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "whiteboard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "whiteboard"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 30*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getInt("REDIS_DB", 0),
			PresenceTTL: getDuration("PRESENCE_TTL", 2*time.Hour),
		},
		Chat: ChatConfig{
			HistoryLimit: getInt("CHAT_HISTORY_LIMIT", 50),
			MaxLength:    getInt("CHAT_MAX_LENGTH", 2000),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBool("LOG_PRETTY", false),
		},
	}
}

// normalizePort "5000" 형태도 허용
func normalizePort(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getFloat 실수형 환경 변수 조회
func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
