package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/handler"
	"collabboard-backend/internal/logging"
	"collabboard-backend/internal/presence"
	"collabboard-backend/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Server Fiber 서버 래퍼
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	log            zerolog.Logger
	store          store.Store
	mirror         *presence.RedisMirror
	engine         *collab.Engine
	jwtManager     *auth.JWTManager
	boardHandler   *handler.BoardHandler
	messageHandler *handler.MessageHandler
	userHandler    *handler.UserHandler
	healthHandler  *handler.HealthHandler
	boardWSHandler *handler.BoardWSHandler
}

// New 새 서버 인스턴스 생성. mirror는 nil 가능
func New(cfg *config.Config, st store.Store, engine *collab.Engine, jwtManager *auth.JWTManager, mirror *presence.RedisMirror, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Collaborative Whiteboard Server",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 요소 배열 통째 저장
		DisableStartupMessage: true,
	})

	var (
		redisPinger handler.Pinger
		lister      handler.ParticipantLister
	)
	if mirror != nil {
		redisPinger = mirror
		lister = mirror
	}

	return &Server{
		app:            app,
		cfg:            cfg,
		log:            log,
		store:          st,
		mirror:         mirror,
		engine:         engine,
		jwtManager:     jwtManager,
		boardHandler:   handler.NewBoardHandler(st, engine, logging.Component(log, "boards")),
		messageHandler: handler.NewMessageHandler(engine, logging.Component(log, "messages")),
		userHandler:    handler.NewUserHandler(st),
		healthHandler:  handler.NewHealthHandler(st, redisPinger, lister, engine),
		boardWSHandler: handler.NewBoardWSHandler(engine, cfg.WebSocket, logging.Component(log, "gateway")),
	}
}

// App 테스트용
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Output:     s.log,
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (보드 생성 남용 방지)
	createLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api")
	api.Get("/test", s.healthHandler.Test)
	api.Get("/stats", s.healthHandler.Stats)
	api.Get("/me", auth.AuthMiddleware(s.jwtManager), s.userHandler.GetMe)
	// 기존 클라이언트 경로
	api.Get("/users/profile", auth.AuthMiddleware(s.jwtManager), s.userHandler.GetMe)

	// Board 라우트 그룹
	boards := api.Group("/boards")
	boards.Get("", s.boardHandler.ListBoards)
	boards.Post("", createLimiter, s.boardHandler.CreateBoard)
	boards.Get("/:id", s.boardHandler.GetBoard)
	boards.Patch("/:id", s.boardHandler.UpdateBoard)
	boards.Get("/:boardId/messages", s.messageHandler.GetMessages)

	// WebSocket 보드 동기화 엔드포인트
	s.app.Get("/ws", s.boardWSHandler.Upgrade, websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info().Msg("shutting down server")
		if err := s.Shutdown(); err != nil {
			s.log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	s.log.Info().
		Str("port", s.cfg.Server.Port).
		Str("store", s.cfg.Store.Driver).
		Bool("redis", s.mirror != nil).
		Msg("whiteboard server starting")

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown WebSocket 연결 정리 → HTTP 종료 → 엔진/저장소/Redis 정리
func (s *Server) Shutdown() error {
	s.boardWSHandler.CloseAll()
	err := s.app.ShutdownWithTimeout(shutdownTimeout)

	s.engine.Close()
	if cerr := s.store.Close(); cerr != nil {
		s.log.Error().Err(cerr).Msg("failed to close store")
	}
	if s.mirror != nil {
		if cerr := s.mirror.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("failed to close redis")
		}
	}
	return err
}
