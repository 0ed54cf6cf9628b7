package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/database"
	"collabboard-backend/internal/logging"
	"collabboard-backend/internal/presence"
	"collabboard-backend/internal/room"
	"collabboard-backend/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	// 저장소 연결
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := database.OpenStore(ctx, cfg, logging.Component(logger, "database"))
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store connection failed")
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store connected")

	// Redis presence 미러 (선택)
	var mirror *presence.RedisMirror
	if cfg.Redis.Enabled() {
		mirror, err = presence.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PresenceTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, presence mirror disabled")
			mirror = nil
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("presence mirror connected")
		}
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	resolver := auth.NewResolver(jwtManager, st, logging.Component(logger, "auth"))

	var engineMirror presence.Mirror
	if mirror != nil {
		engineMirror = mirror
	}
	engine := collab.NewEngine(
		presence.NewRegistry(),
		room.NewRouter(),
		resolver,
		st,
		engineMirror,
		collab.Options{
			HistoryLimit:     cfg.Chat.HistoryLimit,
			MaxMessageLength: cfg.Chat.MaxLength,
		},
		logging.Component(logger, "engine"),
	)

	// 서버 생성 및 설정
	srv := server.New(cfg, st, engine, jwtManager, mirror, logger)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
