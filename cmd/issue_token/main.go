package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/database"
	"collabboard-backend/internal/logging"
	"collabboard-backend/internal/model"
	"collabboard-backend/internal/store"
)

// 개발용: 사용자를 (없으면) 만들고 access token 출력
func main() {
	username := flag.String("username", "", "username to issue a token for")
	color := flag.String("color", "", "cursor color for a newly created user")
	flag.Parse()

	name := strings.TrimSpace(*username)
	if name == "" {
		fmt.Fprintln(os.Stderr, "usage: issue_token -username <name> [-color #rrggbb]")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.Store.Driver == config.StoreMemory {
		logger.Warn().Msg("memory store selected, the user only exists in this process")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	user, err := findOrCreateUser(ctx, st, name, *color)
	if err != nil {
		log.Fatal().Err(err).Str("username", name).Msg("failed to prepare user")
	}

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry).GenerateAccessToken(user)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}

	logger.Info().Str("userId", user.ID).Str("username", user.Username).Dur("expiresIn", cfg.Auth.AccessTokenExpiry).Msg("token issued")
	fmt.Println(token)
}

func findOrCreateUser(ctx context.Context, users store.UserStore, username, color string) (*model.User, error) {
	user, err := users.FindUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	user = &model.User{Username: username, Color: strings.TrimSpace(color)}
	if err := users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
