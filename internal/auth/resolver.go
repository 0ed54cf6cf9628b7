package auth

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"collabboard-backend/internal/store"
)

const (
	defaultGuestName = "Guest"
	lookupTimeout    = 3 * time.Second
)

// 게스트 색상 팔레트
var guestColors = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#ec4899",
}

// TokenVerifier 토큰 검증기
type TokenVerifier interface {
	ValidateAccessToken(token string) (*Claims, error)
}

// Claim 접속 시 클라이언트가 주장하는 신원
type Claim struct {
	Token string
	Name  string
	Color string
}

// Identity 확정된 표시 신원. UserID가 비어있으면 게스트
type Identity struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// Authenticated 토큰 검증을 통과했는지
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Resolver 토큰 → 사용자 조회, 실패 시 게스트로 대체 (접속을 막지 않음)
type Resolver struct {
	tokens TokenVerifier
	users  store.UserStore
	log    zerolog.Logger
}

// NewResolver Resolver 생성
func NewResolver(tokens TokenVerifier, users store.UserStore, log zerolog.Logger) *Resolver {
	return &Resolver{tokens: tokens, users: users, log: log}
}

// Resolve 접속 신원 확정
func (r *Resolver) Resolve(ctx context.Context, connID string, claim Claim) Identity {
	guest := GuestIdentity(connID, claim.Name, claim.Color)
	if claim.Token == "" {
		return guest
	}

	claims, err := r.tokens.ValidateAccessToken(claim.Token)
	if err != nil {
		r.log.Debug().Err(err).Str("connId", connID).Msg("token verification failed, joining as guest")
		return guest
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	user, err := r.users.GetUser(ctx, claims.UserID)
	if err != nil {
		r.log.Warn().Err(err).Str("connId", connID).Str("userId", claims.UserID).Msg("user lookup failed, joining as guest")
		return guest
	}

	identity := Identity{
		UserID: user.ID,
		Name:   user.Username,
		Color:  user.Color,
	}
	if identity.Color == "" {
		identity.Color = guest.Color
	}
	return identity
}

// GuestIdentity 클라이언트 제공값 기반 게스트 신원 (빈 값은 기본값)
func GuestIdentity(connID, name, color string) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultGuestName
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = guestColor(connID)
	}
	return Identity{Name: name, Color: color}
}

func guestColor(connID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connID))
	return guestColors[h.Sum32()%uint32(len(guestColors))]
}
