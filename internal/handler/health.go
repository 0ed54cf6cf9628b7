package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/presence"
)

const healthTimeout = 2 * time.Second

// Pinger 헬스체크 대상
type Pinger interface {
	Ping(ctx context.Context) error
}

// ParticipantLister 외부 presence 사본 조회
type ParticipantLister interface {
	BoardParticipants(ctx context.Context, boardID string) ([]presence.Participant, error)
}

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	store  Pinger
	redis  Pinger // nil이면 미구성
	mirror ParticipantLister
	engine *collab.Engine
}

// NewHealthHandler HealthHandler 생성. redis, mirror는 nil 가능
func NewHealthHandler(store Pinger, redis Pinger, mirror ParticipantLister, engine *collab.Engine) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, mirror: mirror, engine: engine}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// StatsResponse 실시간 접속 통계
type StatsResponse struct {
	Boards      int            `json:"boards"`
	Connections int            `json:"connections"`
	PerBoard    map[string]int `json:"perBoard"`

	// Redis 미러 기준 보드별 참가자 수 (미러 사용 시)
	Mirrored map[string]int `json:"mirrored,omitempty"`
}

func check(ctx context.Context, p Pinger) ComponentCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return ComponentCheck{Status: "unhealthy", Error: err.Error()}
	}
	return ComponentCheck{Status: "healthy", Latency: time.Since(start).String()}
}

// Check 전체 상태 확인 (저장소 + Redis)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	// 1. 저장소
	storeCheck := check(c.UserContext(), h.store)
	if storeCheck.Status != "healthy" {
		response.Status = "unhealthy"
	}
	response.Checks["store"] = storeCheck

	// 2. Redis (presence 미러, 실패해도 degraded)
	if h.redis != nil {
		redisCheck := check(c.UserContext(), h.redis)
		if redisCheck.Status != "healthy" {
			redisCheck.Status = "degraded"
		}
		response.Checks["redis"] = redisCheck
	} else {
		response.Checks["redis"] = ComponentCheck{Status: "not_configured"}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (저장소 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if check(c.UserContext(), h.store).Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}

// Stats 현재 보드/연결 수
func (h *HealthHandler) Stats(c *fiber.Ctx) error {
	stats := h.engine.Registry().Stats()
	rooms := h.engine.Router().Stats()

	response := StatsResponse{
		Boards:      rooms.Rooms,
		Connections: rooms.Connections,
		PerBoard:    stats.PerBoard,
	}

	if h.mirror != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()

		response.Mirrored = make(map[string]int, len(stats.PerBoard))
		for boardID := range stats.PerBoard {
			list, err := h.mirror.BoardParticipants(ctx, boardID)
			if err != nil {
				// 미러 실패는 로컬 통계에 영향 없음
				response.Mirrored = nil
				break
			}
			response.Mirrored[boardID] = len(list)
		}
	}

	return c.JSON(response)
}

// Test API 동작 확인
func (h *HealthHandler) Test(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "API is working"})
}
