package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UpdatesChannel presence 변경 이벤트 채널
const UpdatesChannel = "presence_updates"

// Action presence 변경 종류
type Action string

const (
	ActionJoined Action = "joined"
	ActionLeft   Action = "left"
)

// Update 채널로 발행되는 변경 이벤트
type Update struct {
	Action       Action       `json:"action"`
	BoardID      string       `json:"boardId"`
	ConnectionID string       `json:"connectionId"`
	Participant  *Participant `json:"participant,omitempty"`
	At           int64        `json:"at"`
}

// Mirror 메모리 레지스트리의 외부 사본 (관측용, 실패해도 동작에 영향 없음)
type Mirror interface {
	Joined(ctx context.Context, p Participant) error
	Left(ctx context.Context, boardID, connID string) error
}

// RedisMirror 보드별 hash(presence:board:<id>)에 참가자 기록 + pub/sub 발행
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror 연결 후 ping 확인
func NewRedisMirror(addr, password string, db int, ttl time.Duration) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &RedisMirror{client: client, ttl: ttl}, nil
}

func boardKey(boardID string) string {
	return "presence:board:" + boardID
}

// Joined 참가자 기록 및 TTL 갱신
func (m *RedisMirror) Joined(ctx context.Context, p Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	key := boardKey(p.BoardID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, p.ID, data)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror join %s: %w", p.ID, err)
	}

	return m.publish(ctx, Update{Action: ActionJoined, BoardID: p.BoardID, ConnectionID: p.ID, Participant: &p})
}

// Left 참가자 삭제
func (m *RedisMirror) Left(ctx context.Context, boardID, connID string) error {
	if err := m.client.HDel(ctx, boardKey(boardID), connID).Err(); err != nil {
		return fmt.Errorf("mirror leave %s: %w", connID, err)
	}
	return m.publish(ctx, Update{Action: ActionLeft, BoardID: boardID, ConnectionID: connID})
}

// BoardParticipants 미러에 기록된 보드 참가자
func (m *RedisMirror) BoardParticipants(ctx context.Context, boardID string) ([]Participant, error) {
	values, err := m.client.HGetAll(ctx, boardKey(boardID)).Result()
	if err != nil {
		return nil, err
	}

	list := make([]Participant, 0, len(values))
	for _, raw := range values {
		var p Participant
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			list = append(list, p)
		}
	}
	return list, nil
}

func (m *RedisMirror) publish(ctx context.Context, u Update) error {
	u.At = time.Now().UnixMilli()
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, UpdatesChannel, data).Err()
}

// Ping 헬스체크용
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
