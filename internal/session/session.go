package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State WebSocket 연결 상태
type State int

const (
	StateAwaitingJoin State = iota // join-board 대기
	StateJoined                    // 보드 참가 중
	StateClosed                    // 연결 종료
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateAwaitingJoin:
		return "awaiting_join"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 보드 연결 세션 (Thread-Safe)
type Session struct {
	ID          string
	ConnectedAt time.Time

	mu       sync.RWMutex
	state    State
	boardID  string
	received uint64
	dropped  uint64

	closeOnce sync.Once
	onClose   func(s *Session)
}

// New 새 세션 생성. onClose는 Close 시 정확히 한 번 호출
func New(onClose func(s *Session)) *Session {
	return &Session{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		state:       StateAwaitingJoin,
		onClose:     onClose,
	}
}

// Join 보드 참가 상태로 전환. 이미 닫힌 세션이면 false
func (s *Session) Join(boardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	s.state = StateJoined
	s.boardID = boardID
	return true
}

// BoardID 참가 중인 보드 (없으면 "")
func (s *Session) BoardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.boardID
}

// GetState 현재 상태 조회
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// IncrementReceived 수신 프레임 수 증가
func (s *Session) IncrementReceived() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received++
	return s.received
}

// IncrementDropped 버린 프레임 수 증가
func (s *Session) IncrementDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropped++
	return s.dropped
}

// GetStats 통계 조회
func (s *Session) GetStats() (received, dropped uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.received, s.dropped
}

// Duration 연결 유지 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Close 세션 정리 (몇 번 호출돼도 정리는 한 번)
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// IsClosed 세션 종료 여부 확인
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateClosed
}
