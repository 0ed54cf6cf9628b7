package presence

import (
	"sort"
	"sync"
	"time"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/protocol"
)

// Participant 보드에 접속한 연결 하나의 상태 (연결 단위, 사용자 단위 아님)
type Participant struct {
	ID       string             `json:"id"`
	BoardID  string             `json:"boardId"`
	UserID   string             `json:"userId,omitempty"`
	Name     string             `json:"name"`
	Color    string             `json:"color"`
	Position *protocol.Position `json:"position,omitempty"`
	JoinedAt time.Time          `json:"joinedAt"`
}

// Stats 레지스트리 통계
type Stats struct {
	Boards       int            `json:"boards"`
	Participants int            `json:"participants"`
	PerBoard     map[string]int `json:"perBoard"`
}

// Registry 연결 → 참가자, 보드 → 참가자 수 (프로세스 메모리)
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	counts       map[string]int
	now          func() time.Time
}

// NewRegistry Registry 생성
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*Participant),
		counts:       make(map[string]int),
		now:          time.Now,
	}
}

// Register 참가자 등록 (이미 있으면 덮어씀). 보드 카운터 증가
func (r *Registry) Register(connID, boardID string, identity auth.Identity) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 같은 연결의 이전 등록은 카운터까지 정리
	if _, exists := r.participants[connID]; exists {
		r.removeLocked(connID)
	}

	p := &Participant{
		ID:       connID,
		BoardID:  boardID,
		UserID:   identity.UserID,
		Name:     identity.Name,
		Color:    identity.Color,
		JoinedAt: r.now(),
	}
	r.participants[connID] = p
	r.counts[boardID]++
	return *p
}

// UpdateCursor 커서 위치 갱신. 등록되지 않은 연결이면 무시
func (r *Registry) UpdateCursor(connID string, pos protocol.Position) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return Participant{}, false
	}
	position := pos
	p.Position = &position
	return p.snapshot(), true
}

// Remove 참가자 제거 (멱등). 제거된 경우 보드 ID 반환
func (r *Registry) Remove(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(connID)
}

// removeLocked 카운터 감소는 여기서만 (0 미만 금지)
func (r *Registry) removeLocked(connID string) (string, bool) {
	p, ok := r.participants[connID]
	if !ok {
		return "", false
	}
	delete(r.participants, connID)

	if r.counts[p.BoardID] > 1 {
		r.counts[p.BoardID]--
	} else {
		delete(r.counts, p.BoardID)
	}
	return p.BoardID, true
}

// Lookup 연결의 참가자 정보
func (r *Registry) Lookup(connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[connID]
	if !ok {
		return Participant{}, false
	}
	return p.snapshot(), true
}

// ListByBoard 보드 참가자 목록 (입장 순)
func (r *Registry) ListByBoard(boardID string) []Participant {
	r.mu.RLock()
	list := make([]Participant, 0, r.counts[boardID])
	for _, p := range r.participants {
		if p.BoardID == boardID {
			list = append(list, p.snapshot())
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

// Count 보드 참가자 수
func (r *Registry) Count(boardID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.counts[boardID]
}

// Stats 전체 통계
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perBoard := make(map[string]int, len(r.counts))
	for boardID, n := range r.counts {
		perBoard[boardID] = n
	}
	return Stats{
		Boards:       len(r.counts),
		Participants: len(r.participants),
		PerBoard:     perBoard,
	}
}

func (p *Participant) snapshot() Participant {
	out := *p
	if p.Position != nil {
		pos := *p.Position
		out.Position = &pos
	}
	return out
}
