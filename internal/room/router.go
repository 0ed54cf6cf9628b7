// Package room 보드 단위 연결 그룹과 범위 브로드캐스트.
package room

import (
	"sync"

	"collabboard-backend/internal/protocol"
)

// Conn 라우터가 다루는 연결. Send는 블록하지 않고 큐에 넣지 못하면 false
type Conn interface {
	ID() string
	Send(msg protocol.Envelope) bool
}

// Stats 라우터 통계
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Router 보드 → 연결 집합. 연결은 한 번에 한 보드에만 속함
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	boards map[string]string // connID -> boardID
}

// NewRouter Router 생성
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[string]map[string]Conn),
		boards: make(map[string]string),
	}
}

// Join 연결을 보드에 구독. 다른 보드에 있었다면 옮기고 이전 보드 반환
func (r *Router) Join(conn Conn, boardID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	previous, moved := r.boards[id]
	if moved && previous != boardID {
		r.leaveLocked(id)
	} else {
		moved = false
	}

	members, ok := r.rooms[boardID]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[boardID] = members
	}
	members[id] = conn
	r.boards[id] = boardID
	return previous, moved
}

// Leave 구독 해제 (멱등)
func (r *Router) Leave(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(connID)
}

func (r *Router) leaveLocked(connID string) (string, bool) {
	boardID, ok := r.boards[connID]
	if !ok {
		return "", false
	}
	delete(r.boards, connID)

	if members, ok := r.rooms[boardID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, boardID)
		}
	}
	return boardID, true
}

// BoardOf 연결이 속한 보드
func (r *Router) BoardOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	boardID, ok := r.boards[connID]
	return boardID, ok
}

// Members 보드 구독 연결 (스냅샷)
func (r *Router) Members(boardID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Conn, 0, len(r.rooms[boardID]))
	for _, conn := range r.rooms[boardID] {
		members = append(members, conn)
	}
	return members
}

// BroadcastToBoard 보드 구독자에게 전송 (exclude 제외). 최선 노력, 재시도 없음.
// 실제로 큐에 들어간 수를 반환
func (r *Router) BroadcastToBoard(boardID string, msg protocol.Envelope, excludeConnID string) int {
	// 락 밖에서 전송
	delivered := 0
	for _, conn := range r.Members(boardID) {
		if excludeConnID != "" && conn.ID() == excludeConnID {
			continue
		}
		if conn.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// SendTo 특정 연결에만 전송
func (r *Router) SendTo(boardID, connID string, msg protocol.Envelope) bool {
	r.mu.RLock()
	conn, ok := r.rooms[boardID][connID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return conn.Send(msg)
}

// Stats 현재 방/연결 수
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{Rooms: len(r.rooms), Connections: len(r.boards)}
}
