package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabboard-backend/internal/model"
)

// MemoryStore 프로세스 메모리 저장소 (개발/테스트용, 재시작 시 소실)
type MemoryStore struct {
	mu       sync.RWMutex
	boards   map[string]*model.Board
	order    []string
	messages map[string][]model.ChatMessage
	users    map[string]*model.User
	now      func() time.Time
}

// NewMemoryStore MemoryStore 생성
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		boards:   make(map[string]*model.Board),
		messages: make(map[string][]model.ChatMessage),
		users:    make(map[string]*model.User),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// ListBoards 생성 순서대로 반환
func (s *MemoryStore) ListBoards(ctx context.Context) ([]model.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	boards := make([]model.Board, 0, len(s.order))
	for _, id := range s.order {
		boards = append(boards, *s.boards[id].Clone())
	}
	return boards, nil
}

func (s *MemoryStore) GetBoard(ctx context.Context, id string) (*model.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, ok := s.boards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return board.Clone(), nil
}

func (s *MemoryStore) CreateBoard(ctx context.Context, board *model.Board) error {
	if err := prepareBoard(board, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if board.ID == "" {
		board.ID = uuid.NewString()
	}
	if _, exists := s.boards[board.ID]; !exists {
		s.order = append(s.order, board.ID)
	}
	s.boards[board.ID] = board.Clone()
	return nil
}

func (s *MemoryStore) UpdateBoard(ctx context.Context, id string, patch BoardPatch) (*model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.boards[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := current.Clone()
	if err := applyPatch(next, patch, s.now()); err != nil {
		return nil, err
	}
	s.boards[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.messages[msg.BoardID] = append(s.messages[msg.BoardID], *msg)
	return nil
}

// LatestMessages 최신순 limit개
func (s *MemoryStore) LatestMessages(ctx context.Context, boardID string, limit int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	all := append([]model.ChatMessage(nil), s.messages[boardID]...)
	s.mu.RUnlock()

	// 저장 순서를 유지한 채 timestamp 기준 정렬 후 뒤집기
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]model.ChatMessage, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			u := *user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
