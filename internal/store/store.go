// Package store 보드/메시지/사용자 영속 저장소.
// 구현체(memory, postgres, mongo)는 시작 시 한 번 선택되어 주입된다.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"collabboard-backend/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrEmptyName = errors.New("board name is required")
)

// BoardPatch 전달된 필드만 통째로 교체 (요소 단위 병합 없음)
type BoardPatch struct {
	Name     *string          `json:"name,omitempty"`
	Elements *[]model.Element `json:"elements,omitempty"`
}

// BoardStore 보드 문서 저장소
type BoardStore interface {
	ListBoards(ctx context.Context) ([]model.Board, error)
	GetBoard(ctx context.Context, id string) (*model.Board, error)
	CreateBoard(ctx context.Context, board *model.Board) error
	UpdateBoard(ctx context.Context, id string, patch BoardPatch) (*model.Board, error)
}

// MessageStore 채팅 메시지 저장소
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	// LatestMessages 최신 limit개를 최신순(내림차순)으로 반환
	LatestMessages(ctx context.Context, boardID string, limit int) ([]model.ChatMessage, error)
}

// UserStore 사용자 조회 (토큰 발급은 외부 책임)
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// Store 전체 저장소
type Store interface {
	BoardStore
	MessageStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// prepareBoard 새 보드 기본값 설정 (이름 trim, 요소 createdAt)
func prepareBoard(board *model.Board, now time.Time) error {
	board.Name = strings.TrimSpace(board.Name)
	if board.Name == "" {
		return ErrEmptyName
	}
	if board.Elements == nil {
		board.Elements = []model.Element{}
	}
	model.DefaultCreatedAt(board.Elements, now)
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = board.CreatedAt
	return nil
}

// applyPatch 패치를 보드에 적용하고 updatedAt 전진
func applyPatch(board *model.Board, patch BoardPatch, now time.Time) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return ErrEmptyName
		}
		board.Name = name
	}
	if patch.Elements != nil {
		elements := model.CloneElements(*patch.Elements)
		model.DefaultCreatedAt(elements, now)
		board.Elements = elements
	}
	board.Touch(now)
	return nil
}
