package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collabboard-backend/internal/model"
)

// GormStore PostgreSQL(gorm) 저장소
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore GormStore 생성 (마이그레이션은 database 패키지 담당)
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *GormStore) ListBoards(ctx context.Context) ([]model.Board, error) {
	var boards []model.Board
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

func (s *GormStore) GetBoard(ctx context.Context, id string) (*model.Board, error) {
	var board model.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get board %s: %w", id, err)
	}
	return &board, nil
}

func (s *GormStore) CreateBoard(ctx context.Context, board *model.Board) error {
	if err := prepareBoard(board, s.now()); err != nil {
		return err
	}
	if board.ID == "" {
		board.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(board).Error; err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

// UpdateBoard 단일 행 잠금 후 통째로 교체 (마지막 저장이 이김)
func (s *GormStore) UpdateBoard(ctx context.Context, id string, patch BoardPatch) (*model.Board, error) {
	var board model.Board
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&board, "id = ?", id).Error; err != nil {
			return err
		}
		if err := applyPatch(&board, patch, s.now()); err != nil {
			return err
		}
		return tx.Save(&board).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrEmptyName):
			return nil, err
		}
		return nil, fmt.Errorf("update board %s: %w", id, err)
	}
	return &board, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *GormStore) LatestMessages(ctx context.Context, boardID string, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	query := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("latest messages %s: %w", boardID, err)
	}
	return messages, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "LOWER(username) = LOWER(?)", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
