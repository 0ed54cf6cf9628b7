// Package collab 보드 세션 동기화: 입장/퇴장, 변경 중계, 인지 정보, 스냅샷 저장, 채팅.
package collab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/model"
	"collabboard-backend/internal/presence"
	"collabboard-backend/internal/protocol"
	"collabboard-backend/internal/room"
	"collabboard-backend/internal/store"
)

var (
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrUnknownSender = errors.New("sender is not joined to this board")
	ErrPersistFailed = errors.New("failed to save message")
	ErrNotMember     = errors.New("connection is not joined to this board")
)

const (
	defaultHistoryLimit = 50
	defaultMaxLength    = 2000
	defaultStoreTimeout = 5 * time.Second
	mirrorTimeout       = 2 * time.Second
	mirrorQueueSize     = 256
)

// IdentityResolver 접속 신원 확정
type IdentityResolver interface {
	Resolve(ctx context.Context, connID string, claim auth.Claim) auth.Identity
}

// Store 엔진이 쓰는 저장소
type Store interface {
	store.BoardStore
	store.MessageStore
}

// Options 엔진 설정
type Options struct {
	HistoryLimit     int
	MaxMessageLength int
	StoreTimeout     time.Duration
}

type mirrorOp struct {
	joined  *presence.Participant
	boardID string
	connID  string
}

func (op mirrorOp) board() string {
	if op.joined != nil {
		return op.joined.BoardID
	}
	return op.boardID
}

// Engine 프로세스 전체의 세션 상태 (한 번 생성 후 핸들러에 주입)
type Engine struct {
	registry *presence.Registry
	router   *room.Router
	resolver IdentityResolver
	store    Store
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	stampMu    sync.Mutex
	lastStamps map[string]time.Time

	mirror     presence.Mirror
	mirrorMu   sync.Mutex
	mirrorQ    chan mirrorOp
	mirrorDone chan struct{}
	closed     bool
}

// NewEngine Engine 생성. mirror는 nil 가능
func NewEngine(
	registry *presence.Registry,
	router *room.Router,
	resolver IdentityResolver,
	st Store,
	mirror presence.Mirror,
	opts Options,
	log zerolog.Logger,
) *Engine {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxLength
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}

	e := &Engine{
		registry:   registry,
		router:     router,
		resolver:   resolver,
		store:      st,
		opts:       opts,
		log:        log,
		now:        time.Now,
		lastStamps: make(map[string]time.Time),
		mirror:     mirror,
	}

	if mirror != nil {
		e.mirrorQ = make(chan mirrorOp, mirrorQueueSize)
		e.mirrorDone = make(chan struct{})
		go e.runMirror()
	}
	return e
}

// Registry presence 레지스트리
func (e *Engine) Registry() *presence.Registry {
	return e.registry
}

// Router 룸 라우터
func (e *Engine) Router() *room.Router {
	return e.router
}

// Join 보드 입장: 신원 확정 → 등록 → 구독 → 방 전체 알림 → 본인에게 채팅 기록
func (e *Engine) Join(ctx context.Context, conn room.Conn, boardID string, claim auth.Claim) presence.Participant {
	connID := conn.ID()
	identity := e.resolver.Resolve(ctx, connID, claim)

	// 이미 다른(또는 같은) 보드에 있으면 먼저 퇴장 처리
	if _, joined := e.registry.Lookup(connID); joined {
		e.Leave(connID)
	}

	p := e.registry.Register(connID, boardID, identity)
	e.router.Join(conn, boardID)

	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventUserJoined, p), "")
	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventCursorPositions, e.registry.ListByBoard(boardID)), "")
	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventActiveUsersCount, e.registry.Count(boardID)), "")
	e.enqueueMirror(mirrorOp{joined: &p})

	e.log.Info().
		Str("boardId", boardID).
		Str("connId", connID).
		Str("name", p.Name).
		Bool("authenticated", identity.Authenticated()).
		Int("active", e.registry.Count(boardID)).
		Msg("participant joined")

	history, err := e.FetchHistory(ctx, boardID, e.opts.HistoryLimit)
	if err != nil {
		e.log.Error().Err(err).Str("boardId", boardID).Msg("failed to load chat history")
		return p
	}
	e.router.SendTo(boardID, connID, protocol.NewEnvelope(protocol.EventChatHistory, history))
	return p
}

// Leave 퇴장 처리 (멱등). 실제로 제거되었으면 true
func (e *Engine) Leave(connID string) bool {
	boardID, ok := e.registry.Remove(connID)
	e.router.Leave(connID)
	if !ok {
		return false
	}

	count := e.registry.Count(boardID)
	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventUserLeft, connID), "")
	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventActiveUsersCount, count), "")
	e.enqueueMirror(mirrorOp{boardID: boardID, connID: connID})

	if count == 0 {
		e.stampMu.Lock()
		delete(e.lastStamps, boardID)
		e.stampMu.Unlock()
	}

	e.log.Info().Str("boardId", boardID).Str("connId", connID).Int("active", count).Msg("participant left")
	return true
}

// member 연결이 해당 보드에 입장해 있는지
func (e *Engine) member(boardID, connID string) bool {
	current, ok := e.router.BoardOf(connID)
	return ok && current == boardID
}

// ApplyMutation 요소 변경을 보낸 사람 외 보드 참가자에게 중계 (서버 사본 없음)
func (e *Engine) ApplyMutation(boardID, originID string, m Mutation) (int, error) {
	if !e.member(boardID, originID) {
		return 0, ErrNotMember
	}

	var msg protocol.Envelope
	switch m.Kind {
	case MutationCreate:
		msg = protocol.NewEnvelope(protocol.EventElementDrawn, m.Payload)
	case MutationUpdate:
		msg = protocol.NewEnvelope(protocol.EventElementUpdated, m.Payload)
	case MutationDelete:
		msg = protocol.NewEnvelope(protocol.EventElementDeleted, m.ElementID)
	default:
		return 0, fmt.Errorf("unknown mutation %q", m.Kind)
	}
	return e.router.BroadcastToBoard(boardID, msg, originID), nil
}

// MoveCursor 커서 갱신 후 전체 커서 목록을 다른 참가자에게
func (e *Engine) MoveCursor(boardID, connID string, pos protocol.Position) (int, error) {
	if !e.member(boardID, connID) {
		return 0, ErrNotMember
	}
	if _, ok := e.registry.UpdateCursor(connID, pos); !ok {
		return 0, ErrNotMember
	}
	positions := e.registry.ListByBoard(boardID)
	return e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventCursorPositions, positions), connID), nil
}

var awarenessEvents = map[protocol.Event]bool{
	protocol.EventObjectSelected:   true,
	protocol.EventObjectDeselected: true,
	protocol.EventToolChanged:      true,
	protocol.EventGridToggled:      true,
	protocol.EventZoomChanged:      true,
}

// RelayAwareness 선택/도구/그리드/줌 등 일시적 상태 중계 (저장 안 함)
func (e *Engine) RelayAwareness(boardID, originID string, event protocol.Event, payload any) (int, error) {
	if !awarenessEvents[event] {
		return 0, fmt.Errorf("not an awareness event: %s", event)
	}
	if !e.member(boardID, originID) {
		return 0, ErrNotMember
	}
	return e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(event, payload), originID), nil
}

// PersistSnapshot 요소 배열/이름 통째 교체 (마지막 저장이 이김, 버전 검사 없음)
func (e *Engine) PersistSnapshot(ctx context.Context, boardID string, patch store.BoardPatch) (*model.Board, error) {
	if patch.Elements != nil {
		normalized := Normalize(*patch.Elements)
		patch.Elements = &normalized
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	board, err := e.store.UpdateBoard(ctx, boardID, patch)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("boardId", boardID).Int("elements", len(board.Elements)).Msg("snapshot saved")
	return board, nil
}

// SendChatMessage 검증 → 저장 → 방 전체(보낸 사람 포함) 전송.
// 저장 실패 시 보낸 사람에게만 message-error
func (e *Engine) SendChatMessage(ctx context.Context, boardID, connID, text string) (*model.ChatMessage, error) {
	sender, ok := e.registry.Lookup(connID)
	if !ok || sender.BoardID != boardID {
		return nil, ErrUnknownSender
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	text = truncateRunes(text, e.opts.MaxMessageLength)

	msg := &model.ChatMessage{
		BoardID: boardID,
		Sender: model.Sender{
			ID:    sender.ID,
			Name:  sender.Name,
			Color: sender.Color,
		},
		Text:      text,
		Timestamp: e.nextTimestamp(boardID),
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	if err := e.store.CreateMessage(storeCtx, msg); err != nil {
		e.log.Error().Err(err).Str("boardId", boardID).Str("connId", connID).Msg("failed to save message")
		e.router.SendTo(boardID, connID, protocol.NewEnvelope(protocol.EventMessageError, protocol.MessageError{
			Text:  text,
			Error: ErrPersistFailed.Error(),
		}))
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	e.router.BroadcastToBoard(boardID, protocol.NewEnvelope(protocol.EventNewMessage, msg), "")
	return msg, nil
}

// FetchHistory 최근 limit개를 오래된 순으로
func (e *Engine) FetchHistory(ctx context.Context, boardID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = e.opts.HistoryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()

	latest, err := e.store.LatestMessages(ctx, boardID, limit)
	if err != nil {
		return nil, err
	}

	history := make([]model.ChatMessage, 0, len(latest))
	for i := len(latest) - 1; i >= 0; i-- {
		history = append(history, latest[i])
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

// ActiveCount 보드 현재 참가자 수
func (e *Engine) ActiveCount(boardID string) int {
	return e.registry.Count(boardID)
}

// nextTimestamp 보드별로 단조 증가하는 밀리초 timestamp
func (e *Engine) nextTimestamp(boardID string) time.Time {
	e.stampMu.Lock()
	defer e.stampMu.Unlock()

	ts := e.now().UTC().Truncate(time.Millisecond)
	if last, ok := e.lastStamps[boardID]; ok && !ts.After(last) {
		ts = last.Add(time.Millisecond)
	}
	e.lastStamps[boardID] = ts
	return ts
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// enqueueMirror 미러 작업 순서 보장용 큐 (가득 차면 버림)
func (e *Engine) enqueueMirror(op mirrorOp) {
	if e.mirror == nil {
		return
	}

	e.mirrorMu.Lock()
	defer e.mirrorMu.Unlock()

	if e.closed {
		return
	}
	select {
	case e.mirrorQ <- op:
	default:
		e.log.Warn().Str("boardId", op.board()).Msg("presence mirror queue full, dropping update")
	}
}

func (e *Engine) runMirror() {
	defer close(e.mirrorDone)

	for op := range e.mirrorQ {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		var err error
		if op.joined != nil {
			err = e.mirror.Joined(ctx, *op.joined)
		} else {
			err = e.mirror.Left(ctx, op.boardID, op.connID)
		}
		cancel()

		if err != nil {
			e.log.Warn().Err(err).Msg("presence mirror update failed")
		}
	}
}

// Close 미러 큐 정리
func (e *Engine) Close() {
	if e.mirror == nil {
		return
	}

	e.mirrorMu.Lock()
	if e.closed {
		e.mirrorMu.Unlock()
		return
	}
	e.closed = true
	close(e.mirrorQ)
	e.mirrorMu.Unlock()

	<-e.mirrorDone
}
