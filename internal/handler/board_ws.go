package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/collab"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/protocol"
	"collabboard-backend/internal/session"
)

// BoardWSHandler 보드 동기화 WebSocket 핸들러
type BoardWSHandler struct {
	engine *collab.Engine
	cfg    config.WebSocketConfig
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	closing  bool
}

// NewBoardWSHandler BoardWSHandler 생성
func NewBoardWSHandler(engine *collab.Engine, cfg config.WebSocketConfig, log zerolog.Logger) *BoardWSHandler {
	return &BoardWSHandler{
		engine:   engine,
		cfg:      cfg.Sanitize(),
		log:      log,
		sessions: make(map[string]*session.Session),
	}
}

// track 종료 중이면 false
func (h *BoardWSHandler) track(sess *session.Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.sessions[sess.ID] = sess
	return true
}

func (h *BoardWSHandler) untrack(sess *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, sess.ID)
}

// CloseAll 서버 종료 시 모든 연결 정리. 이후 들어오는 연결은 바로 닫음
func (h *BoardWSHandler) CloseAll() int {
	h.mu.Lock()
	h.closing = true
	live := make([]*session.Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		live = append(live, sess)
	}
	h.mu.Unlock()

	for _, sess := range live {
		sess.Close()
	}
	if len(live) > 0 {
		h.log.Info().Int("connections", len(live)).Msg("closed board connections for shutdown")
	}
	return len(live)
}

// floodGuard 프레임 속도 제한. 초과 자체보다 초과가 계속되는지를 따로 셈
type floodGuard struct {
	frames     *rate.Limiter
	violations *rate.Limiter
}

func newFloodGuard(cfg config.WebSocketConfig) *floodGuard {
	return &floodGuard{
		frames:     rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst),
		violations: rate.NewLimiter(rate.Limit(cfg.ViolationsPerSecond), cfg.ViolationBurst),
	}
}

// check 프레임 처리 여부, 연결 종료 여부
func (g *floodGuard) check(now time.Time) (allow, kick bool) {
	if g.frames.AllowN(now, 1) {
		return true, false
	}
	return false, !g.violations.AllowN(now, 1)
}

// boardClient 연결 하나의 송신 큐. room.Conn 구현
type boardClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func (c *boardClient) ID() string {
	return c.id
}

// Send 큐에 넣기만 함. 큐가 가득 찼거나 닫혔으면 false
func (c *boardClient) Send(msg protocol.Envelope) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("event", msg.Event.String()).Msg("failed to encode frame")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Str("event", msg.Event.String()).Msg("send queue full, dropping frame")
		return false
	}
}

func (c *boardClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop 단일 writer: 큐 전송 + ping
func (c *boardClient) writeLoop(pingPeriod, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Upgrade WebSocket 업그레이드 확인 + 핸드셰이크 토큰 보관 (없어도 게스트로 허용)
func (h *BoardWSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token, ok := auth.TokenFromRequest(c)
	if !ok {
		token = c.Query("token")
	}
	c.Locals("token", token)

	return c.Next()
}

// HandleWebSocket 연결 처리: 읽기 루프 + 이벤트 분기
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	client := &boardClient{
		conn: c,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	sess := session.New(func(s *session.Session) {
		h.engine.Leave(s.ID)
		client.close()
	})
	client.id = sess.ID
	client.log = h.log.With().Str("connId", sess.ID).Logger()

	if !h.track(sess) {
		client.log.Debug().Msg("server shutting down, rejecting connection")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		return
	}

	handshakeToken, _ := c.Locals("token").(string)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writeLoop(h.cfg.PingPeriod(), h.cfg.WriteTimeout)
	}()

	client.log.Info().Msg("board connection opened")

	// 어떤 이유로 끊겨도 정리는 한 번
	defer func() {
		cancel()
		boardID := sess.BoardID()
		sess.Close()
		<-done
		h.untrack(sess)

		received, dropped := sess.GetStats()
		client.log.Info().
			Str("boardId", boardID).
			Uint64("received", received).
			Uint64("dropped", dropped).
			Dur("duration", sess.Duration()).
			Msg("board connection closed")
	}()

	c.SetReadLimit(h.cfg.MaxMessageSize)
	c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	guard := newFloodGuard(h.cfg)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if !sess.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		if sess.IsClosed() {
			return
		}
		sess.IncrementReceived()

		allow, kick := guard.check(time.Now())
		if !allow {
			dropped := sess.IncrementDropped()
			if dropped%100 == 1 {
				client.log.Warn().Uint64("dropped", dropped).Msg("rate limit exceeded")
			}
			if kick {
				client.log.Warn().Uint64("dropped", dropped).Msg("disconnecting for sustained rate limit violations")
				return
			}
			continue
		}

		frame, err := protocol.DecodeFrame(raw)
		if err != nil {
			client.log.Debug().Err(err).Msg("dropping frame")
			continue
		}

		if err := h.safeDispatch(ctx, client, sess, frame, handshakeToken); err != nil {
			if errors.Is(err, collab.ErrNotMember) {
				client.log.Debug().Str("event", frame.Event.String()).Str("boardId", frame.BoardID).Msg("event for a board the connection has not joined")
				continue
			}
			client.log.Warn().Err(err).Str("event", frame.Event.String()).Str("boardId", frame.BoardID).Msg("event rejected")
		}
	}
}

// safeDispatch 프레임 하나의 panic이 연결을 끊지 않도록
func (h *BoardWSHandler) safeDispatch(ctx context.Context, client *boardClient, sess *session.Session, f protocol.Frame, handshakeToken string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", f.Event, r)
		}
	}()
	return h.dispatch(ctx, client, sess, f, handshakeToken)
}

// dispatch 이벤트별 엔진 호출
func (h *BoardWSHandler) dispatch(ctx context.Context, client *boardClient, sess *session.Session, f protocol.Frame, handshakeToken string) error {
	// 아직 어떤 보드에도 참가하지 않았으면 join 외에는 볼 필요 없음
	if f.Event != protocol.EventJoinBoard && sess.GetState() != session.StateJoined {
		return collab.ErrNotMember
	}

	switch f.Event {
	case protocol.EventJoinBoard:
		join, err := f.Join()
		if err != nil {
			return err
		}
		// join payload 토큰 우선, 없으면 핸드셰이크 토큰
		token := join.Token
		if token == "" {
			token = handshakeToken
		}
		h.engine.Join(ctx, client, f.BoardID, auth.Claim{Token: token, Name: join.Name, Color: join.Color})
		if !sess.Join(f.BoardID) {
			// 참가 도중 세션이 닫혔으면 방금 등록한 것도 정리
			h.engine.Leave(client.id)
		}
		return nil

	case protocol.EventDrawElement, protocol.EventUpdateElement:
		id, payload, err := f.Element()
		if err != nil {
			return err
		}
		kind := collab.MutationCreate
		if f.Event == protocol.EventUpdateElement {
			kind = collab.MutationUpdate
		}
		_, err = h.engine.ApplyMutation(f.BoardID, client.id, collab.Mutation{Kind: kind, ElementID: id, Payload: payload})
		return err

	case protocol.EventDeleteElement:
		id, err := f.ElementID()
		if err != nil {
			return err
		}
		_, err = h.engine.ApplyMutation(f.BoardID, client.id, collab.Mutation{Kind: collab.MutationDelete, ElementID: id})
		return err

	case protocol.EventCursorMove:
		pos, err := f.Position()
		if err != nil {
			return err
		}
		_, err = h.engine.MoveCursor(f.BoardID, client.id, pos)
		return err

	case protocol.EventObjectSelected, protocol.EventObjectDeselected, protocol.EventToolChanged:
		var payload any
		if f.HasData() {
			payload = f.Data
		}
		_, err := h.engine.RelayAwareness(f.BoardID, client.id, f.Event, payload)
		return err

	case protocol.EventGridToggled:
		grid, err := f.Grid()
		if err != nil {
			return err
		}
		_, err = h.engine.RelayAwareness(f.BoardID, client.id, f.Event, grid)
		return err

	case protocol.EventZoomChanged:
		zoom, err := f.Zoom()
		if err != nil {
			return err
		}
		_, err = h.engine.RelayAwareness(f.BoardID, client.id, f.Event, zoom)
		return err

	case protocol.EventSendMessage:
		text, err := f.ChatText()
		if err != nil {
			return err
		}
		_, err = h.engine.SendChatMessage(ctx, f.BoardID, client.id, text)
		return err
	}

	return protocol.ErrUnknownEvent
}
