package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collabboard-backend/internal/model"
)

const (
	boardsCollection   = "boards"
	messagesCollection = "messages"
	usersCollection    = "users"
)

// MongoStore MongoDB 저장소
type MongoStore struct {
	client   *mongo.Client
	boards   *mongo.Collection
	messages *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

type elementDoc struct {
	ID        string        `bson:"id"`
	Type      string        `bson:"type"`
	Data      bson.RawValue `bson:"data"`
	CreatedAt time.Time     `bson:"createdAt"`
}

type boardDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Elements  []elementDoc       `bson:"elements"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type senderDoc struct {
	ID    string `bson:"id"`
	Name  string `bson:"name"`
	Color string `bson:"color"`
}

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	BoardID   string             `bson:"boardId"`
	Sender    senderDoc          `bson:"sender"`
	Text      string             `bson:"text"`
	Timestamp time.Time          `bson:"timestamp"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Color     string             `bson:"color"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// NewMongoStore MongoStore 생성
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		boards:   db.Collection(boardsCollection),
		messages: db.Collection(messagesCollection),
		users:    db.Collection(usersCollection),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes 메시지 (boardId, timestamp) 인덱스와 username 유니크 인덱스
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "boardId", Value: 1}, {Key: "timestamp", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}

func (s *MongoStore) ListBoards(ctx context.Context) ([]model.Board, error) {
	cursor, err := s.boards.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	var docs []boardDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := make([]model.Board, 0, len(docs))
	for _, doc := range docs {
		board, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		boards = append(boards, *board)
	}
	return boards, nil
}

func (s *MongoStore) GetBoard(ctx context.Context, id string) (*model.Board, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc boardDoc
	if err := s.boards.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get board %s: %w", id, err)
	}
	return doc.toModel()
}

func (s *MongoStore) CreateBoard(ctx context.Context, board *model.Board) error {
	if err := prepareBoard(board, s.now()); err != nil {
		return err
	}
	elements, err := toElementDocs(board.Elements)
	if err != nil {
		return err
	}

	doc := boardDoc{
		ID:        primitive.NewObjectID(),
		Name:      board.Name,
		Elements:  elements,
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
	}
	if _, err := s.boards.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	board.ID = doc.ID.Hex()
	return nil
}

// UpdateBoard 단일 문서 원자적 교체. updatedAt은 max(now, 이전값+1ms)
func (s *MongoStore) UpdateBoard(ctx context.Context, id string, patch BoardPatch) (*model.Board, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	now := s.now()
	normalized := &model.Board{}
	if err := applyPatch(normalized, patch, now); err != nil {
		return nil, err
	}

	set := bson.D{}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: bson.M{"$literal": normalized.Name}})
	}
	if patch.Elements != nil {
		elements, err := toElementDocs(normalized.Elements)
		if err != nil {
			return nil, err
		}
		set = append(set, bson.E{Key: "elements", Value: bson.M{"$literal": elements}})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: bson.M{
		"$max": bson.A{now, bson.M{"$add": bson.A{"$updatedAt", 1}}},
	}})

	var doc boardDoc
	err = s.boards.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update board %s: %w", id, err)
	}
	return doc.toModel()
}

func (s *MongoStore) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		BoardID:   msg.BoardID,
		Sender:    senderDoc(msg.Sender),
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	msg.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) LatestMessages(ctx context.Context, boardID string, limit int) ([]model.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.messages.Find(ctx, bson.M{"boardId": boardID}, opts)
	if err != nil {
		return nil, fmt.Errorf("latest messages %s: %w", boardID, err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("latest messages %s: %w", boardID, err)
	}

	messages := make([]model.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, model.ChatMessage{
			ID:        doc.ID.Hex(),
			BoardID:   doc.BoardID,
			Sender:    model.Sender(doc.Sender),
			Text:      doc.Text,
			Timestamp: doc.Timestamp.UTC(),
		})
	}
	return messages, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &model.User{
		ID:        doc.ID.Hex(),
		Username:  doc.Username,
		Color:     doc.Color,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Username:  user.Username,
		Color:     user.Color,
		CreatedAt: user.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d boardDoc) toModel() (*model.Board, error) {
	elements := make([]model.Element, 0, len(d.Elements))
	for _, el := range d.Elements {
		data, err := rawValueToJSON(el.Data)
		if err != nil {
			return nil, fmt.Errorf("decode element %s: %w", el.ID, err)
		}
		elements = append(elements, model.Element{
			ID:        el.ID,
			Type:      model.ElementType(el.Type),
			Data:      data,
			CreatedAt: el.CreatedAt.UTC(),
		})
	}
	return &model.Board{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Elements:  elements,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

func toElementDocs(elements []model.Element) ([]elementDoc, error) {
	docs := make([]elementDoc, 0, len(elements))
	for _, el := range elements {
		data, err := jsonToRawValue(el.Data)
		if err != nil {
			return nil, fmt.Errorf("encode element %s: %w", el.ID, err)
		}
		docs = append(docs, elementDoc{
			ID:        el.ID,
			Type:      string(el.Type),
			Data:      data,
			CreatedAt: el.CreatedAt,
		})
	}
	return docs, nil
}
