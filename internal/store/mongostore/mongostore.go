// Package mongostore keeps menu items, orders and users as MongoDB documents.
// Line items are embedded in the order document.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client *mongo.Client
	menu   *mongo.Collection
	orders *mongo.Collection
	users  *mongo.Collection
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client: client,
		menu:   db.Collection("menu_items"),
		orders: db.Collection("orders"),
		users:  db.Collection("users"),
	}, nil
}

// EnsureIndexes creates the unique and sort indexes the repository relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	caseInsensitive := &options.Collation{Locale: "en", Strength: 2}

	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("order indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	_, err = s.menu.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("menu indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	_, err := s.menu.InsertOne(ctx, item)
	return translate(err)
}

func (s *Store) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.menu.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	items := []models.MenuItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	for i := range items {
		normalizeMenuItem(&items[i])
	}
	return items, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := s.menu.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, translate(err)
	}
	normalizeMenuItem(&item)
	return &item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	res, err := s.menu.ReplaceOne(ctx, bson.M{"_id": item.ID}, item)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := s.menu.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.orders.InsertOne(ctx, order)
	return translate(err)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, translate(err)
	}
	normalizeOrder(&o)
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.findOrders(ctx, bson.M{})
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	filter := bson.M{"customerEmail": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(email) + "$",
		Options: "i",
	}}
	return s.findOrders(ctx, filter)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order, from models.OrderStatus) error {
	filter := bson.M{"_id": order.ID, "status": from}
	res, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":    order.Status,
		"updatedAt": order.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) findOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	for i := range orders {
		normalizeOrder(&orders[i])
	}
	return orders, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, user)
	return translate(err)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}, opts).Decode(&u); err != nil {
		return nil, translate(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	}
	return err
}

// BSON dates come back in local time; keep UTC like the other backends.
func normalizeMenuItem(i *models.MenuItem) {
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
}

func normalizeOrder(o *models.Order) {
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if o.Items == nil {
		o.Items = []models.LineItem{}
	}
}
