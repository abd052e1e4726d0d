package tenantstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// DefaultCollection is the MongoDB collection used by MongoStore.
const DefaultCollection = "tenants"

type mongoTenant struct {
	ID               string            `bson:"_id"`
	Identifier       string            `bson:"identifier"`
	Key              string            `bson:"identifier_key"`
	Name             string            `bson:"name"`
	ConnectionString string            `bson:"connection_string,omitempty"`
	Items            map[string]string `bson:"items,omitempty"`
}

func (d mongoTenant) info() *tenant.Info {
	return &tenant.Info{
		ID:               d.ID,
		Identifier:       d.Identifier,
		Name:             d.Name,
		ConnectionString: d.ConnectionString,
		Items:            d.Items,
	}
}

// MongoStore keeps tenants in a MongoDB collection. Uniqueness of the
// identifier key relies on the index created by EnsureIndexes.
type MongoStore struct {
	coll       *mongo.Collection
	ignoreCase bool
}

var _ tenant.Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database, opts ...Option) (*MongoStore, error) {
	if db == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	return &MongoStore{coll: db.Collection(DefaultCollection), ignoreCase: o.ignoreCase}, nil
}

// EnsureIndexes creates the unique identifier key index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identifier_key", Value: 1}},
		Options: mongooptions.Index().SetUnique(true).SetName("identifier_key_unique"),
	})
	if err != nil {
		return fmt.Errorf("create tenant indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) doc(info *tenant.Info) mongoTenant {
	return mongoTenant{
		ID:               info.ID,
		Identifier:       info.Identifier,
		Key:              normalizeKey(info.Identifier, s.ignoreCase),
		Name:             info.Name,
		ConnectionString: info.ConnectionString,
		Items:            info.Items,
	}
}

func (s *MongoStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	if _, err := s.coll.InsertOne(ctx, s.doc(info)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert tenant: %w", err)
	}
	return true, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.D{{Key: "identifier_key", Value: normalizeKey(identifier, s.ignoreCase)}})
}

func (s *MongoStore) TryRemove(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: info.ID}}, s.doc(info))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("replace tenant: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*tenant.Info, error) {
	var d mongoTenant
	err := s.coll.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return d.info(), nil
}
