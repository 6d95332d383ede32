package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/georgemunganga/sso-users/internal/common"
)

// CollectionName is the collection the user documents live in.
const CollectionName = "ssousers"

// mongoUser is the stored document. Field names follow the existing
// collection: the hash lives under "password" and roles under "role".
type mongoUser struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Company   string             `bson:"company"`
	Role      []string           `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *mongoUser) toUser() *User {
	roles := d.Role
	if roles == nil {
		roles = []string{}
	}
	return &User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Company:      d.Company,
		Roles:        roles,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a user repository backed by coll.
func NewMongoRepository(coll *mongo.Collection) Repository {
	return &mongoRepository{coll: coll}
}

// EnsureIndexes creates the unique email index the repository relies on for
// conflict detection.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func classifyMongo(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return common.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("email: %w", common.ErrConflict)
	default:
		return fmt.Errorf("mongo error: %w", err)
	}
}

func (r *mongoRepository) CreateUser(ctx context.Context, user *User) error {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := &mongoUser{
		ID:        primitive.NewObjectID(),
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.PasswordHash,
		Company:   user.Company,
		Role:      roles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return classifyMongo(err)
	}
	user.ID = doc.ID.Hex()
	user.Roles = roles
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classifyMongo(err)
	}
	return doc.toUser(), nil
}

func (r *mongoRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) ListUsers(ctx context.Context, offset, limit int) ([]*User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, classifyMongo(err)
	}
	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classifyMongo(err)
	}

	users := make([]*User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toUser())
	}
	return users, nil
}

func (r *mongoRepository) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, classifyMongo(err)
	}
	return n, nil
}

func (r *mongoRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	if update.IsEmpty() {
		return r.findOne(ctx, bson.M{"_id": oid})
	}

	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.PasswordHash != nil {
		set["password"] = *update.PasswordHash
	}
	if update.Company != nil {
		set["company"] = *update.Company
	}
	if update.Roles != nil {
		roles := *update.Roles
		if roles == nil {
			roles = []string{}
		}
		set["role"] = roles
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoUser
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, classifyMongo(err)
	}
	return doc.toUser(), nil
}

func (r *mongoRepository) DeleteUser(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classifyMongo(err)
	}
	if res.DeletedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}
