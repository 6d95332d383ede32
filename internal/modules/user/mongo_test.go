package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/georgemunganga/sso-users/internal/common"
)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func userDoc(id primitive.ObjectID, email string) bson.D {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Ada"},
		{Key: "email", Value: email},
		{Key: "password", Value: "$2a$10$hash"},
		{Key: "company", Value: "Babbage"},
		{Key: "role", Value: bson.A{"admin"}},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &User{Name: "Ada", Email: "ada@example.com", PasswordHash: "h", Company: "Babbage"}
		require.NoError(t, repo.CreateUser(context.Background(), u))

		assert.Len(t, u.ID, 24)
		assert.False(t, u.CreatedAt.IsZero())
		assert.NotNil(t, u.Roles)
	})

	mt.Run("create duplicate email is conflict", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: sso.ssousers index: email_unique",
		}))

		err := repo.CreateUser(context.Background(), &User{Email: "ada@example.com"})

		assert.ErrorIs(t, err, common.ErrConflict)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, userDoc(id, "ada@example.com")))

		u, err := repo.GetUserByEmail(context.Background(), "ada@example.com")
		require.NoError(t, err)

		assert.Equal(t, id.Hex(), u.ID)
		assert.Equal(t, "$2a$10$hash", u.PasswordHash)
		assert.Equal(t, []string{"admin"}, u.Roles)
	})

	mt.Run("get by email missing", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := repo.GetUserByEmail(context.Background(), "ghost@example.com")

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	mt.Run("get by malformed id", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)

		_, err := repo.GetUserByID(context.Background(), "xyz")

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "a@example.com"),
			userDoc(primitive.NewObjectID(), "b@example.com"),
		))

		users, err := repo.ListUsers(context.Background(), 0, 10)
		require.NoError(t, err)

		require.Len(t, users, 2)
		assert.Equal(t, "a@example.com", users[0].Email)
		assert.Equal(t, "b@example.com", users[1].Email)
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(25)}}))

		n, err := repo.CountUsers(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 25, n)
	})

	mt.Run("update returns new document", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: userDoc(id, "new@example.com")},
		})

		email := "new@example.com"
		u, err := repo.UpdateUser(context.Background(), id.Hex(), UserUpdate{Email: &email})
		require.NoError(t, err)

		assert.Equal(t, id.Hex(), u.ID)
		assert.Equal(t, "new@example.com", u.Email)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		name := "x"
		_, err := repo.UpdateUser(context.Background(), primitive.NewObjectID().Hex(), UserUpdate{Name: &name})

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		id := primitive.NewObjectID().Hex()

		require.NoError(t, repo.DeleteUser(context.Background(), id))
		assert.ErrorIs(t, repo.DeleteUser(context.Background(), id), common.ErrNotFound)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(t, EnsureIndexes(context.Background(), mt.Coll))
	})
}
