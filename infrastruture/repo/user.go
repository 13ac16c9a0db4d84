package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dmn "github.com/openmelee/netplay-server/domain"
)

// UserRepo handles the persistence of user models. Unique indexes on
// username and connectCode are assumed to exist on the collection.
type UserRepo struct {
	collection *mongo.Collection
}

// NewUserRepo creates a new UserRepo with the given MongoDB client, database
// name, and collection name.
func NewUserRepo(client *mongo.Client, dbName, collectionName string) *UserRepo {
	collection := client.Database(dbName).Collection(collectionName)
	return &UserRepo{
		collection: collection,
	}
}

// Save inserts or updates a user in the repository.
// If the user already exists, it updates the existing record.
func (u *UserRepo) Save(user *dmn.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	filter := bson.M{"_id": user.ID}
	update := bson.M{
		"$set": bson.M{
			"username":      user.Username,
			"passwordHash":  user.PasswordHash,
			"playKey":       user.PlayKey,
			"displayName":   user.DisplayName,
			"connectCode":   user.ConnectCode,
			"latestVersion": user.LatestVersion,
			"updatedAt":     time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := u.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		return errors.New("unexpected error: " + err.Error())
	}

	return nil
}

// duplicateKeyError maps a unique index violation to the taken-field error.
// Both the username and connectCode indexes can fire on an upsert.
func duplicateKeyError(err error) error {
	if strings.Contains(err.Error(), "username") {
		return dmn.ErrUsernameTaken
	}
	return dmn.ErrConnectCodeTaken
}

// ByID retrieves a user by their ID.
func (u *UserRepo) ByID(id uuid.UUID) (*dmn.User, error) {
	return u.findOne(bson.M{"_id": id})
}

// ByUsername retrieves a user by their username.
func (u *UserRepo) ByUsername(username string) (*dmn.User, error) {
	return u.findOne(bson.M{"username": username})
}

// ByConnectCode retrieves a user by their connect code.
func (u *UserRepo) ByConnectCode(code string) (*dmn.User, error) {
	return u.findOne(bson.M{"connectCode": code})
}

// IsConnectCodeTaken reports whether a connect code is already registered.
func (u *UserRepo) IsConnectCodeTaken(code string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := u.collection.CountDocuments(ctx, bson.M{"connectCode": code})
	if err != nil {
		return false, errors.New("unexpected error: " + err.Error())
	}
	return count > 0, nil
}

func (u *UserRepo) findOne(filter bson.M) (*dmn.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var user dmn.User
	if err := u.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, dmn.ErrUserNotFound
		}
		return nil, errors.New("unexpected error: " + err.Error())
	}
	return &user, nil
}
