package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoockh/yoomeet/internal/models"
)

type VoiceTurnRepository interface {
	Insert(ctx context.Context, t *models.VoiceTurn) error
	Update(ctx context.Context, turnID string, set bson.M) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.VoiceTurn, error)
}

type voiceTurnRepo struct {
	col *mongo.Collection
}

func NewVoiceTurnRepo(db *mongo.Database) VoiceTurnRepository {
	return &voiceTurnRepo{col: db.Collection("voice_turns")}
}

func (r *voiceTurnRepo) Insert(ctx context.Context, t *models.VoiceTurn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

func (r *voiceTurnRepo) Update(ctx context.Context, turnID string, set bson.M) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"turn_id": turnID}, bson.M{"$set": set})
	return err
}

func (r *voiceTurnRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.VoiceTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.VoiceTurn
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
