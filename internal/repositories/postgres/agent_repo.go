package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	List(ctx context.Context, tag string, limit int) ([]models.Agent, error)
	Upsert(ctx context.Context, a *models.Agent) error
}

type agentRepo struct {
	db *gorm.DB
}

func NewAgentRepo(db *gorm.DB) AgentRepository {
	return &agentRepo{db: db}
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	var a models.Agent
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agentRepo) List(ctx context.Context, tag string, limit int) ([]models.Agent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("name ASC").Limit(limit)
	if tag != "" {
		q = q.Where("? = ANY(tags)", tag)
	}
	var rows []models.Agent
	err := q.Find(&rows).Error
	return rows, err
}

func (r *agentRepo) Upsert(ctx context.Context, a *models.Agent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "instructions", "voice", "language", "tags", "metadata", "updated_at"}),
		}).
		Create(a).Error
}
