package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/infrastructure/persistence/models"
)

var ratePlanSortable = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"valid_from": "valid_from",
}

// GormRatePlanRepository implements rating.RatePlanRepository using GORM
type GormRatePlanRepository struct {
	db *gorm.DB
}

// NewGormRatePlanRepository creates a new GormRatePlanRepository
func NewGormRatePlanRepository(db *gorm.DB) *GormRatePlanRepository {
	return &GormRatePlanRepository{db: db}
}

// FindByID returns the plan with its rates, or nil when absent.
func (r *GormRatePlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*rating.RatePlan, error) {
	var model models.RatePlanModel
	found, err := notFoundAsNil(r.db.WithContext(ctx).First(&model, "id = ?", id).Error)
	if !found {
		return nil, err
	}
	plans, err := r.withRates(ctx, []models.RatePlanModel{model})
	if err != nil {
		return nil, err
	}
	return &plans[0], nil
}

// FindAll lists plans page by page
func (r *GormRatePlanRepository) FindAll(ctx context.Context, filter rating.RatePlanFilter) ([]rating.RatePlan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RatePlanModel{})
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var planModels []models.RatePlanModel
	if err := applyPaging(query, filter.Filter, ratePlanSortable).Find(&planModels).Error; err != nil {
		return nil, 0, err
	}
	plans, err := r.withRates(ctx, planModels)
	if err != nil {
		return nil, 0, err
	}
	return plans, total, nil
}

func (r *GormRatePlanRepository) withRates(ctx context.Context, planModels []models.RatePlanModel) ([]rating.RatePlan, error) {
	if len(planModels) == 0 {
		return []rating.RatePlan{}, nil
	}
	ids := make([]uuid.UUID, len(planModels))
	for i, m := range planModels {
		ids[i] = m.ID
	}

	var rateModels []models.RateModel
	if err := r.db.WithContext(ctx).
		Where("plan_id IN ?", ids).
		Order("plan_id, position").
		Find(&rateModels).Error; err != nil {
		return nil, err
	}
	byPlan := make(map[uuid.UUID][]models.RateModel, len(planModels))
	for _, rm := range rateModels {
		byPlan[rm.PlanID] = append(byPlan[rm.PlanID], rm)
	}

	plans := make([]rating.RatePlan, len(planModels))
	for i := range planModels {
		plan, err := planModels[i].ToDomain(byPlan[planModels[i].ID])
		if err != nil {
			return nil, err
		}
		plans[i] = *plan
	}
	return plans, nil
}

// Save inserts or overwrites the plan and replaces its rates.
func (r *GormRatePlanRepository) Save(ctx context.Context, plan *rating.RatePlan) error {
	model, rates, err := models.RatePlanModelFromDomain(plan)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return replaceRates(tx, plan.ID, rates)
	})
}

// SaveWithLock saves the plan only if the stored version equals expectedVersion.
func (r *GormRatePlanRepository) SaveWithLock(ctx context.Context, plan *rating.RatePlan, expectedVersion int) error {
	model, rates, err := models.RatePlanModelFromDomain(plan)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateVersioned(ctx, tx, &models.RatePlanModel{}, model, plan.ID, expectedVersion); err != nil {
			return err
		}
		return replaceRates(tx, plan.ID, rates)
	})
}

func replaceRates(tx *gorm.DB, planID uuid.UUID, rates []models.RateModel) error {
	if err := tx.Where("plan_id = ?", planID).Delete(&models.RateModel{}).Error; err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}
	return tx.Create(&rates).Error
}

var _ rating.RatePlanRepository = (*GormRatePlanRepository)(nil)
