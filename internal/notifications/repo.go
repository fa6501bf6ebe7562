package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const adminRole = "admin"

// TokenRepository finds the push tokens of a company's active admins.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) AdminTokens(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Table("cap_push_token AS t").
		Distinct("t.token").
		Joins("JOIN company_users cu ON cu.user_id = t.user_id").
		Where("cu.company_id = ? AND cu.role = ? AND cu.deleted = ?", companyID, adminRole, false).
		Where("t.token <> ''").
		Order("t.token").
		Pluck("t.token", &tokens).Error
	return tokens, err
}
