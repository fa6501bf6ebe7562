package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"gorm.io/gorm"
)

// Repository defines persistence operations for order reads and packing updates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error)
	UpdatePackingStatus(ctx context.Context, id uuid.UUID, status enums.PackingStatus) error
	AdvanceOrderStatus(ctx context.Context, id uuid.UUID, from []enums.TrynbuyStatus, next enums.TrynbuyStatus) (bool, error)
	FindClientOrderDetail(ctx context.Context, id, clientID uuid.UUID) (*models.Trynbuy, error)
	ListClientOrders(ctx context.Context, clientID uuid.UUID) ([]models.Trynbuy, error)
}
