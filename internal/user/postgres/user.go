package postgres

import (
	"gorm.io/gorm"

	userDatamodel "github.com/tradecore/access-management/internal/core/datamodel/user"
	"github.com/tradecore/access-management/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(userID int64) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.Where("id = ?", userID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

// GetPermissions flattens the user's granted permission names through the
// role grant table. Users without a role get an empty list.
func (r *Repository) GetPermissions(userID int64) ([]string, error) {
	query := `SELECT p.name
	         FROM permissions p
	         JOIN role_grants rg ON rg.permission_id = p.permission_id
	         JOIN users u ON u.role_id = rg.role_id
	         WHERE u.id = ? AND rg.is_granted = true`

	rows, err := r.db.Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	permissions := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		permissions = append(permissions, name)
	}
	return permissions, nil
}
