package postgres

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// GetCredentialsForEmail returns the stored hash and status so the service
// can distinguish bad credentials from a user awaiting activation.
func (r *Repository) GetCredentialsForEmail(email string) (string, string, string, error) {
	var userID string
	var passwordHash string
	var status string
	query := `SELECT id, password_hash, status FROM users WHERE email = ?`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash, &status); err != nil {
		if err == sql.ErrNoRows {
			return "", "", "", fmt.Errorf("user not found")
		}
		return "", "", "", err
	}
	return userID, passwordHash, status, nil
}
