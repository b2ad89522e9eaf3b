package repository

import (
	"strings"

	"hms-backend/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(user *models.User) error {
	return translate(r.db.Create(user).Error, "user")
}

// GetUserByID finds a user by id together with their hospital
func (r *UserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Hospital").First(&user, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GetUserByEmail finds a user by email, case-insensitively
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Preload("Hospital").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// ListUsers returns the users of a hospital ordered by name
func (r *UserRepository) ListUsers(filter models.UserFilter) ([]models.User, error) {
	var users []models.User
	query := r.db.Where("hospital_id = ?", filter.HospitalID)
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	err := query.Order("full_name ASC").Find(&users).Error
	return users, err
}

// UpdateUser persists the user's own columns
func (r *UserRepository) UpdateUser(user *models.User) error {
	return r.db.Omit("Hospital").Save(user).Error
}
