package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/you/walletgate/domain"
	"gorm.io/gorm"
)

// DBUser is the gate's read model of a wallet user. Credentials other than
// the PIN live with the upstream identity service.
type DBUser struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:255"`
	Phone     string         `gorm:"index;size:32"`
	Role      string         `gorm:"index;size:64"`
	IsActive  bool           `gorm:"index"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time      `gorm:"index"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (DBUser) TableName() string {
	return "users"
}

func userToDB(u *domain.User) *DBUser {
	return &DBUser{
		ID:        u.ID,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (row *DBUser) toDomain() *domain.User {
	return &domain.User{
		ID:        row.ID,
		Email:     row.Email,
		Phone:     row.Phone,
		Role:      row.Role,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// UserRepositoryImpl looks up OTP destinations for wallet users
type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	row := userToDB(user)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	user.ID, user.CreatedAt, user.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	return r.first(ctx, &DBUser{ID: id})
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.first(ctx, &DBUser{Email: email})
}

func (r *UserRepositoryImpl) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if phone == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.first(ctx, &DBUser{Phone: phone})
}

// Update overwrites contact details and role of an existing user
func (r *UserRepositoryImpl) Update(ctx context.Context, user *domain.User) error {
	res := r.db.WithContext(ctx).Model(&DBUser{ID: user.ID}).
		Select("Email", "Phone", "Role", "IsActive").
		Updates(userToDB(user))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) first(ctx context.Context, where *DBUser) (*domain.User, error) {
	if where.ID == 0 && where.Email == "" && where.Phone == "" {
		return nil, domain.ErrUserNotFound
	}
	var row DBUser
	err := r.db.WithContext(ctx).Where(where).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}
