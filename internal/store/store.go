package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the relational source of truth for devices, their event trail,
// tenants, user profiles and the audit log.
type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	driver string
}

// New opens the database, migrates the schema and returns a Store.
func New(ctx context.Context, driver, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; an in-memory database also only
		// exists on the connection that created it.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Device{},
		&models.DeviceEvent{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, log: log, driver: driver}, nil
}

// SeedDefaults creates a default organization and an admin profile on an
// empty database. The admin authenticates with a bearer token minted by
// `meshgate token`.
func (s *Store) SeedDefaults(ctx context.Context) error {
	var userCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return nil
	}

	org := &models.Organization{
		ID:   uuid.New().String(),
		Name: "default",
	}
	admin := &models.User{
		ID:       uuid.New().String(),
		Username: "admin",
		Email:    "admin@localhost",
		Role:     models.RoleAdmin,
		TenantID: org.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(admin).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("seeded default data",
		zap.String("organization_id", org.ID),
		zap.String("admin_user_id", admin.ID),
	)
	return nil
}

// Health pings the underlying connection.
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the GORM handle for tests and migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// User operations

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(user).Error
}

// Organization operations

func (s *Store) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	if id == "" {
		return nil, ErrRecordNotFound
	}
	var org models.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(org).Error
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
