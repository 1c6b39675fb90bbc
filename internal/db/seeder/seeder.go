package seeder

import (
	"context"

	"echoflow/internal/app/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Seeder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSeeder(db *gorm.DB, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     db,
		logger: logger,
	}
}

func (s *Seeder) Seed(ctx context.Context) error {
	s.logger.Info("Running database seeders...")

	if err := s.seedAssistant(ctx); err != nil {
		return err
	}

	s.logger.Info("Database seeders completed successfully")
	return nil
}

// seedAssistant makes sure assistant messages have an owner record.
func (s *Seeder) seedAssistant(ctx context.Context) error {
	assistant := &user.User{
		UID:      user.AssistantUserID,
		FullName: user.AssistantName,
	}
	if err := user.NewRepository(s.db).EnsureExists(ctx, assistant); err != nil {
		return err
	}

	s.logger.Info("Assistant user ensured", zap.String("uid", user.AssistantUserID))
	return nil
}
