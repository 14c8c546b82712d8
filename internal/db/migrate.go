package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/skillquest-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.DocumentRow{},
	)
}
