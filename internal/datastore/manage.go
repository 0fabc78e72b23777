// manage.go: schema migration and gorm logger setup
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// allModels lists every schema-managed model in migration order.
func allModels() []any {
	return []any{
		&Grader{},
		&Order{},
		&Suborder{},
		&Job{},
		&Item{},
		&GradeRecord{},
		&ServiceLevel{},
		&FormulaRow{},
		&RoundingRow{},
		&TakeoffRow{},
		&GradeMaster{},
		&GradeDescription{},
		&CertificationRecord{},
		&LabelWarehouse{},
	}
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}

// createGormLogger returns a gorm logger that stays quiet unless debug is on.
func createGormLogger(debug bool) logger.Interface {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
