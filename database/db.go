package database

import (
	"fmt"

	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	"github.com/jibzus/bluefleet-sub001/models/log"
	"github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/models/webhook"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection and brings the schema up to date
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects without touching the schema
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// surfaces unique violations as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")
	return db, nil
}

// Migrate runs auto migration, foreign keys and indexes
func Migrate(db *gorm.DB) error {
	if err := autoMigrate(db); err != nil {
		logger.Error("Failed to run auto migration", err)
		return err
	}
	logger.Success("All migrations completed successfully")

	if err := createForeignKeyConstraints(db); err != nil {
		logger.Error("Failed to create foreign key constraints", err)
		return err
	}
	logger.Success("All foreign key constraints created successfully")

	if err := createIndexes(db); err != nil {
		logger.Error("Failed to create indexes", err)
		return err
	}
	logger.Success("All indexes created successfully")
	return nil
}

// autoMigrate runs auto migration for all models
func autoMigrate(db *gorm.DB) error {
	stages := [][]interface{}{
		// Stage 1: read models owned by other services
		{
			&vessel.Vessel{},
			&vessel.AvailabilityWindow{},
		},
		// Stage 2: negotiation
		{
			&booking.Booking{},
			&booking.BookingStatusEvent{},
		},
		// Stage 3: contracts and escrow
		{
			&contract.Contract{},
			&contract.Signature{},
			&escrow.Escrow{},
			&escrow.Event{},
		},
		// Stage 4: tracking and audit
		{
			&tracking.TrackingEvent{},
			&webhook.Receipt{},
			&log.Log{},
		},
	}

	for _, models := range stages {
		for _, model := range models {
			if err := db.AutoMigrate(model); err != nil {
				return fmt.Errorf("failed to migrate %T: %w", model, err)
			}
		}
	}
	return nil
}

// createIndexes creates additional indexes for the hot queries
func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		// overlap check at accept
		{"idx_bookings_vessel_status_window", "CREATE INDEX IF NOT EXISTS idx_bookings_vessel_status_window ON bookings(vessel_id, status, start_at, end_at)"},
		{"idx_bookings_created_at", "CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)"},
		// poller selection
		{"idx_escrows_booking_status", "CREATE INDEX IF NOT EXISTS idx_escrows_booking_status ON escrows(booking_id, status)"},
		{"idx_escrow_events_escrow_type", "CREATE INDEX IF NOT EXISTS idx_escrow_events_escrow_type ON escrow_events(escrow_id, type)"},
		{"idx_webhook_receipts_received_at", "CREATE INDEX IF NOT EXISTS idx_webhook_receipts_received_at ON webhook_receipts(received_at)"},
		{"idx_logs_method", "CREATE INDEX IF NOT EXISTS idx_logs_method ON request_logs(method)"},
		{"idx_logs_status_code", "CREATE INDEX IF NOT EXISTS idx_logs_status_code ON request_logs(status_code)"},
		{"idx_logs_created_at", "CREATE INDEX IF NOT EXISTS idx_logs_created_at ON request_logs(created_at)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// createForeignKeyConstraints creates foreign key constraints after auto migration
func createForeignKeyConstraints(db *gorm.DB) error {
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_bookings_vessel",
			sql: `ALTER TABLE bookings ADD CONSTRAINT fk_bookings_vessel
				  FOREIGN KEY (vessel_id) REFERENCES vessels(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_contracts_booking",
			sql: `ALTER TABLE contracts ADD CONSTRAINT fk_contracts_booking
				  FOREIGN KEY (booking_id) REFERENCES bookings(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_escrows_booking",
			sql: `ALTER TABLE escrows ADD CONSTRAINT fk_escrows_booking
				  FOREIGN KEY (booking_id) REFERENCES bookings(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_tracking_events_booking",
			sql: `ALTER TABLE tracking_events ADD CONSTRAINT fk_tracking_events_booking
				  FOREIGN KEY (booking_id) REFERENCES bookings(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
	}

	for _, constraint := range constraints {
		var exists bool
		checkSQL := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE constraint_name = $1
			)
		`
		if err := db.Raw(checkSQL, constraint.name).Scan(&exists).Error; err != nil {
			logger.Warning(fmt.Sprintf("Failed to check constraint existence: %s - Error: %v", constraint.name, err))
			continue
		}
		if exists {
			logger.Debug(fmt.Sprintf("Constraint already exists: %s", constraint.name))
			continue
		}
		if err := db.Exec(constraint.sql).Error; err != nil {
			logger.Warning(fmt.Sprintf("Failed to create constraint: %s - Error: %v", constraint.name, err))
		} else {
			logger.Success(fmt.Sprintf("Successfully created constraint: %s", constraint.name))
		}
	}
	return nil
}
