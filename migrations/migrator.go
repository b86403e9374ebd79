// Package migrations owns the database schema. Migrations are applied in
// version order and recorded in schema_migrations.
package migrations

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

type MigrationRecord struct {
	Version   string    `gorm:"primaryKey;size:32"`
	Name      string    `gorm:"not null;size:200"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Status is one row of `migrate status`.
type Status struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

type Migrator struct {
	db         *gorm.DB
	migrations []*Migration
}

// NewMigrator returns a migrator over the given migrations, or over All()
// when none are passed.
func NewMigrator(db *gorm.DB, migrations ...*Migration) *Migrator {
	if len(migrations) == 0 {
		migrations = All()
	}
	sorted := make([]*Migration, len(migrations))
	copy(sorted, migrations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{db: db, migrations: sorted}
}

func (m *Migrator) ensureVersionTable() error {
	return m.db.AutoMigrate(&MigrationRecord{})
}

func (m *Migrator) appliedRecords() (map[string]MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	var records []MigrationRecord
	if err := m.db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		applied[r.Version] = r
	}
	return applied, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the versions it applied.
func (m *Migrator) Up() ([]string, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return done, fmt.Errorf("migration %s_%s: %w", migration.Version, migration.Name, err)
		}
		done = append(done, migration.Version)
	}
	return done, nil
}

// Down reverts the most recently applied migration. It returns nil when
// nothing is applied.
func (m *Migrator) Down() (*MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}

	var last MigrationRecord
	err := m.db.Order("applied_at DESC").Order("version DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var target *Migration
	for _, migration := range m.migrations {
		if migration.Version == last.Version {
			target = migration
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("applied migration %s is unknown to this build", last.Version)
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&last).Error
	})
	if err != nil {
		return nil, fmt.Errorf("revert %s_%s: %w", target.Version, target.Name, err)
	}
	return &last, nil
}

// Status lists every known migration with whether it is applied.
func (m *Migrator) Status() ([]Status, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(m.migrations))
	for _, migration := range m.migrations {
		s := Status{Version: migration.Version, Name: migration.Name}
		if r, ok := applied[migration.Version]; ok {
			at := r.AppliedAt
			s.Applied, s.AppliedAt = true, &at
		}
		out = append(out, s)
	}
	return out, nil
}

// History returns applied migrations, oldest first.
func (m *Migrator) History() ([]MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}
	var records []MigrationRecord
	err := m.db.Order("applied_at ASC").Order("version ASC").Find(&records).Error
	return records, err
}
