package storage

import (
	"errors"
	"fmt"

	"github.com/Farengier/gatewayd-console/internal/orm"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DB interface {
	GORM() *gorm.DB
	SyncNow()
}

// SQL stores items as orm.Item rows and asks the database to flush to disk
// after every change.
type SQL struct {
	db DB
}

func NewSQL(db DB) (*SQL, error) {
	err := db.GORM().AutoMigrate(&orm.Item{})
	if err != nil {
		return nil, fmt.Errorf("migrating items failed: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) GetItem(key string) (string, bool, error) {
	it := &orm.Item{}
	res := s.db.GORM().First(it, "name = ?", key)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if res.Error != nil {
		return "", false, fmt.Errorf("reading %s failed: %w", key, res.Error)
	}
	return it.Value, true, nil
}

func (s *SQL) SetItem(key, value string) error {
	res := s.db.GORM().
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&orm.Item{Name: key, Value: value})
	if res.Error != nil {
		return fmt.Errorf("writing %s failed: %w", key, res.Error)
	}
	s.db.SyncNow()
	return nil
}

func (s *SQL) RemoveItem(key string) error {
	res := s.db.GORM().Delete(&orm.Item{}, "name = ?", key)
	if res.Error != nil {
		return fmt.Errorf("removing %s failed: %w", key, res.Error)
	}
	s.db.SyncNow()
	return nil
}

func (s *SQL) Clear() error {
	res := s.db.GORM().Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&orm.Item{})
	if res.Error != nil {
		return fmt.Errorf("clearing items failed: %w", res.Error)
	}
	log.Debugf("[Storage] cleared %d items", res.RowsAffected)
	s.db.SyncNow()
	return nil
}
