// Package mysql implements storage.Store on gorm and MySQL.
package mysql

import (
	"context"
	"errors"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/mmdatafocus/freight_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle, bound to the current transaction when inside RunInTx.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context, forUpdate bool) *gorm.DB {
	db := s.db.WithContext(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error, doctype string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(doctype, id)
	}
	return err
}

func duplicateAsConflict(err error, format string, args ...any) error {
	if utils.IsDuplicateKeyError(err) {
		return models.NewConflictError(format, args...)
	}
	return err
}

func orderByIdx(db *gorm.DB) *gorm.DB {
	return db.Order("idx")
}

// NextName increments the naming series row under a row lock.
// A concurrent first insert loses on the primary key and re-reads the winner's row.
func (s *Store) NextName(ctx context.Context, doctype string) (string, error) {
	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		var series models.NamingSeries
		err := locked.Where("doc_type = ?", doctype).First(&series).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			series = models.NamingSeries{DocType: doctype, Prefix: models.NamingPrefix(doctype)}
			if err := tx.Create(&series).Error; err != nil {
				if !utils.IsDuplicateKeyError(err) {
					return err
				}
				if err := locked.Where("doc_type = ?", doctype).First(&series).Error; err != nil {
					return err
				}
			}
		} else if err != nil {
			return err
		}
		series.Current++
		if err := tx.Model(&models.NamingSeries{}).Where("doc_type = ?", doctype).
			Update("current", series.Current).Error; err != nil {
			return err
		}
		name = models.FormatName(series.Prefix, series.Current)
		return nil
	})
	return name, err
}
