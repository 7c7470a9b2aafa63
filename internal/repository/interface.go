package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrRecordNotFound is returned by FindByID style lookups.
var ErrRecordNotFound = errors.New("record not found")

// BaseRepository is embedded by every repository interface.
type BaseRepository interface {
	GetDB() *gorm.DB
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Pagination page request and result total
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination clamps page to >= 1 and pageSize to 1..100 (default 10).
func NewPagination(page, pageSize int) *Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return &Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginate is a gorm scope applying p.
func Paginate(p *Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// BaseRepo shared repository state
type BaseRepo struct {
	db *gorm.DB
}

func NewBaseRepo(db *gorm.DB) *BaseRepo {
	return &BaseRepo{db: db}
}

func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// Transaction runs fn in a transaction on the repository's connection.
func (r *BaseRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
