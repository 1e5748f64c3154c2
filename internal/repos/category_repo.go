package repos

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"catalogweb/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List() ([]domain.Category, error) {
	out := []domain.Category{}
	err := r.db.Select(&out, `
  SELECT
    id,
    name,
    COALESCE(created_at,'') AS created_at,
    COALESCE(updated_at,'') AS updated_at
  FROM categories
  ORDER BY name
`)
	return out, err
}

// Create inserts name. A case-insensitive duplicate returns ErrDuplicate.
func (r *CategoryRepo) Create(name string) (domain.Category, error) {
	res, err := r.db.Exec(`INSERT INTO categories(name) VALUES(?)`, name)
	if isUniqueViolation(err) {
		return domain.Category{}, ErrDuplicate
	}
	if err != nil {
		return domain.Category{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Category{}, err
	}
	var c domain.Category
	err = r.db.Get(&c, `
  SELECT id, name, COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at
  FROM categories WHERE id = ?`, id)
	return c, err
}

// IDsByNames resolves names case-insensitively, in input order. Any unknown
// name returns ErrUnknownCategory.
func (r *CategoryRepo) IDsByNames(names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	lower := make([]string, len(names))
	for i, n := range names {
		lower[i] = strings.ToLower(strings.TrimSpace(n))
	}
	q, args, err := sqlx.In(`SELECT id, LOWER(name) AS name FROM categories WHERE LOWER(name) IN (?)`, lower)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	if err := r.db.Select(&rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(rows))
	for _, row := range rows {
		byName[row.Name] = row.ID
	}
	ids := make([]int64, 0, len(lower))
	for _, n := range lower {
		id, ok := byName[n]
		if !ok {
			return nil, ErrUnknownCategory
		}
		ids = append(ids, id)
	}
	return ids, nil
}
