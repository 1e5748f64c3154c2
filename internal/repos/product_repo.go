package repos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"catalogweb/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// ProductFilter narrows Search and Count. Price bounds are [MinPrice, MaxPrice).
type ProductFilter struct {
	Name        string
	Description string
	MinPrice    *float64
	MaxPrice    *float64
	Categories  []string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func contains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (f ProductFilter) where() (string, []any) {
	where := `1 = 1`
	args := []any{}
	if f.Name != "" {
		where += ` AND LOWER(p.name) LIKE ? ESCAPE '\'`
		args = append(args, contains(f.Name))
	}
	if f.Description != "" {
		where += ` AND LOWER(p.description) LIKE ? ESCAPE '\'`
		args = append(args, contains(f.Description))
	}
	if f.MinPrice != nil {
		where += ` AND p.price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where += ` AND p.price < ?`
		args = append(args, *f.MaxPrice)
	}
	if len(f.Categories) > 0 {
		where += ` AND EXISTS (
    SELECT 1 FROM product_categories pc JOIN categories c ON c.id = pc.category_id
    WHERE pc.product_id = p.id AND LOWER(c.name) IN (?` + strings.Repeat(",?", len(f.Categories)-1) + `))`
		for _, c := range f.Categories {
			args = append(args, strings.ToLower(c))
		}
	}
	return where, args
}

const productColumns = `
    p.id, p.name, p.description, p.price,
    COALESCE(p.created_at,'') AS created_at, COALESCE(p.updated_at,'') AS updated_at`

// Search returns one page of matching products with their categories and images.
func (r *ProductRepo) Search(f ProductFilter, limit, offset int) ([]domain.Product, error) {
	where, args := f.where()
	q := `
  SELECT` + productColumns + `
  FROM products p
  WHERE ` + where + `
  ORDER BY p.created_at DESC, p.id DESC
  LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := []domain.Product{}
	if err := r.db.Select(&out, q, args...); err != nil {
		return nil, err
	}
	return out, r.hydrate(out)
}

func (r *ProductRepo) Count(f ProductFilter) (int, error) {
	where, args := f.where()
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM products p WHERE `+where, args...)
	return n, err
}

// Get returns sql.ErrNoRows when id does not exist.
func (r *ProductRepo) Get(id int64) (domain.Product, error) {
	var p domain.Product
	if err := r.db.Get(&p, `SELECT`+productColumns+` FROM products p WHERE p.id = ?`, id); err != nil {
		return p, err
	}
	list := []domain.Product{p}
	if err := r.hydrate(list); err != nil {
		return p, err
	}
	return list[0], nil
}

// Delete reports whether a row was removed. Images and category links cascade.
func (r *ProductRepo) Delete(id int64) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type NewProduct struct {
	Name        string
	Description string
	Price       float64
	CategoryIDs []int64
	ImagePaths  []string
}

func (r *ProductRepo) Create(np NewProduct) (domain.Product, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return domain.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`INSERT INTO products(name,description,price) VALUES(?,?,?)`, np.Name, np.Description, np.Price)
	if err != nil {
		return domain.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Product{}, err
	}
	for _, cid := range np.CategoryIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO product_categories(product_id,category_id) VALUES(?,?)`, id, cid); err != nil {
			return domain.Product{}, err
		}
	}
	for _, path := range np.ImagePaths {
		if _, err := tx.Exec(`INSERT INTO product_images(product_id,image_path) VALUES(?,?)`, id, path); err != nil {
			return domain.Product{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Product{}, err
	}
	return r.Get(id)
}

func (r *ProductRepo) hydrate(ps []domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]int64, len(ps))
	index := make(map[int64]int, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
		index[p.ID] = i
		ps[i].Categories = []domain.Category{}
	}

	q, args, err := sqlx.In(`
  SELECT pc.product_id, c.id, c.name,
    COALESCE(c.created_at,'') AS created_at, COALESCE(c.updated_at,'') AS updated_at
  FROM product_categories pc JOIN categories c ON c.id = pc.category_id
  WHERE pc.product_id IN (?)
  ORDER BY c.name`, ids)
	if err != nil {
		return err
	}
	var cats []struct {
		ProductID int64 `db:"product_id"`
		domain.Category
	}
	if err := r.db.Select(&cats, r.db.Rebind(q), args...); err != nil {
		return err
	}
	for _, c := range cats {
		i := index[c.ProductID]
		ps[i].Categories = append(ps[i].Categories, c.Category)
	}

	q, args, err = sqlx.In(`
  SELECT id, product_id, image_path FROM product_images
  WHERE product_id IN (?)
  ORDER BY id`, ids)
	if err != nil {
		return err
	}
	var imgs []domain.Image
	if err := r.db.Select(&imgs, r.db.Rebind(q), args...); err != nil {
		return err
	}
	for _, img := range imgs {
		i := index[img.ProductID]
		ps[i].Images = append(ps[i].Images, img)
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool { return err == sql.ErrNoRows }
