package repos

import (
	"errors"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrDuplicate       = errors.New("repos: duplicate")
	ErrUnknownCategory = errors.New("repos: unknown category")
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}
	// one connection: a :memory: database lives on a single connection and
	// sqlite serializes writers regardless
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	return db, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_nocase ON categories(LOWER(name));

-- Products
CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL CHECK (price >= 0),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_name       ON products(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_products_price      ON products(price);
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at);

CREATE TABLE IF NOT EXISTS product_images(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  image_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_product_images_product ON product_images(product_id);

CREATE TABLE IF NOT EXISTS product_categories(
  product_id  INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (product_id, category_id)
);
CREATE INDEX IF NOT EXISTS idx_product_categories_category ON product_categories(category_id);
`
	_, err := db.Exec(schema)
	return err
}

type seedProduct struct {
	name, description string
	price             float64
	categories        []string
	image             string
}

var seedCategories = []string{"Chairs", "Tables", "Lamps", "Storage", "Outdoor"}

var seedProducts = []seedProduct{
	{"Oak Dining Chair", "Solid oak dining chair with a woven seat.", 89.00, []string{"Chairs"}, "products/oak-chair.jpg"},
	{"Lounge Chair", "Mid-century lounge chair in walnut and leather.", 649.00, []string{"Chairs"}, "products/lounge-chair.jpg"},
	{"Folding Chair", "Steel folding chair, stackable.", 24.50, []string{"Chairs", "Outdoor"}, "products/folding-chair.jpg"},
	{"Office Chair", "Ergonomic office chair with lumbar support.", 289.00, []string{"Chairs"}, "products/office-chair.jpg"},
	{"Rocking Chair", "Beech rocking chair for the porch.", 179.00, []string{"Chairs", "Outdoor"}, "products/rocking-chair.jpg"},
	{"Bar Stool", "Counter-height bar stool with footrest.", 69.00, []string{"Chairs"}, "products/bar-stool.jpg"},
	{"Farmhouse Table", "Reclaimed pine farmhouse table seating eight.", 1199.00, []string{"Tables"}, "products/farmhouse-table.jpg"},
	{"Coffee Table", "Low coffee table with a lower shelf.", 229.00, []string{"Tables"}, "products/coffee-table.jpg"},
	{"Side Table", "Round side table in powder-coated steel.", 59.00, []string{"Tables"}, "products/side-table.jpg"},
	{"Desk", "Writing desk with two drawers.", 399.00, []string{"Tables", "Storage"}, "products/desk.jpg"},
	{"Patio Table", "Teak patio table, weather resistant.", 549.00, []string{"Tables", "Outdoor"}, "products/patio-table.jpg"},
	{"Arc Floor Lamp", "Arched floor lamp with a marble base.", 189.00, []string{"Lamps"}, "products/arc-lamp.jpg"},
	{"Desk Lamp", "Adjustable LED desk lamp.", 39.99, []string{"Lamps"}, "products/desk-lamp.jpg"},
	{"Pendant Lamp", "Spun aluminium pendant lamp.", 129.00, []string{"Lamps"}, "https://images.example.com/pendant-lamp.jpg"},
	{"Lantern", "Solar garden lantern.", 19.00, []string{"Lamps", "Outdoor"}, "products/lantern.jpg"},
	{"Bookcase", "Five-shelf bookcase in white oak.", 319.00, []string{"Storage"}, "products/bookcase.jpg"},
	{"Sideboard", "Walnut sideboard with sliding doors.", 899.00, []string{"Storage"}, "products/sideboard.jpg"},
	{"Storage Bench", "Entryway bench with a lift-up seat.", 149.00, []string{"Storage", "Chairs"}, "products/storage-bench.jpg"},
	{"Wall Shelf", "Floating wall shelf, set of two.", 45.00, []string{"Storage"}, "products/wall-shelf.jpg"},
	{"Deck Box", "Resin deck box for cushions.", 99.00, []string{"Storage", "Outdoor"}, "products/deck-box.jpg"},
	{"Hammock", "Cotton rope hammock with stand.", 210.00, []string{"Outdoor"}, "products/hammock.jpg"},
	{"Fire Pit", "Steel fire pit with spark screen.", 249.00, []string{"Outdoor"}, "products/fire-pit.jpg"},
	{"Parasol", "Tilting market parasol, 3m.", 119.00, []string{"Outdoor"}, "products/parasol.jpg"},
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo categories/products")

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	catIDs := map[string]int64{}
	for _, name := range seedCategories {
		res, err := tx.Exec(`INSERT INTO categories(name) VALUES(?)`, name)
		if err != nil {
			return err
		}
		catIDs[name], _ = res.LastInsertId()
	}
	for _, p := range seedProducts {
		res, err := tx.Exec(`INSERT INTO products(name,description,price) VALUES(?,?,?)`, p.name, p.description, p.price)
		if err != nil {
			return err
		}
		pid, _ := res.LastInsertId()
		for _, c := range p.categories {
			if _, err := tx.Exec(`INSERT INTO product_categories(product_id,category_id) VALUES(?,?)`, pid, catIDs[c]); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`INSERT INTO product_images(product_id,image_path) VALUES(?,?)`, pid, p.image); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
