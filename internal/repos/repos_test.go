package repos_test

import (
	"errors"
	"testing"

	"catalogweb/internal/repos"
)

func openDB(t *testing.T) (*repos.ProductRepo, *repos.CategoryRepo) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repos.NewProductRepo(db), repos.NewCategoryRepo(db)
}

func ptr(f float64) *float64 { return &f }

func TestSeededCatalog(t *testing.T) {
	products, categories := openDB(t)

	cats, err := categories.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 5 || cats[0].Name != "Chairs" {
		t.Fatalf("categories = %+v", cats)
	}

	n, err := products.Count(repos.ProductFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 23 {
		t.Fatalf("seeded %d products", n)
	}
}

func TestSearch_Filters(t *testing.T) {
	products, _ := openDB(t)

	got, err := products.Search(repos.ProductFilter{Name: "CHAIR"}, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("name filter matched %d", len(got))
	}
	for _, p := range got {
		if len(p.Categories) == 0 || len(p.Images) != 1 {
			t.Fatalf("product not hydrated: %+v", p)
		}
	}

	got, _ = products.Search(repos.ProductFilter{MinPrice: ptr(100), MaxPrice: ptr(500)}, 50, 0)
	for _, p := range got {
		if p.Price < 100 || p.Price >= 500 {
			t.Fatalf("price %v outside [100,500)", p.Price)
		}
	}

	got, _ = products.Search(repos.ProductFilter{Categories: []string{"lamps", "Tables"}}, 50, 0)
	if len(got) != 9 {
		t.Fatalf("category any-of matched %d", len(got))
	}

	got, _ = products.Search(repos.ProductFilter{Name: "100%"}, 50, 0)
	if len(got) != 0 {
		t.Fatal("LIKE wildcards must be escaped")
	}

	got, _ = products.Search(repos.ProductFilter{}, 10, 20)
	if len(got) != 3 {
		t.Fatalf("last page has %d rows", len(got))
	}
}

func TestCreateGetDelete(t *testing.T) {
	products, categories := openDB(t)

	ids, err := categories.IDsByNames([]string{"lamps", "Outdoor"})
	if err != nil || len(ids) != 2 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
	if _, err := categories.IDsByNames([]string{"Nope"}); !errors.Is(err, repos.ErrUnknownCategory) {
		t.Fatalf("want ErrUnknownCategory, got %v", err)
	}

	p, err := products.Create(repos.NewProduct{
		Name: "Garden Lamp", Description: "Stake light", Price: 15,
		CategoryIDs: ids, ImagePaths: []string{"products/a.jpg", "products/b.jpg"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ID == 0 || len(p.Categories) != 2 || len(p.Images) != 2 {
		t.Fatalf("created %+v", p)
	}

	got, err := products.Get(p.ID)
	if err != nil || got.Name != "Garden Lamp" {
		t.Fatalf("get: %+v %v", got, err)
	}

	ok, err := products.Delete(p.ID)
	if err != nil || !ok {
		t.Fatalf("delete ok=%v err=%v", ok, err)
	}
	if _, err := products.Get(p.ID); !repos.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	if ok, _ := products.Delete(p.ID); ok {
		t.Fatal("second delete reported a row")
	}
}

func TestCategoryCreateDuplicate(t *testing.T) {
	_, categories := openDB(t)

	c, err := categories.Create("Rugs")
	if err != nil || c.ID == 0 || c.Name != "Rugs" {
		t.Fatalf("create: %+v %v", c, err)
	}
	if _, err := categories.Create("rugs"); !errors.Is(err, repos.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}
