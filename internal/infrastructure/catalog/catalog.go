// Package catalog holds the warehouse configuration the fulfillment core
// reads: shelves with their class, and products with their barcode. It is
// seeded from a YAML file and kept current by facility and product events.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// File is the YAML seed layout
type File struct {
	Warehouses []domain.Warehouse `yaml:"warehouses"`
	Shelves    []domain.Shelf     `yaml:"shelves"`
	Products   []domain.Product   `yaml:"products"`
}

// Catalog is an in-memory, concurrency-safe shelf and product registry
type Catalog struct {
	mu               sync.RWMutex
	warehouses       map[string]domain.Warehouse
	shelves          map[string]domain.Shelf
	shelfByBarcode   map[string]string
	products         map[string]domain.Product
	productByBarcode map[string]string
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		warehouses:       make(map[string]domain.Warehouse),
		shelves:          make(map[string]domain.Shelf),
		shelfByBarcode:   make(map[string]string),
		products:         make(map[string]domain.Product),
		productByBarcode: make(map[string]string),
	}
}

// LoadFile reads a YAML seed into a new catalog
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := New()
	for _, w := range f.Warehouses {
		if w.ID == "" {
			return nil, fmt.Errorf("warehouse without id")
		}
		c.warehouses[w.ID] = w
	}
	for _, s := range f.Shelves {
		if _, _, err := c.UpsertShelf(s); err != nil {
			return nil, err
		}
	}
	for _, p := range f.Products {
		if err := c.UpsertProduct(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FindShelf retrieves a shelf by id
func (c *Catalog) FindShelf(ctx context.Context, shelfID string) (*domain.Shelf, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shelves[shelfID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrShelfNotFound, shelfID)
	}
	return &s, nil
}

// FindShelfByBarcode retrieves a shelf by its label barcode
func (c *Catalog) FindShelfByBarcode(ctx context.Context, barcode string) (*domain.Shelf, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.shelfByBarcode[barcode]
	if !ok {
		return nil, fmt.Errorf("%w: barcode %s", domain.ErrShelfNotFound, barcode)
	}
	s := c.shelves[id]
	return &s, nil
}

// ListShelves returns all shelves ordered by id
func (c *Catalog) ListShelves(ctx context.Context) ([]*domain.Shelf, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Shelf, 0, len(c.shelves))
	for _, s := range c.shelves {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClassOf returns the class of shelfID
func (c *Catalog) ClassOf(shelfID string) (domain.ShelfClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shelves[shelfID]
	return s.Class, ok
}

// FindProduct retrieves a product by id
func (c *Catalog) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return &p, nil
}

// FindProductByBarcode retrieves a product by barcode
func (c *Catalog) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.productByBarcode[barcode]
	if !ok {
		return nil, fmt.Errorf("%w: barcode %s", domain.ErrProductNotFound, barcode)
	}
	p := c.products[id]
	return &p, nil
}

// UpsertShelf adds or replaces a shelf. It reports the previous class and
// whether the class changed.
func (c *Catalog) UpsertShelf(s domain.Shelf) (domain.ShelfClass, bool, error) {
	if s.ID == "" || s.Barcode == "" {
		return "", false, fmt.Errorf("%w: shelf needs id and barcode", domain.ErrInvalidShelf)
	}
	if !s.Class.IsValid() {
		return "", false, fmt.Errorf("%w: shelf %s has unknown class %q", domain.ErrInvalidShelf, s.ID, s.Class)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.shelfByBarcode[s.Barcode]; ok && owner != s.ID {
		return "", false, fmt.Errorf("%w: barcode %s already belongs to shelf %s", domain.ErrInvalidShelf, s.Barcode, owner)
	}

	prev, existed := c.shelves[s.ID]
	if existed && prev.Barcode != s.Barcode {
		delete(c.shelfByBarcode, prev.Barcode)
	}
	c.shelves[s.ID] = s
	c.shelfByBarcode[s.Barcode] = s.ID
	return prev.Class, existed && prev.Class != s.Class, nil
}

// RemoveShelf deletes a shelf
func (c *Catalog) RemoveShelf(shelfID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shelves[shelfID]
	if !ok {
		return false
	}
	delete(c.shelves, shelfID)
	delete(c.shelfByBarcode, s.Barcode)
	return true
}

// UpsertProduct adds or replaces a product
func (c *Catalog) UpsertProduct(p domain.Product) error {
	if p.ID == "" || p.Barcode == "" {
		return fmt.Errorf("%w: product needs id and barcode", domain.ErrInvalidProduct)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.productByBarcode[p.Barcode]; ok && owner != p.ID {
		return fmt.Errorf("%w: barcode %s already belongs to product %s", domain.ErrInvalidProduct, p.Barcode, owner)
	}
	if prev, ok := c.products[p.ID]; ok && prev.Barcode != p.Barcode {
		delete(c.productByBarcode, prev.Barcode)
	}
	c.products[p.ID] = p
	c.productByBarcode[p.Barcode] = p.ID
	return nil
}

// Warehouses returns the configured warehouses ordered by id
func (c *Catalog) Warehouses() []domain.Warehouse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Warehouse, 0, len(c.warehouses))
	for _, w := range c.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
