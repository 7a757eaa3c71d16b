package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

//go:embed schema.cue
var schemaSource []byte

// File is a catalog import document. Categories and products refer to each
// other by name so files can be written by hand.
type File struct {
	Categories []CategoryEntry `json:"categories"`
	Products   []ProductEntry  `json:"products"`
	Customers  []CustomerEntry `json:"customers"`
	Discounts  []DiscountEntry `json:"discounts"`
}

type CategoryEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ProductEntry struct {
	Name      string `json:"name"`
	Barcode   string `json:"barcode"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	CostPrice *int64 `json:"cost_price"`
	Stock     *int64 `json:"stock"`
	MinStock  *int64 `json:"min_stock"`
	Active    *bool  `json:"active"`
}

type CustomerEntry struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type DiscountEntry struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	MinPurchase *int64 `json:"min_purchase"`
	MaxDiscount *int64 `json:"max_discount"`
	UsageLimit  *int64 `json:"usage_limit"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Active      *bool  `json:"active"`
}

// ImportReport counts the records written by an import.
type ImportReport struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
	Customers  int `json:"customers"`
	Discounts  int `json:"discounts"`
}

// ImportError reports an import file that does not match the catalog schema.
type ImportError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ImportError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	ie := &ImportError{Field: "catalog", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ie.Field = strings.Join(path, ".")
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ie.Pos = positions[0]
	}
	return ie
}

func invalidFile(err error) error {
	e := domain.NewValidationError(domain.CodeInvalidInput, "invalid catalog file")
	e.Err = err
	return e
}

// LoadFile reads and validates a catalog file. YAML (.yaml, .yml) and CUE
// (.cue) files are accepted.
func LoadFile(path string) (File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read catalog file: %w", err)
	}

	cctx := cuecontext.New()
	var data cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(src, &doc); err != nil {
			return File{}, invalidFile(fmt.Errorf("failed to parse YAML: %w", err))
		}
		if doc == nil {
			doc = map[string]any{}
		}
		data = cctx.Encode(doc)
	case ".cue":
		data = cctx.CompileBytes(src, cue.Filename(path))
	default:
		return File{}, domain.NewValidationError(domain.CodeInvalidInput, "catalog file must be .yaml, .yml or .cue").
			With("path", path)
	}
	if err := data.Err(); err != nil {
		return File{}, invalidFile(formatCUEError(err))
	}
	return decodeCatalog(cctx, data)
}

func decodeCatalog(cctx *cue.Context, data cue.Value) (File, error) {
	schema := cctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return File{}, fmt.Errorf("catalog schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return File{}, invalidFile(formatCUEError(err))
	}
	var f File
	if err := v.Decode(&f); err != nil {
		return File{}, invalidFile(formatCUEError(err))
	}
	return f, nil
}

// Import loads a catalog file and upserts its contents in one transaction.
// Categories match by name, products by barcode (or name when they have
// none), customers by phone (or name) and discounts by code. Every write is
// queued for sync.
func (s *Service) Import(ctx context.Context, path string) (ImportReport, error) {
	f, err := LoadFile(path)
	if err != nil {
		return ImportReport{}, err
	}
	return s.Apply(ctx, f)
}

// Apply upserts an already decoded catalog file.
func (s *Service) Apply(ctx context.Context, f File) (ImportReport, error) {
	var report ImportReport
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		report = ImportReport{}
		categories := make(map[string]string)
		for _, e := range f.Categories {
			id, err := s.importCategory(ctx, tx, e, now)
			if err != nil {
				return err
			}
			categories[e.Name] = id
			report.Categories++
		}
		for _, e := range f.Products {
			if err := s.importProduct(ctx, tx, e, categories, now); err != nil {
				return err
			}
			report.Products++
		}
		for _, e := range f.Customers {
			if err := s.importCustomer(ctx, tx, e, now); err != nil {
				return err
			}
			report.Customers++
		}
		for _, e := range f.Discounts {
			if err := s.importDiscount(ctx, tx, e, now); err != nil {
				return err
			}
			report.Discounts++
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, domain.AsPersistence("import catalog", err)
	}
	s.logger.Info("catalog imported",
		"categories", report.Categories,
		"products", report.Products,
		"customers", report.Customers,
		"discounts", report.Discounts)
	return report, nil
}

func (s *Service) importCategory(ctx context.Context, tx *store.Tx, e CategoryEntry, now time.Time) (string, error) {
	existing, ok, err := store.FirstAs[domain.Category](ctx, tx, store.Query{
		Collection: domain.CollectionCategories,
		Where:      []store.Predicate{store.Equals{Field: "name", Value: e.Name}},
	})
	if err != nil {
		return "", err
	}
	if !ok {
		c, err := s.createCategory(ctx, tx, e.Name, e.Color, now)
		return c.ID, err
	}
	if e.Color != "" && e.Color != existing.Color {
		existing.Color = e.Color
		if err := save(ctx, tx, domain.CollectionCategories, false, existing, now); err != nil {
			return "", err
		}
	}
	return existing.ID, nil
}

// categoryID resolves a category name from this file or the store.
func categoryID(ctx context.Context, tx *store.Tx, name string, imported map[string]string) (*string, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := imported[name]; ok {
		return &id, nil
	}
	c, ok, err := store.FirstAs[domain.Category](ctx, tx, store.Query{
		Collection: domain.CollectionCategories,
		Where:      []store.Predicate{store.Equals{Field: "name", Value: name}},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewValidationError(domain.CodeInvalidInput, "unknown category").With("category", name)
	}
	return &c.ID, nil
}

func (s *Service) importProduct(ctx context.Context, tx *store.Tx, e ProductEntry, categories map[string]string, now time.Time) error {
	var (
		existing domain.Product
		err      error
	)
	if e.Barcode != "" {
		existing, _, err = store.ProductByBarcode(ctx, tx, e.Barcode)
	} else {
		existing, _, err = store.FirstAs[domain.Product](ctx, tx, store.Query{
			Collection: domain.CollectionProducts,
			Where: []store.Predicate{
				store.Equals{Field: "name", Value: e.Name},
				store.Equals{Field: "barcode", Value: nil},
			},
		})
	}
	if err != nil {
		return err
	}

	p := existing
	p.Name = e.Name
	p.Price = e.Price
	if e.Barcode != "" {
		p.Barcode = &e.Barcode
	}
	if p.CategoryID, err = categoryID(ctx, tx, e.Category, categories); err != nil {
		return err
	}
	if e.CostPrice != nil {
		p.CostPrice = e.CostPrice
	}
	if e.Stock != nil {
		p.Stock = *e.Stock
	}
	if e.MinStock != nil {
		p.MinStock = *e.MinStock
	}
	if err := s.saveProduct(ctx, tx, &p, now); err != nil {
		return err
	}
	if e.Active != nil && *e.Active != p.IsActive {
		p.IsActive = *e.Active
		return save(ctx, tx, domain.CollectionProducts, false, p, now)
	}
	return nil
}

func (s *Service) importCustomer(ctx context.Context, tx *store.Tx, e CustomerEntry, now time.Time) error {
	key := store.Predicate(store.Equals{Field: "name", Value: e.Name})
	if e.Phone != "" {
		key = store.Equals{Field: "phone", Value: e.Phone}
	}
	c, found, err := store.FirstAs[domain.Customer](ctx, tx, store.Query{
		Collection: domain.CollectionCustomers,
		Where:      []store.Predicate{key},
	})
	if err != nil {
		return err
	}
	isNew := !found
	if isNew {
		c = domain.Customer{ID: s.ids.NewID(), CreatedAt: domain.FormatTime(now)}
	}
	c.Name = e.Name
	c.Phone = trimmed(&e.Phone)
	c.Email = trimmed(&e.Email)
	c.Address = trimmed(&e.Address)
	c.UpdatedAt = domain.FormatTime(now)
	return save(ctx, tx, domain.CollectionCustomers, isNew, c, now)
}

func (s *Service) importDiscount(ctx context.Context, tx *store.Tx, e DiscountEntry, now time.Time) error {
	d := domain.Discount{
		Code:        discount.NormalizeCode(e.Code),
		Name:        e.Name,
		Type:        domain.DiscountType(e.Type),
		Value:       e.Value,
		MinPurchase: e.MinPurchase,
		MaxDiscount: e.MaxDiscount,
		UsageLimit:  e.UsageLimit,
		StartDate:   trimmed(&e.StartDate),
		EndDate:     trimmed(&e.EndDate),
		IsActive:    e.Active == nil || *e.Active,
	}
	if d.Code != "" {
		existing, ok, err := store.DiscountByCode(ctx, tx, d.Code)
		if err != nil {
			return err
		}
		if ok {
			d.ID = existing.ID
		}
	}
	if err := validateDiscount(d); err != nil {
		return err
	}
	return s.saveDiscount(ctx, tx, &d, now)
}
