package core

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/stocktransfer/internal/config"
	"github.com/JonMunkholm/stocktransfer/internal/erp"
)

// fakeERP is an in-memory ERP. Products are keyed by field and value.
type fakeERP struct {
	mu       sync.Mutex
	products map[string]*erp.ProductRef

	searchErr  error
	pickingErr error
	// moveErrs fails moves for the given product ids.
	moveErrs map[int64]error
	// onMove runs after every move, successful or not.
	onMove func()

	searches []string
	pickings []erp.PickingRequest
	moves    []erp.MoveRequest
	nextID   int64
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		products: map[string]*erp.ProductRef{},
		moveErrs: map[int64]error{},
		nextID:   100,
	}
}

func (f *fakeERP) add(field, value string, p *erp.ProductRef) {
	f.products[field+"="+value] = p
}

func (f *fakeERP) SearchProduct(_ context.Context, field, value string) (*erp.ProductRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, field+"="+value)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.products[field+"="+value], nil
}

func (f *fakeERP) CreatePicking(_ context.Context, p erp.PickingRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pickingErr != nil {
		return 0, f.pickingErr
	}
	f.pickings = append(f.pickings, p)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeERP) CreateMove(ctx context.Context, m erp.MoveRequest) (int64, error) {
	f.mu.Lock()
	err := f.moveErrs[m.ProductID]
	if err == nil {
		// Like the HTTP client, a done context fails the call.
		err = ctx.Err()
	}
	if err == nil {
		f.moves = append(f.moves, m)
		f.nextID++
	}
	id := f.nextID
	hook := f.onMove
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

var errERPDown = errors.New("erp: common.login: dial tcp: connection refused")

// testLocations has a source warehouse, two stores and one alias.
func testLocations() *config.Locations {
	return &config.Locations{
		Source: "BODEGA",
		Locations: map[string]int64{
			"BODEGA":      8,
			"BELLA VISTA": 20,
			"PARK PLAZA":  21,
			"SIN TIPO":    22,
		},
		PickingTypes: map[string]int64{
			"BODEGA":      1,
			"BELLA VISTA": 30,
			"PARK PLAZA":  31,
		},
		Aliases: map[string]string{
			"PARK PLAZA MALL": "PARK PLAZA",
		},
	}
}

// testCatalog knows a few products by barcode and one by internal reference.
func testCatalog() *fakeERP {
	f := newFakeERP()
	f.add(erp.FieldBarcode, "12345", &erp.ProductRef{ID: 1, Name: "Camisa azul", UomID: 1, UomName: "Units"})
	f.add(erp.FieldBarcode, "777", &erp.ProductRef{ID: 2, Name: "Pantalón", UomID: 1, UomName: "Units"})
	f.add(erp.FieldDefaultCode, "REF-9", &erp.ProductRef{ID: 3, Name: "Cinturón", UomID: 4, UomName: "Dozens"})
	return f
}
