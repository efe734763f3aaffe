package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stocktransfer/internal/core"
)

func TestPrintRun(t *testing.T) {
	r := &core.Run{
		ID:      uuid.New(),
		DryRun:  false,
		Ignored: []string{"notas.csv"},
		Files: []core.FileReport{
			{
				Name: "tiendas.txt",
				Validation: &core.ValidationResult{
					Valid:  true,
					Format: core.FormatA,
					Batches: []*core.LocationBatch{{
						Location: "BELLA VISTA", OriginalName: "BELLA VISTA", Valid: true,
					}},
				},
				Transfer: &core.TransferResult{
					Success:    true,
					Transfers:  []core.TransferInfo{{PickingID: 101, Location: "BELLA VISTA", ItemsProcessed: 2, ItemsFailed: 1}},
					LineErrors: []core.LineError{{PickingID: 101, ProductID: 2, Message: "erp: Access Denied (code 200)"}},
				},
			},
			{
				Name: "malo.txt",
				Validation: &core.ValidationResult{
					Batches: []*core.LocationBatch{{
						Location: "NOWHERE", OriginalName: "NOWHERE", Error: "Ubicación no válida: NOWHERE",
					}, {
						Location: "PARK PLAZA", OriginalName: "PARK PLAZA",
						InvalidItems: []*core.ItemValidation{{Row: 3, Errors: []string{"Producto no encontrado: 999"}}},
					}},
				},
			},
		},
	}

	var buf bytes.Buffer
	printRun(&buf, r)
	out := buf.String()

	for _, want := range []string{
		"notas.csv: ignorado",
		"válido, formato FORMATO1, 1 tiendas",
		"transferencia 101 -> BELLA VISTA: 2 líneas, 1 fallidas",
		"línea fallida (producto 2)",
		"NOWHERE: Ubicación no válida: NOWHERE",
		"PARK PLAZA: Línea 3: Producto no encontrado: 999",
		"Archivos válidos: 1, inválidos: 1, transferencias: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiendas.txt")
	if err := os.WriteFile(path, []byte("COD_BARRA;CANTIDAD;TIENDA\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	files, err := readFiles([]string{path})
	if err != nil {
		t.Fatalf("readFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Name != "tiendas.txt" {
		t.Errorf("files = %+v", files)
	}

	_, err = readFiles([]string{filepath.Join(dir, "missing.txt")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("readFiles(missing) error = %v, want not exist", err)
	}
}
