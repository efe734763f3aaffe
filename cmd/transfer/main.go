// Command transfer validates stock transfer files and creates the
// transfers in Odoo without the web UI.
//
// Usage:
//
//	transfer [-dry-run] [-json] [-xlsx report.xlsx] file.txt...
//
// Settings come from the same environment variables as the server. Logs go
// to stderr; the report goes to stdout. The exit code is 1 when any file is
// invalid or any transfer pass aborted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stocktransfer/internal/config"
	"github.com/JonMunkholm/stocktransfer/internal/core"
	"github.com/JonMunkholm/stocktransfer/internal/erp"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "validate only, do not create transfers")
	asJSON := flag.Bool("json", false, "print the run report as JSON")
	xlsxPath := flag.String("xlsx", "", "also write the run report workbook to this path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.txt...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	locations, err := config.LoadLocations(cfg.Transfer.LocationsFile, cfg.Transfer.SourceLocation)
	if err != nil {
		slog.Error("failed to load locations", "error", err)
		return 2
	}

	files, err := readFiles(flag.Args())
	if err != nil {
		slog.Error("failed to read input", "error", err)
		return 2
	}

	client, err := erp.NewClient(erp.Config{
		URL:      cfg.ERP.URL,
		Database: cfg.ERP.Database,
		Username: cfg.ERP.Username,
		Password: cfg.ERP.Password,
		Timeout:  cfg.ERP.Timeout,
	})
	if err != nil {
		slog.Error("failed to create ERP client", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := client.Login(ctx); err != nil {
		slog.Error("failed to log in to Odoo", "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		return 1
	}

	service, err := core.NewService(client, locations, core.NewMemoryHistory(1), core.OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create service", "error", err)
		return 2
	}

	result, err := service.ProcessFiles(ctx, files, core.ProcessOptions{DryRun: *dryRun})
	if err != nil {
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			slog.Error("failed to write report", "error", err)
			return 1
		}
	} else {
		printRun(os.Stdout, result)
	}

	if *xlsxPath != "" {
		data, err := core.BuildRunXLSX(result)
		if err == nil {
			err = os.WriteFile(*xlsxPath, data, 0o644)
		}
		if err != nil {
			slog.Error("failed to write workbook", "path", *xlsxPath, "error", err)
			return 1
		}
	}

	if !result.OK() {
		return 1
	}
	return 0
}

func readFiles(paths []string) ([]core.NamedFile, error) {
	files := make([]core.NamedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, core.NamedFile{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

// printRun writes a plain text summary of a run.
func printRun(w io.Writer, r *core.Run) {
	mode := "creación"
	if r.DryRun {
		mode = "solo validación"
	}
	fmt.Fprintf(w, "Ejecución %s (%s)\n", r.ID, mode)

	for _, name := range r.Ignored {
		fmt.Fprintf(w, "\n%s: ignorado\n", name)
	}

	for _, f := range r.Files {
		fmt.Fprintf(w, "\n%s\n", f.Name)
		vr := f.Validation
		if vr == nil {
			continue
		}
		for _, e := range vr.Errors {
			fmt.Fprintf(w, "  error: %s\n", e.Message)
		}
		if vr.Valid {
			fmt.Fprintf(w, "  válido, formato %s, %d tiendas\n", vr.Format, len(vr.Batches))
		} else {
			fmt.Fprintf(w, "  inválido, %d filas con errores\n", vr.InvalidItems())
		}
		for _, b := range vr.Batches {
			if b.Error != "" {
				fmt.Fprintf(w, "  %s: %s\n", b.OriginalName, b.Error)
				continue
			}
			for _, it := range b.InvalidItems {
				if err := it.Err(); err != nil {
					fmt.Fprintf(w, "  %s: %v\n", b.OriginalName, err)
				}
			}
		}

		tr := f.Transfer
		if tr == nil {
			continue
		}
		for _, t := range tr.Transfers {
			fmt.Fprintf(w, "  transferencia %d -> %s: %d líneas, %d fallidas\n",
				t.PickingID, t.Location, t.ItemsProcessed, t.ItemsFailed)
		}
		for _, le := range tr.LineErrors {
			fmt.Fprintf(w, "  línea fallida (producto %d): %s\n", le.ProductID, le.Message)
		}
		for _, e := range tr.Errors {
			fmt.Fprintf(w, "  creación interrumpida: %s\n", e.Message)
		}
	}

	valid, invalid, transfers := r.Counts()
	fmt.Fprintf(w, "\nArchivos válidos: %d, inválidos: %d, transferencias: %d\n", valid, invalid, transfers)
}
