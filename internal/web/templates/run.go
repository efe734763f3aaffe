package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/stocktransfer/internal/core"
)

// RunPage renders a full page for one run.
func RunPage(run *core.Run) templ.Component {
	return Layout("Ejecución "+run.ID.String(), RunResult(run))
}

// RunResult renders the outcome of a run: one section per file with its
// locations, rejected rows and created transfers.
func RunResult(run *core.Run) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		valid, invalid, transfers := run.Counts()

		w.raw("<section><h2>Resultado ")
		status(w, run.OK(), run.DryRun)
		w.raw("</h2><p class=\"muted\">")
		w.text(run.StartedAt.Format(timeLayout))
		w.rawf(" - %d válidos, %d con errores, %d transferencias creadas", valid, invalid, transfers)
		w.raw("</p><p>")
		base := "/runs/" + run.ID.String()
		w.raw("<a href=\"")
		w.text(string(templ.URL(base + "/report.xlsx")))
		w.raw("\">Descargar Excel</a> | <a href=\"")
		w.text(string(templ.URL(base + "/report.pdf")))
		w.raw("\">Descargar PDF</a> | <a href=\"")
		w.text(string(templ.URL("/runs/" + run.ID.String())))
		w.raw("\">Enlace permanente</a></p>")
		if len(run.Ignored) > 0 {
			w.raw("<p class=\"muted\">Archivos ignorados: ")
			w.text(strings.Join(run.Ignored, ", "))
			w.raw("</p>")
		}
		w.raw("</section>")

		for i := range run.Files {
			fileSection(w, &run.Files[i])
		}
		return w.err
	})
}

func fileSection(w *writer, f *core.FileReport) {
	vr := f.Validation
	w.raw("<section><h3>")
	w.text(f.Name)
	w.raw(" ")
	if f.OK() {
		w.raw("<span class=\"ok\">✓</span>")
	} else {
		w.raw("<span class=\"bad\">✗</span>")
	}
	w.raw("</h3>")
	if vr == nil {
		w.raw("</section>")
		return
	}

	if vr.Format != "" {
		w.raw("<p class=\"muted\">Formato ")
		w.text(string(vr.Format))
		w.rawf(" - %d registros</p>", vr.TotalItems)
	}
	for _, e := range vr.Errors {
		w.raw("<div class=\"alert\">")
		w.text(e.Message)
		if e.Details != "" {
			w.raw("<div class=\"muted\">")
			w.text(e.Details)
			w.raw("</div>")
		}
		w.raw("</div>")
	}

	if len(vr.Batches) > 0 {
		w.raw("<table><thead><tr><th>Ubicación</th><th>Total</th><th>Válidos</th><th>Con errores</th><th>Detalle</th></tr></thead><tbody>")
		for _, b := range vr.Batches {
			w.raw("<tr><td>")
			w.text(b.OriginalName)
			if b.Location != b.OriginalName {
				w.raw(" <span class=\"muted\">→ ")
				w.text(b.Location)
				w.raw("</span>")
			}
			w.rawf("</td><td>%d</td><td>%d</td><td>%d</td><td>", b.TotalItems, len(b.ValidItems), len(b.InvalidItems))
			if b.Error != "" {
				w.raw("<span class=\"bad\">")
				w.text(b.Error)
				w.raw("</span>")
			}
			for _, item := range b.InvalidItems {
				w.raw("<div>")
				if err := item.Err(); err != nil {
					w.text(err.Error())
				}
				w.raw("</div>")
			}
			w.raw("</td></tr>")
		}
		w.raw("</tbody></table>")
	}

	if tr := f.Transfer; tr != nil {
		w.raw("<h4>Transferencias</h4><ul>")
		for _, t := range tr.Transfers {
			w.rawf("<li>#%d ", t.PickingID)
			w.text(t.OriginalName)
			w.rawf(": %d productos", t.ItemsProcessed)
			if t.ItemsFailed > 0 {
				w.rawf(", <span class=\"bad\">%d fallidos</span>", t.ItemsFailed)
			}
			w.raw("</li>")
		}
		w.raw("</ul>")
		for _, le := range tr.LineErrors {
			w.rawf("<div class=\"muted\">Transferencia #%d, producto %d: ", le.PickingID, le.ProductID)
			w.text(le.Message)
			w.raw("</div>")
		}
		for _, e := range tr.Errors {
			w.raw("<div class=\"alert\">")
			w.text(e.Message)
			w.raw("</div>")
		}
	}
	w.raw("</section>")
}
