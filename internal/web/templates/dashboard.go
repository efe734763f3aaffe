package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/stocktransfer/internal/core"
)

const timeLayout = "2006-01-02 15:04:05"

// DashboardData is what the home page shows.
type DashboardData struct {
	Runs         []core.RunSummary
	Limiter      core.LimiterStatus
	ERPConnected bool
	ERPDatabase  string
	AllowedExt   string
}

// Dashboard renders the upload form and the recent runs.
func Dashboard(d DashboardData) templ.Component {
	return Layout("Transferencias", templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}

		w.raw("<section><h2>Procesar archivos</h2>")
		w.raw("<p>")
		if d.ERPConnected {
			w.raw("<span class=\"ok\">Conectado a Odoo</span> ")
		} else {
			w.raw("<span class=\"bad\">Sin conexión con Odoo</span> ")
		}
		w.raw("<span class=\"muted\">")
		w.text(d.ERPDatabase)
		w.textf(" - ejecuciones activas: %d/%d", d.Limiter.Active, d.Limiter.MaxConcurrent)
		w.raw("</span></p>")

		w.raw("<form method=\"post\" action=\"/runs\" enctype=\"multipart/form-data\" ")
		w.raw("hx-post=\"/runs\" hx-encoding=\"multipart/form-data\" hx-target=\"#result\" hx-indicator=\"#busy\">")
		w.raw("<input type=\"file\" name=\"files\" multiple accept=\"")
		w.text(d.AllowedExt)
		w.raw("\" required> ")
		w.raw("<label><input type=\"checkbox\" name=\"dry_run\" value=\"true\"> Solo validar</label> ")
		w.raw("<button type=\"submit\">Procesar</button> ")
		w.raw("<span id=\"busy\" class=\"htmx-indicator muted\">Procesando...</span>")
		w.raw("</form><p class=\"muted\">Solo se procesan archivos ")
		w.text(d.AllowedExt)
		w.raw("; los demás se ignoran.</p><div id=\"result\"></div></section>")

		w.raw("<section><h2>Ejecuciones recientes</h2>")
		w.render(ctx, RunList(d.Runs))
		w.raw("</section>")
		return w.err
	}))
}

// RunList renders run summaries as a table.
func RunList(runs []core.RunSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		if len(runs) == 0 {
			w.raw("<p class=\"muted\">Todavía no hay ejecuciones.</p>")
			return w.err
		}
		w.raw("<table><thead><tr><th>Inicio</th><th>Estado</th><th>Archivos</th><th>Con errores</th>")
		w.raw("<th>Transferencias</th><th>Ignorados</th><th></th></tr></thead><tbody>")
		for _, r := range runs {
			w.raw("<tr><td>")
			w.text(r.StartedAt.Format(timeLayout))
			w.raw("</td><td>")
			status(w, r.OK, r.DryRun)
			w.rawf("</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td>", r.Files, r.InvalidFiles, r.Transfers, r.Ignored)
			w.raw("<td><a href=\"")
			w.text(string(templ.URL("/runs/" + r.ID.String())))
			w.raw("\">Ver</a></td></tr>")
		}
		w.raw("</tbody></table>")
		return w.err
	})
}

func status(w *writer, ok, dryRun bool) {
	switch {
	case ok && dryRun:
		w.raw("<span class=\"ok\">Válido</span> <span class=\"badge\">solo validación</span>")
	case ok:
		w.raw("<span class=\"ok\">Completado</span>")
	default:
		w.raw("<span class=\"bad\">Con errores</span>")
	}
}
