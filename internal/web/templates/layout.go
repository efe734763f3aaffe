// Package templates holds the HTML components of the web UI.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const htmxSrc = "https://unpkg.com/htmx.org@1.9.12"

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1f2933}
header{background:#1f2933;color:#fff;padding:12px 24px}
header a{color:#fff;text-decoration:none;font-weight:600}
main{max-width:1100px;margin:24px auto;padding:0 16px}
section{background:#fff;border-radius:6px;padding:16px 20px;margin-bottom:16px;box-shadow:0 1px 2px rgba(0,0,0,.08)}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border-bottom:1px solid #e4e7eb;padding:6px 8px;text-align:left;vertical-align:top}
.ok{color:#18794e}.bad{color:#c62828}.muted{color:#7b8794}
.alert{border-left:4px solid #c62828;background:#fdecea;padding:10px 14px;margin:8px 0}
.badge{display:inline-block;border-radius:3px;padding:1px 6px;font-size:12px;background:#e4e7eb}
`

// writer accumulates the first write error so components can emit markup
// without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// rawf writes formatted markup; args must not carry user input.
func (w *writer) rawf(format string, args ...any) {
	w.raw(fmt.Sprintf(format, args...))
}

// text writes s HTML-escaped.
func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) textf(format string, args ...any) {
	w.text(fmt.Sprintf(format, args...))
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("<!DOCTYPE html><html lang=\"es\"><head><meta charset=\"utf-8\">")
		w.raw("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		w.raw("<title>")
		w.text(title)
		w.raw("</title><style>" + styles + "</style>")
		w.raw("<script src=\"" + htmxSrc + "\"></script></head><body>")
		w.raw("<header><a href=\"/\">Transferencias de inventario</a></header><main>")
		w.render(ctx, body)
		w.raw("</main></body></html>")
		return w.err
	})
}

// ErrorAlert renders an error box for HTMX targets.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("<div class=\"alert\" role=\"alert\"><strong>")
		w.text(message)
		w.raw("</strong>")
		if action != "" {
			w.raw("<div>")
			w.text(action)
			w.raw("</div>")
		}
		if code != "" {
			w.raw("<div class=\"muted\">Código: ")
			w.text(code)
			w.raw("</div>")
		}
		w.raw("</div>")
		return w.err
	})
}
