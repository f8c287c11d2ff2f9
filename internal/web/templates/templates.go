// Package templates holds the HTML components of the conversion UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// UploadPageData configures the upload page.
type UploadPageData struct {
	MaxFileSize   int64
	ImportEnabled bool
	CamelCase     bool
	AddID         bool
	Pretty        bool
	HeaderRow     int
}

// UploadPage renders the single-page converter: a file picker, the
// conversion options, and a result pane filled by the inline script.
func UploadPage(data UploadPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Sheet to JSON</title>`)
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:56rem;margin:2rem auto;padding:0 1rem}`)
		b.WriteString(`fieldset{margin:1rem 0}label{display:block;margin:.25rem 0}`)
		b.WriteString(`pre{background:#f4f4f5;padding:1rem;overflow:auto;max-height:32rem}`)
		b.WriteString(`.alert{border:1px solid #dc2626;background:#fef2f2;padding:.75rem;margin:1rem 0}</style>`)
		b.WriteString(`</head><body><h1>Sheet to JSON</h1>`)

		fmt.Fprintf(&b, `<p>Upload an .xlsx or .csv file (up to %s).</p>`, templ.EscapeString(formatBytes(data.MaxFileSize)))
		b.WriteString(`<form id="convert-form" enctype="multipart/form-data">`)
		b.WriteString(`<input type="file" name="file" accept=".xlsx,.xlsm,.xltx,.xltm,.csv,.txt" required>`)

		b.WriteString(`<fieldset><legend>Options</legend>`)
		b.WriteString(`<label>Sheet <input type="text" name="sheet" placeholder="first sheet"></label>`)
		b.WriteString(`<label><input type="checkbox" name="all_sheets" value="true"> All sheets</label>`)
		fmt.Fprintf(&b, `<label>Header row <input type="number" name="header" min="0" value="%d"></label>`, data.HeaderRow)
		writeCheckbox(&b, "camel_case", "camelCase keys", data.CamelCase)
		writeCheckbox(&b, "add_id", "Add id column", data.AddID)
		writeCheckbox(&b, "pretty", "Pretty print", data.Pretty)
		b.WriteString(`</fieldset>`)

		b.WriteString(`<button type="submit" formaction="/api/convert">Convert</button> `)
		b.WriteString(`<button type="submit" formaction="/api/sheets">List sheets</button>`)
		if data.ImportEnabled {
			b.WriteString(` <button type="submit" formaction="/api/import">Import</button>`)
		}
		b.WriteString(`</form><div id="error"></div><pre id="result"></pre>`)

		b.WriteString(`<script>
document.getElementById("convert-form").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const form = ev.target;
  const target = ev.submitter ? ev.submitter.formAction : "/api/convert";
  const errBox = document.getElementById("error");
  const out = document.getElementById("result");
  errBox.innerHTML = "";
  out.textContent = "Working...";
  const resp = await fetch(target, {method: "POST", body: new FormData(form), headers: {"HX-Request": "true"}});
  const text = await resp.text();
  if (!resp.ok) { out.textContent = ""; errBox.innerHTML = text; return; }
  out.textContent = text;
});
</script></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders an error fragment with the message, the suggested
// action and the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert" role="alert"><strong>`)
		b.WriteString(templ.EscapeString(message))
		b.WriteString(`</strong>`)
		if action != "" {
			b.WriteString(`<p>`)
			b.WriteString(templ.EscapeString(action))
			b.WriteString(`</p>`)
		}
		fmt.Fprintf(&b, `<small>Code: %s</small></div>`, templ.EscapeString(code))

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeCheckbox(b *strings.Builder, name, label string, checked bool) {
	attr := ""
	if checked {
		attr = " checked"
	}
	// The hidden input submits "false" when the box is unchecked.
	fmt.Fprintf(b, `<input type="hidden" name="%s" value="false">`, name)
	fmt.Fprintf(b, `<label><input type="checkbox" name="%s" value="true"%s> %s</label>`,
		name, attr, templ.EscapeString(label))
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
