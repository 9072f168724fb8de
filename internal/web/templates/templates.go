// Package templates holds the server-rendered HTML components.
//
// Components are templ.Components built with templ.ComponentFunc. All
// dynamic text goes through templ.EscapeString.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/mediadata/internal/tabular"
)

// Page wraps body in the site layout.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem auto;max-width:960px;padding:0 1rem}
table{border-collapse:collapse;width:100%%}td,th{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}
pre{background:#f6f6f6;padding:1rem;overflow:auto}.alert{border:1px solid #c00;background:#fee;padding:.75rem;margin:1rem 0}
form.inline{display:inline}
</style>
</head>
<body>
<h1><a href="/">Media Data</a></h1>
`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n</body>\n</html>\n")
		return err
	})
}

// Home is the upload form.
func Home() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<form method="post" action="/upload" enctype="multipart/form-data">
<p><label>Image or video <input type="file" name="file" accept="image/*,video/*" required></label></p>
<p><label>Instructions (optional)<br><textarea name="instructions" rows="4" cols="60"></textarea></label></p>
<p><label><input type="checkbox" name="auto_crop" value="true"> Trim white borders</label></p>
<p><button type="submit">Analyze</button></p>
</form>`)
		return err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, ` %s`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, ` <small>(Code: %s)</small></div>`, templ.EscapeString(code))
		return err
	})
}

// SessionData is what the session page shows.
type SessionData struct {
	ID        string
	FileName  string
	MediaType string
	Model     string
	BlobURL   string
	Preview   string // redacted payload as indented JSON
	Table     *tabular.Table
	Notice    string
}

// Session renders an analysis: the redacted result, then the editable
// table once it has been built.
func Session(d SessionData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		base := "/session/" + d.ID
		var b writer
		b.w = w

		b.printf(`<h2>%s</h2>`, templ.EscapeString(d.FileName))
		b.printf(`<p>%s analyzed by <code>%s</code>`, templ.EscapeString(d.MediaType), templ.EscapeString(d.Model))
		if d.BlobURL != "" {
			b.printf(` &middot; <a href="%s">stored media</a>`, templ.EscapeString(d.BlobURL))
		}
		b.printf(`</p>`)
		if d.Notice != "" {
			b.printf(`<p><em>%s</em></p>`, templ.EscapeString(d.Notice))
		}
		b.printf(`<h3>Result</h3><pre>%s</pre>`, templ.EscapeString(d.Preview))
		b.printf(`<form method="post" action="%s/table"><button type="submit">View Analysis</button></form>`, base)

		if d.Table != nil {
			b.printf(`<h3>Table</h3><table><thead><tr><th>#</th>`)
			for _, h := range d.Table.Headers {
				b.printf(`<th>%s</th>`, templ.EscapeString(h))
			}
			b.printf(`</tr></thead><tbody>`)
			for i, row := range d.Table.Rows {
				b.printf(`<tr><td>%d</td>`, i+1)
				for _, h := range d.Table.Headers {
					b.printf(`<td><form class="inline" method="post" action="%s/cell">`+
						`<input type="hidden" name="row" value="%s">`+
						`<input type="hidden" name="header" value="%s">`+
						`<input name="value" value="%s"> <button type="submit">Save</button></form></td>`,
						base, strconv.Itoa(i), templ.EscapeString(h), templ.EscapeString(row.Get(h)))
				}
				b.printf(`</tr>`)
			}
			b.printf(`</tbody></table>`)
			b.printf(`<p><a href="/api/session/%s/export.csv">Download CSV</a> &middot; `+
				`<a href="/api/session/%s/export.xlsx">Download XLSX</a></p>`, d.ID, d.ID)
			b.printf(`<form method="post" action="%s/sync"><button type="submit">Sync to portal</button></form>`, base)
		}
		return b.err
	})
}

// writer keeps the first write error so markup can be emitted without
// checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (b *writer) printf(format string, args ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, args...)
}
