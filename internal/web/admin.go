package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Admin renders the list of live rooms and, when a database is configured,
// the most played words.
func Admin(data AdminData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <meta http-equiv="refresh" content="10"/>
    <title>Taboo admin</title>
    <style>
      body { font-family: system-ui, sans-serif; margin: 2rem; }
      table { border-collapse: collapse; margin-bottom: 1.5rem; }
      th, td { border-bottom: 1px solid #ddd; padding: 0.35rem 0.75rem; text-align: left; }
      .muted { color: #777; }
    </style>
  </head>
  <body>
    <h1>Rooms</h1>
    <p class="muted">`)
		b.WriteString(itoa(data.Pagination.Total))
		b.WriteString(` live, generated `)
		b.WriteString(templ.EscapeString(formatTime(data.GeneratedAt)))
		b.WriteString(`</p>
`)
		if len(data.Rooms) == 0 {
			b.WriteString(`    <p>No rooms.</p>
`)
		} else {
			b.WriteString(`    <table>
      <tr><th>Code</th><th>Status</th><th>Owner</th><th>Players</th><th>Online</th><th>Round</th><th>Difficulty</th><th>Created</th><th>Updated</th></tr>
`)
			for _, room := range data.Rooms {
				b.WriteString(`      <tr><td><a href="/api/rooms/`)
				b.WriteString(templ.EscapeString(room.Code))
				b.WriteString(`">`)
				b.WriteString(templ.EscapeString(room.Code))
				b.WriteString(`</a></td><td>`)
				b.WriteString(templ.EscapeString(room.Status))
				b.WriteString(`</td><td>`)
				b.WriteString(templ.EscapeString(room.Owner))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(room.Players) + "/" + itoa(room.MaxPlayers))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(room.Connections))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(room.CurrentRound) + "/" + itoa(room.RoundsTotal))
				b.WriteString(`</td><td>`)
				b.WriteString(templ.EscapeString(room.Difficulty))
				b.WriteString(`</td><td>`)
				b.WriteString(formatTime(room.CreatedAt))
				b.WriteString(`</td><td>`)
				b.WriteString(formatTime(room.UpdatedAt))
				b.WriteString(`</td></tr>
`)
			}
			b.WriteString(`    </table>
`)
		}
		writePagination(&b, data.Pagination)

		if data.Persistent {
			b.WriteString(`    <h2>Words</h2>
`)
			if len(data.Words) == 0 {
				b.WriteString(`    <p>No words played yet.</p>
`)
			} else {
				b.WriteString(`    <table>
      <tr><th>Word</th><th>Category</th><th>Difficulty</th><th>Played</th><th>Guessed</th></tr>
`)
				for _, word := range data.Words {
					b.WriteString(`      <tr><td>`)
					b.WriteString(templ.EscapeString(word.Word))
					b.WriteString(`</td><td>`)
					b.WriteString(templ.EscapeString(word.Category))
					b.WriteString(`</td><td>`)
					b.WriteString(templ.EscapeString(word.Difficulty))
					b.WriteString(`</td><td>`)
					b.WriteString(itoa(word.TimesUsed))
					b.WriteString(`</td><td>`)
					b.WriteString(percent(word.SuccessRate))
					b.WriteString(`</td></tr>
`)
				}
				b.WriteString(`    </table>
`)
			}
		} else {
			b.WriteString(`    <p class="muted">No database configured; nothing is persisted.</p>
`)
		}
		b.WriteString(`  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writePagination(b *strings.Builder, p PaginationData) {
	if p.TotalPages <= 1 {
		return
	}
	b.WriteString(`    <nav>`)
	if p.HasPrev {
		b.WriteString(`<a href="`)
		b.WriteString(templ.EscapeString(pageURL(p.BasePath, p.PrevPage, p.PerPage)))
		b.WriteString(`">prev</a> `)
	}
	b.WriteString(`page ` + itoa(p.Page) + ` of ` + itoa(p.TotalPages))
	if p.HasNext {
		b.WriteString(` <a href="`)
		b.WriteString(templ.EscapeString(pageURL(p.BasePath, p.NextPage, p.PerPage)))
		b.WriteString(`">next</a>`)
	}
	b.WriteString(`</nav>
`)
}
