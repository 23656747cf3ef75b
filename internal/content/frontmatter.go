package content

import (
	"strings"
	"time"

	"github.com/dshills/memex-mcp/pkg/types"
)

const dateLayout = "2006-01-02"

// frontmatter is the header written at the top of every managed file
type frontmatter struct {
	UUID    string
	Title   string
	Kind    types.Kind
	Tags    []string
	Date    time.Time
	Updated bool // write "updated:" instead of "created:"
}

func (f frontmatter) render(body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("uuid: " + f.UUID + "\n")
	b.WriteString(`title: "` + f.Title + "\"\n")
	b.WriteString("type: " + string(f.Kind) + "\n")

	quoted := make([]string, len(f.Tags))
	for i, t := range f.Tags {
		quoted[i] = `"` + strings.TrimSpace(t) + `"`
	}
	b.WriteString("tags: [" + strings.Join(quoted, ", ") + "]\n")

	if f.Updated {
		b.WriteString("updated: " + f.Date.Format(dateLayout) + "\n")
	} else {
		b.WriteString("created: " + f.Date.Format(dateLayout) + "\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String()
}
