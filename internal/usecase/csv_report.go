package usecase

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/user/linkchecker-service/internal/entity"
)

var csvHeader = []string{
	"Link",
	"Type",
	"Code",
	"Status Message",
	"Page",
	"Page Path",
	"Component Name",
	"Component Type",
	"Property Location",
}

// BuildCSVReport renders rows as the downloadable report.
func BuildCSVReport(rows []entity.GridResource) []byte {
	var buf bytes.Buffer
	writeCSVLine(&buf, csvHeader)
	for _, r := range rows {
		writeCSVLine(&buf, []string{
			r.Link.Href,
			r.Link.TypeName(),
			strconv.Itoa(r.Link.Status.Code),
			r.Link.Status.Message,
			r.PageName(),
			r.PagePath(),
			r.ComponentName(),
			r.ResourceType,
			r.Location().String(),
		})
	}
	return buf.Bytes()
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(csvField(f))
	}
	buf.WriteString("\r\n")
}

// csvField quotes values holding a separator, a quote or a line break. The
// semicolon counts as a separator for spreadsheet locales that use it.
func csvField(f string) string {
	if !strings.ContainsAny(f, ",;\"\r\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

var updatedItemsHeader = []string{"Link", "Updated Link", "Location"}

// BuildUpdatedItemsCSV renders the outcome of a replacement by pattern.
func BuildUpdatedItemsCSV(items []UpdatedItem) []byte {
	var buf bytes.Buffer
	writeCSVLine(&buf, updatedItemsHeader)
	for _, it := range items {
		loc := entity.Location{ResourcePath: it.ResourcePath, PropertyName: it.PropertyName}
		writeCSVLine(&buf, []string{it.CurrentLink, it.UpdatedLink, loc.String()})
	}
	return buf.Bytes()
}
