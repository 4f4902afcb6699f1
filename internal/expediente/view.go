package expediente

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FolderURLPrefix is the web address of a Drive folder without its id.
const FolderURLPrefix = "https://drive.google.com/drive/folders/"

// FolderLink returns the browser link for a case folder, or "" when the case
// file has no folder.
func FolderLink(folderID string) string {
	if folderID == "" {
		return ""
	}

	return FolderURLPrefix + folderID
}

// foldKey normalizes s for caseless matching: NFC composition followed by
// Unicode case folding, so "REVISIÓN" matches "revisión" whether or not the
// accent was typed as a combining mark.
func foldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Filter keeps the case files whose codigo, nombre or asunto contains query,
// ignoring case. An empty or blank query keeps everything. Order is preserved.
func Filter(items []Expediente, query string) []Expediente {
	q := foldKey(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(items)
	}

	out := make([]Expediente, 0, len(items))

	for _, e := range items {
		if strings.Contains(foldKey(e.Codigo), q) ||
			strings.Contains(foldKey(e.Nombre), q) ||
			strings.Contains(foldKey(e.Asunto), q) {
			out = append(out, e)
		}
	}

	return out
}

// SortByFechaDesc returns a copy ordered by fecha descending using plain
// string comparison, which is chronological for YYYY-MM-DD dates. Ties keep
// index order.
func SortByFechaDesc(items []Expediente) []Expediente {
	out := slices.Clone(items)

	slices.SortStableFunc(out, func(a, b Expediente) int {
		return strings.Compare(b.Fecha, a.Fecha)
	})

	return out
}
