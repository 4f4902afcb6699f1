// Package expediente implements the case-file workflow: creating a case file
// (Drive folder, attachments, index row) and listing the index. It depends on
// the Google clients only through the Index and Store interfaces.
package expediente

import (
	"errors"
	"fmt"
	"strings"
)

// RowWidth is the number of positional fields in an index row.
const RowWidth = 7

// Expediente is one case file as recorded in the index.
type Expediente struct {
	ID       string `json:"id" yaml:"id"`
	Codigo   string `json:"codigo" yaml:"codigo"`
	Nombre   string `json:"nombre" yaml:"nombre"`
	Asunto   string `json:"asunto" yaml:"asunto"`
	Fecha    string `json:"fecha" yaml:"fecha"`
	Notas    string `json:"notas" yaml:"notas"`
	FolderID string `json:"folderId" yaml:"folderId"`
}

// Row returns the index row [id, codigo, nombre, asunto, fecha, notas, folderId].
func (e Expediente) Row() []string {
	return []string{e.ID, e.Codigo, e.Nombre, e.Asunto, e.Fecha, e.Notas, e.FolderID}
}

// FromRow maps an index row to an Expediente. Missing trailing cells are
// treated as empty and cells past RowWidth are ignored.
func FromRow(row []string) Expediente {
	var cells [RowWidth]string
	copy(cells[:], row)

	return Expediente{
		ID:       cells[0],
		Codigo:   cells[1],
		Nombre:   cells[2],
		Asunto:   cells[3],
		Fecha:    cells[4],
		Notas:    cells[5],
		FolderID: cells[6],
	}
}

// FromRows maps index rows in order, dropping rows whose id is empty.
func FromRows(rows [][]string) []Expediente {
	items := make([]Expediente, 0, len(rows))

	for _, row := range rows {
		e := FromRow(row)
		if e.ID == "" {
			continue
		}

		items = append(items, e)
	}

	return items
}

// ErrInvalidInput is returned when a creation request is missing required fields.
var ErrInvalidInput = errors.New("expediente: invalid input")

// Input is a creation request.
type Input struct {
	Codigo      string
	Nombre      string
	Asunto      string
	Fecha       string
	Notas       string
	Attachments []Attachment
}

// normalize trims the text fields and checks the required ones.
func (in Input) normalize() (Input, error) {
	in.Codigo = strings.TrimSpace(in.Codigo)
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Asunto = strings.TrimSpace(in.Asunto)
	in.Notas = strings.TrimSpace(in.Notas)

	var missing []string

	for _, f := range []struct{ name, value string }{
		{"codigo", in.Codigo},
		{"nombre", in.Nombre},
		{"asunto", in.Asunto},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}

	if len(missing) > 0 {
		return in, fmt.Errorf("%w: required field(s) empty: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	for i, a := range in.Attachments {
		if a.Name == "" || a.Open == nil {
			return in, fmt.Errorf("%w: attachment %d has no name or content", ErrInvalidInput, i+1)
		}
	}

	return in, nil
}
