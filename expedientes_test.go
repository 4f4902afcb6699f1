package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/expedientes-go/internal/expediente"
	"github.com/tonimelisma/expedientes-go/internal/gapi"
	"github.com/tonimelisma/expedientes-go/internal/ledger"
)

func TestInputFromFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acta.pdf")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o600))

	cmd := newNewCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--codigo", "C1", "--nombre", "N", "--asunto", "A", "--notas", "x", "-f", path,
	}))

	in, err := inputFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "C1", in.Codigo)
	assert.Equal(t, "x", in.Notas)
	require.Len(t, in.Attachments, 1)
	assert.Equal(t, "acta.pdf", in.Attachments[0].Name)
	assert.Equal(t, int64(5), in.Attachments[0].Size)
	assert.Equal(t, "application/pdf", in.Attachments[0].MimeType)
}

func TestInputFromFlags_MissingFile(t *testing.T) {
	cmd := newNewCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--file", filepath.Join(t.TempDir(), "nope.pdf")}))

	_, err := inputFromFlags(cmd)
	require.Error(t, err)
}

func TestPrintExpedientes(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer

	printExpedientes(&buf, []expediente.Expediente{
		{ID: "EXP-1", Codigo: "C1", Nombre: "Juan", Asunto: "A", Fecha: "2024-05-01", FolderID: "F1"},
		{ID: "EXP-2", Codigo: "C2", Nombre: "Ana", Asunto: "B"},
	})

	out := buf.String()
	assert.Contains(t, out, "CODIGO")
	assert.Contains(t, out, "https://drive.google.com/drive/folders/F1")
	assert.Contains(t, out, "EXP-2")
}

func TestPrintResult(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer

	printResult(&buf, &expediente.Result{
		ExpID:    "EXP-1",
		FolderID: "F1",
		Uploaded: []gapi.File{{ID: "x", Name: "a.pdf", Link: "https://drive.example/x"}},
	})

	assert.Equal(t, "Created EXP-1\nFolder:  https://drive.google.com/drive/folders/F1\n  a.pdf  https://drive.example/x\n", buf.String())
}

func TestPrintPending(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer

	printPending(&buf, []expediente.Attachment{
		expediente.BytesAttachment("acta.pdf", make([]byte, 1536), ""),
		expediente.BytesAttachment("foto.jpg", make([]byte, 512), ""),
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Uploading 2 file(s), 2.0 KiB:", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "FILE"))
	assert.Contains(t, lines[2], "acta.pdf")
	assert.True(t, strings.HasSuffix(lines[2], "1.5 KiB"))
	assert.True(t, strings.HasSuffix(lines[3], "512 B"))

	buf.Reset()
	printPending(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestPrintPartial(t *testing.T) {
	var buf bytes.Buffer

	printPartial(&buf, &expediente.PartialError{
		Stage: expediente.StageUpload, ExpID: "EXP-1", FolderID: "F1",
		Uploaded: []gapi.File{{ID: "x"}},
	})
	assert.Contains(t, buf.String(), "1 file(s) uploaded")
	assert.Contains(t, buf.String(), "folders/F1")

	buf.Reset()
	printPartial(&buf, &expediente.PartialError{ExpID: "EXP-1", CleanedUp: true})
	assert.Contains(t, buf.String(), "folder was deleted")
}

func TestPrintOrphans(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer
	printOrphans(&buf, nil)
	assert.Equal(t, "No orphaned case folders.\n", buf.String())

	buf.Reset()
	printOrphans(&buf, []ledger.Entry{
		{ExpID: "EXP-1", Codigo: "C1", Stage: expediente.StageAppend, Uploaded: 2, CreatedAt: time.Now()},
		{ExpID: "EXP-2", Codigo: "C2", Stage: expediente.StageUpload, CreatedAt: time.Now(), ResolvedAt: time.Now()},
	})

	out := buf.String()
	assert.Contains(t, out, "append")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "resolved")
}
