package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

func twoPagePDF(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Award Certificate", true)
	doc.SetAuthor("Academic Office", true)
	doc.SetSubject("Competition", true)
	doc.SetCreator("gofpdf", true)
	doc.SetFont("Arial", "", 16)
	for i := 1; i <= 2; i++ {
		doc.AddPage()
		doc.Cell(40, 10, fmt.Sprintf("Page %d", i))
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractInfoFromBytes(t *testing.T) {
	r := NewRasterizer(logger.NewTestLogger())

	info, err := r.ExtractInfoFromBytes(twoPagePDF(t))

	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
	assert.Equal(t, "Award Certificate", info.Title)
	assert.Equal(t, "Academic Office", info.Author)
	assert.Equal(t, "Competition", info.Subject)
	assert.NotEmpty(t, info.CreatedAt)
}

func TestExtractInfoFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pdf")
	require.NoError(t, os.WriteFile(path, twoPagePDF(t), 0o600))

	info, err := NewRasterizer(logger.NewTestLogger()).ExtractInfo(path)

	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
}

func TestRenderPageAt300DPI(t *testing.T) {
	r := NewRasterizer(logger.NewTestLogger())

	page, err := r.RenderPageFromBytes(twoPagePDF(t), 1)

	require.NoError(t, err)
	assert.Equal(t, 1, page.PageIndex)
	assert.Equal(t, 2, page.PageCount)
	// A4 at 300 DPI
	assert.InDelta(t, 2480, page.Width, 2)
	assert.InDelta(t, 3508, page.Height, 2)
}

func TestRenderPageClampsOutOfRangeIndex(t *testing.T) {
	r := NewRasterizer(logger.NewTestLogger())
	data := twoPagePDF(t)

	for _, idx := range []int{-1, 2, 99} {
		page, err := r.RenderPageFromBytes(data, idx)
		require.NoError(t, err)
		assert.Equal(t, 0, page.PageIndex, "index %d", idx)
	}
}

func TestRenderPageFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pdf")
	require.NoError(t, os.WriteFile(path, twoPagePDF(t), 0o600))

	page, err := NewRasterizer(logger.NewTestLogger()).RenderPage(path, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, page.PageIndex)
	assert.NotNil(t, page.Image)
}

func TestMalformedPDFIsDocumentError(t *testing.T) {
	r := NewRasterizer(logger.NewTestLogger())
	garbage := []byte("this is not a pdf")

	_, err := r.RenderPageFromBytes(garbage, 0)
	var docErr *models.DocumentError
	assert.True(t, errors.As(err, &docErr))

	_, err = r.ExtractInfoFromBytes(garbage)
	assert.True(t, errors.As(err, &docErr))
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 0, ClampPage(-3, 5))
	assert.Equal(t, 4, ClampPage(4, 5))
	assert.Equal(t, 0, ClampPage(5, 5))
}
