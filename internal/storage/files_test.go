package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
)

func newDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	d.now = func() time.Time { return time.UnixMilli(1760601600000) }
	return d
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"red mug.png":           "red-mug.png",
		"  lots   of\tspace.jpg": "lots-of-space.jpg",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\proof.pdf`: "proof.pdf",
		"":                      "upload",
		"   ":                   "upload",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}

func TestSaveWritesFileUnderTimestampedName(t *testing.T) {
	d := newDisk(t)

	ref, err := d.Save(ProductImage, "red mug.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/1760601600000-red-mug.png", ref)

	data, err := os.ReadFile(filepath.Join(d.Dir(), "1760601600000-red-mug.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestSaveAvoidsCollisions(t *testing.T) {
	d := newDisk(t)

	first, err := d.Save(ProductImage, "a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	second, err := d.Save(ProductImage, "a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "/uploads/1760601600000-1-a.png", second)
}

func TestSaveEnforcesLimits(t *testing.T) {
	d := newDisk(t)

	_, err := d.Save(ProductImage, "doc.pdf", bytes.NewReader(pdfBytes))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = d.Save(ProductImage, "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	small := Kind{Name: "image", MaxBytes: 8, Allowed: ProductImage.Allowed}
	_, err = d.Save(small, "big.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveAcceptsPDFProof(t *testing.T) {
	d := newDisk(t)

	ref, err := d.Save(PaymentProof, "receipt.pdf", bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "-receipt.pdf"))
}

func TestRemove(t *testing.T) {
	d := newDisk(t)
	ref, err := d.Save(ProductImage, "a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	require.NoError(t, d.Remove(ref))
	assert.True(t, errors.Is(d.Remove(ref), os.ErrNotExist))
	assert.ErrorIs(t, d.Remove(""), ErrInvalidRef)
}
