// Package storage keeps uploaded files on local disk and hands out the
// references stored alongside products and transactions.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// URLPrefix is the path stored references are served under.
const URLPrefix = "/uploads/"

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrInvalidRef      = errors.New("invalid file reference")
)

// Kind bounds what an upload slot accepts.
type Kind struct {
	Name     string
	MaxBytes int64
	Allowed  []string
}

var (
	ProductImage = Kind{
		Name:     "image",
		MaxBytes: 5 << 20,
		Allowed:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
	PaymentProof = Kind{
		Name:     "proof",
		MaxBytes: 10 << 20,
		Allowed:  []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"},
	}
)

type Disk struct {
	dir string
	now func() time.Time
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Disk{dir: dir, now: time.Now}, nil
}

func (d *Disk) Dir() string {
	return d.dir
}

// SanitizeName reduces an uploaded file name to its base name with every run
// of whitespace replaced by a single hyphen.
func SanitizeName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	name := strings.Join(strings.Fields(base), "-")
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}

// Save checks r against kind and writes it under a name derived from the
// current time and the sanitized original name. It returns the reference to
// store, e.g. "/uploads/1760601600000-red-mug.png".
func (d *Disk) Save(kind Kind, original string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, kind.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > kind.MaxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, kind.Name, kind.MaxBytes)
	}

	mtype := mimetype.Detect(data)
	if !allowed(mtype, kind.Allowed) {
		return "", fmt.Errorf("%w: %s cannot be %s", ErrUnsupportedType, kind.Name, mtype.String())
	}

	stamp := strconv.FormatInt(d.now().UnixMilli(), 10)
	name := SanitizeName(original)

	candidate := stamp + "-" + name
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(d.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			candidate = stamp + "-" + strconv.Itoa(i) + "-" + name
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create file: %w", err)
		}

		if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return URLPrefix + candidate, nil
	}
}

// Remove deletes the file behind ref. A missing file yields an error
// wrapping os.ErrNotExist.
func (d *Disk) Remove(ref string) error {
	name := path.Base(ref)
	if ref == "" || name == "." || name == "/" || name == ".." {
		return ErrInvalidRef
	}
	return os.Remove(filepath.Join(d.dir, name))
}

func allowed(mtype *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}
