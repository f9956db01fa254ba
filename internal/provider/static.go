package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// StaticLibrary serves pre-generated assets from a local directory. It is
// the terminal chain slot: it always succeeds when a library file exists
// for the (product, ratio) pair, so reaching ErrExhausted past it means the
// library is missing the asset, which is a provisioning problem rather
// than a runtime one.
type StaticLibrary struct {
	dir string
}

func NewStaticLibrary(dir string) *StaticLibrary { return &StaticLibrary{dir: dir} }

func (s *StaticLibrary) Name() string { return "static-library" }

func (s *StaticLibrary) Attempt(_ context.Context, p Payload) (*Result, error) {
	path := filepath.Join(s.dir, libraryFilename(p.ProductID, p.RatioName))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FatalError{Reason: fmt.Sprintf("no library asset at %s", path)}
		}
		return nil, &RetryableError{Reason: "read library asset: " + err.Error()}
	}
	log.Debug().Str("path", path).Msg("serving static library asset")
	return &Result{Data: data, MIME: mimeFromExt(path)}, nil
}

func libraryFilename(productID, ratioName string) string {
	clean := func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), " ", "_") }
	return fmt.Sprintf("%s_%s.png", clean(productID), clean(ratioName))
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
