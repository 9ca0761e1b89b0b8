// Package brand wraps plain message bodies into styled HTML documents
// using named bundles of css/header/footer asset files.
package brand

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/citypay/mail-handler/internal/request"
)

//go:embed skeleton.html
var skeletonRaw string

var skeleton = template.Must(template.New("skeleton").Parse(skeletonRaw))

// Assets holds the resolved content of a brand's asset files. Values are
// read once per send and never written back to the definition.
type Assets struct {
	CSS    string
	Header string
	Footer string
}

// AssetReader reads one asset file. It exists so tests can substitute the
// filesystem.
type AssetReader func(path string) ([]byte, error)

// ResolverConfig holds the configuration for creating a Resolver.
type ResolverConfig struct {
	// Root, when set, is prepended to every relative asset path.
	Root string

	// Strict makes a missing or unreadable asset file fail the load
	// instead of degrading to empty content.
	Strict bool

	// Read overrides the default os.ReadFile, used for testing.
	Read AssetReader
}

// Resolver loads brand assets from disk.
type Resolver struct {
	root   string
	strict bool
	read   AssetReader
}

// NewResolver creates a Resolver with the given configuration.
func NewResolver(cfg ResolverConfig) *Resolver {
	read := cfg.Read
	if read == nil {
		read = os.ReadFile
	}
	return &Resolver{
		root:   cfg.Root,
		strict: cfg.Strict,
		read:   read,
	}
}

// Lookup resolves a brand reference against the request's branding
// definitions by exact name match. It returns nil when the reference is
// empty, the definitions are absent, or no name matches; callers treat
// nil as "no brand".
func Lookup(name string, defs []request.BrandDefinition) *request.BrandDefinition {
	if name == "" {
		return nil
	}
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

// Load reads the asset files referenced by a brand definition. An empty
// path yields empty content. A read failure degrades to empty content
// unless the resolver is strict.
func (r *Resolver) Load(def *request.BrandDefinition) (Assets, error) {
	var assets Assets
	var err error

	if assets.CSS, err = r.readAsset(def.CSS); err != nil {
		return Assets{}, fmt.Errorf("brand %q css: %w", def.Name, err)
	}
	if assets.Header, err = r.readAsset(def.Header); err != nil {
		return Assets{}, fmt.Errorf("brand %q header: %w", def.Name, err)
	}
	if assets.Footer, err = r.readAsset(def.Footer); err != nil {
		return Assets{}, fmt.Errorf("brand %q footer: %w", def.Name, err)
	}

	return assets, nil
}

// readAsset reads a single asset file, applying the configured root and
// the degrade-to-empty policy.
func (r *Resolver) readAsset(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if r.root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}

	data, err := r.read(path)
	if err != nil {
		if r.strict {
			return "", err
		}
		return "", nil
	}
	return string(data), nil
}

// IsDocument reports whether body is already a complete HTML document,
// identified by an <html> root tag or a doctype declaration at the start.
func IsDocument(body string) bool {
	lower := strings.ToLower(body)
	return strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<!doctype")
}

// Htmlify wraps a body fragment in the HTML skeleton with the given brand
// assets. A body that is already a complete document is returned unchanged,
// which also makes Htmlify idempotent: wrapped output starts with a doctype.
func Htmlify(body string, assets Assets) (string, error) {
	if IsDocument(body) {
		return body, nil
	}

	data := struct {
		CSS    template.CSS
		Header template.HTML
		Body   template.HTML
		Footer template.HTML
	}{
		CSS:    template.CSS(assets.CSS),
		Header: template.HTML(assets.Header),
		Body:   template.HTML(body),
		Footer: template.HTML(assets.Footer),
	}

	var buf bytes.Buffer
	if err := skeleton.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render brand skeleton: %w", err)
	}
	return buf.String(), nil
}
