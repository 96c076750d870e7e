package docs

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Doc is one markdown document of the docs section.
type Doc struct {
	// ID is the path of the source file relative to the docs root, without
	// extension.
	ID string

	// Source is the path of the file relative to the docs root.
	Source string

	Meta FrontMatter

	// Title comes from front matter, then a leading "# " heading, then ID.
	Title string

	// HasTitleHeading reports whether the body starts with its own level
	// one heading, so pages shouldn't add another.
	HasTitleHeading bool

	Body []byte
}

// Label is the text used for the doc in sidebars and pagination.
func (d *Doc) Label() string {
	if d.Meta.SidebarLabel != "" {
		return d.Meta.SidebarLabel
	}
	return d.Title
}

// Slug returns the route suffix of the doc below the docs root. The root
// doc has slug "".
func (d *Doc) Slug() string {
	if d.Meta.Slug != "" {
		return strings.Trim(d.Meta.Slug, "/")
	}
	return d.ID
}

// Store holds the documents loaded from a docs directory.
type Store struct {
	docs  map[string]*Doc
	files map[string]string
	ids   []string
}

// Load reads every .md and .mdx file below the root of fsys.
func Load(fsys fs.FS, r *Renderer) (*Store, error) {
	s := &Store{docs: map[string]*Doc{}, files: map[string]string{}}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(p) {
			return nil
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		doc, err := parseDoc(p, raw, r)
		if err != nil {
			return err
		}
		if _, dup := s.docs[doc.ID]; dup {
			return fmt.Errorf("duplicate doc id %q", doc.ID)
		}
		s.docs[doc.ID] = doc
		s.files[p] = doc.ID
		s.ids = append(s.ids, doc.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load docs: %w", err)
	}
	sort.Strings(s.ids)
	return s, nil
}

func parseDoc(p string, raw []byte, r *Renderer) (*Doc, error) {
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	doc := &Doc{
		ID:     strings.TrimSuffix(p, path.Ext(p)),
		Source: p,
		Meta:   meta,
		Body:   body,
	}
	heading, hasHeading := r.firstHeading(body)
	doc.HasTitleHeading = hasHeading
	switch {
	case meta.Title != "":
		doc.Title = meta.Title
	case hasHeading:
		doc.Title = heading
	default:
		doc.Title = path.Base(doc.ID)
	}
	return doc, nil
}

func isMarkdown(p string) bool {
	ext := path.Ext(p)
	return ext == ".md" || ext == ".mdx"
}

// Get returns the doc with the given ID.
func (s *Store) Get(id string) (*Doc, bool) {
	d, ok := s.docs[id]
	return d, ok
}

// IDs returns every doc ID in lexical order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len returns the number of docs.
func (s *Store) Len() int {
	return len(s.ids)
}

// ByFile resolves a markdown link target, relative to the file it appears
// in, to the doc built from it.
func (s *Store) ByFile(from, target string) (*Doc, bool) {
	if strings.HasPrefix(target, "/") {
		return s.ByPath(target)
	}
	return s.ByPath(path.Join(path.Dir(from), target))
}

// ByPath returns the doc read from the file at p, relative to the docs
// root.
func (s *Store) ByPath(p string) (*Doc, bool) {
	id, ok := s.files[strings.TrimPrefix(path.Clean(p), "/")]
	if !ok {
		return nil, false
	}
	return s.docs[id], true
}
