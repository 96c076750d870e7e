package site

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ItemType is the kind of a sidebar entry.
type ItemType string

const (
	ItemDoc      ItemType = "doc"
	ItemCategory ItemType = "category"
	ItemLink     ItemType = "link"
)

// Sidebar is an ordered tree of entries.
type Sidebar []SidebarItem

// SidebarItem is one entry of a sidebar. Docs reference a document by ID;
// categories group further items under a label; links point anywhere.
type SidebarItem struct {
	Type        ItemType      `yaml:"type"`
	ID          string        `yaml:"id,omitempty"`
	Label       string        `yaml:"label,omitempty"`
	Href        string        `yaml:"href,omitempty"`
	Collapsible *bool         `yaml:"collapsible,omitempty"`
	Collapsed   *bool         `yaml:"collapsed,omitempty"`
	Items       []SidebarItem `yaml:"items,omitempty"`
}

// Doc returns a doc entry. An empty label means the doc's own title is used.
func Doc(id, label string) SidebarItem {
	return SidebarItem{Type: ItemDoc, ID: id, Label: label}
}

// Category returns a category entry.
func Category(label string, collapsible bool, items ...SidebarItem) SidebarItem {
	return SidebarItem{Type: ItemCategory, Label: label, Collapsible: &collapsible, Items: items}
}

// Link returns a link entry. An href starting with "/" is a site route
// relative to the base URL; anything else leaves the site.
func Link(label, href string) SidebarItem {
	return SidebarItem{Type: ItemLink, Label: label, Href: href}
}

// Internal reports whether a link entry points at a site route.
func (i SidebarItem) Internal() bool {
	return i.Type == ItemLink && strings.HasPrefix(i.Href, "/") && !strings.HasPrefix(i.Href, "//")
}

// UnmarshalYAML accepts a bare string as shorthand for a doc entry, and
// defaults the type of mappings from the keys present.
func (i *SidebarItem) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*i = SidebarItem{Type: ItemDoc, ID: value.Value}
		return nil
	}
	type plain SidebarItem
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Type == "" {
		switch {
		case len(p.Items) > 0:
			p.Type = ItemCategory
		case p.Href != "":
			p.Type = ItemLink
		default:
			p.Type = ItemDoc
		}
	}
	*i = SidebarItem(p)
	return nil
}

// IsCollapsible reports whether a category can be collapsed. Categories are
// collapsible unless configured otherwise.
func (i SidebarItem) IsCollapsible() bool {
	return i.Collapsible == nil || *i.Collapsible
}

// StartsCollapsed reports whether a collapsible category is initially
// closed. Categories start collapsed unless configured otherwise.
func (i SidebarItem) StartsCollapsed() bool {
	return i.IsCollapsible() && (i.Collapsed == nil || *i.Collapsed)
}

// DocIDs returns every doc ID in the sidebar, depth-first in display order.
func (s Sidebar) DocIDs() []string {
	var ids []string
	s.Walk(func(item SidebarItem, _ int) {
		if item.Type == ItemDoc {
			ids = append(ids, item.ID)
		}
	})
	return ids
}

// Walk visits every item depth-first, passing its nesting depth.
func (s Sidebar) Walk(fn func(item SidebarItem, depth int)) {
	var walk func(items []SidebarItem, depth int)
	walk = func(items []SidebarItem, depth int) {
		for _, item := range items {
			fn(item, depth)
			if item.Type == ItemCategory {
				walk(item.Items, depth+1)
			}
		}
	}
	walk(s, 0)
}

// Contains reports whether the doc appears anywhere below item.
func (i SidebarItem) Contains(docID string) bool {
	if i.Type == ItemDoc {
		return i.ID == docID
	}
	for _, child := range i.Items {
		if child.Contains(docID) {
			return true
		}
	}
	return false
}

// Validate checks every entry is well formed and no doc appears twice.
func (s Sidebar) Validate() error {
	var problems []string
	seen := map[string]struct{}{}
	var check func(items []SidebarItem, path string)
	check = func(items []SidebarItem, path string) {
		for idx, item := range items {
			where := fmt.Sprintf("%s[%d]", path, idx)
			switch item.Type {
			case ItemDoc:
				if item.ID == "" {
					problems = append(problems, where+": doc without id")
					continue
				}
				if _, dup := seen[item.ID]; dup {
					problems = append(problems, fmt.Sprintf("%s: doc %q listed twice", where, item.ID))
				}
				seen[item.ID] = struct{}{}
			case ItemCategory:
				if item.Label == "" {
					problems = append(problems, where+": category without label")
				}
				if len(item.Items) == 0 {
					problems = append(problems, where+": category without items")
				}
				check(item.Items, where+".items")
			case ItemLink:
				if item.Href == "" || item.Label == "" {
					problems = append(problems, where+": link needs label and href")
				}
			default:
				problems = append(problems, fmt.Sprintf("%s: unknown type %q", where, item.Type))
			}
		}
	}
	check(s, "")
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
