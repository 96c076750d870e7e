package docs

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

var postName = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(.+)$`)

// Post is a blog entry. Its date and default slug come from a file name of
// the form YYYY-MM-DD-slug.md.
type Post struct {
	Slug   string
	Source string
	Date   time.Time
	Meta   FrontMatter
	Title  string
	Body   []byte

	// HasTitleHeading reports whether the body starts with its own level
	// one heading.
	HasTitleHeading bool

	// ReadingTime is the estimated reading time in whole minutes, at least
	// one.
	ReadingTime int
}

// LoadPosts reads every blog post below the root of fsys, newest first.
// Posts on the same day are ordered by slug.
func LoadPosts(fsys fs.FS, r *Renderer) ([]*Post, error) {
	var posts []*Post
	seen := map[string]string{}
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
		post, err := parsePost(p, raw, r)
		if err != nil {
			return err
		}
		if other, dup := seen[post.Slug]; dup {
			return fmt.Errorf("%s: slug %q already used by %s", p, post.Slug, other)
		}
		seen[post.Slug] = p
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load blog: %w", err)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].Slug < posts[j].Slug
	})
	return posts, nil
}

func parsePost(p string, raw []byte, r *Renderer) (*Post, error) {
	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	m := postName.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("%s: blog file names must start with YYYY-MM-DD-", p)
	}
	date, err := time.Parse(time.DateOnly, m[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	post := &Post{
		Slug:        m[2],
		Source:      p,
		Date:        date,
		Meta:        meta,
		Body:        body,
		ReadingTime: ReadingTime(r.countWords(body)),
	}
	if meta.Slug != "" {
		post.Slug = strings.Trim(meta.Slug, "/")
	}
	heading, hasHeading := r.firstHeading(body)
	post.HasTitleHeading = hasHeading
	switch {
	case meta.Title != "":
		post.Title = meta.Title
	case hasHeading:
		post.Title = heading
	default:
		post.Title = m[2]
	}
	return post, nil
}

// ReadingTime converts a word count to whole minutes, rounding up, never
// less than one.
func ReadingTime(words int) int {
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
