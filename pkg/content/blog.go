package content

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/search"
)

// Titles of the dummy blog post templates.
const (
	BlogPostTitleArabicTeam = "Leading The Arabic Translations Team"
	BlogPostTitleEducation  = "Education"
	BlogPostTitleFormatting = "Blog with different font formatting"
)

// DummyBlogPostTitles lists the accepted dummy blog post titles.
var DummyBlogPostTitles = []string{BlogPostTitleArabicTeam, BlogPostTitleEducation, BlogPostTitleFormatting}

type blogTemplate struct {
	content string
	tags    []string
}

var blogTemplates = map[string]blogTemplate{
	BlogPostTitleArabicTeam: {
		content: "<p>Our Arabic translations team has grown to more than forty volunteers.</p>" +
			"<p>Here is how the team organizes reviews across time zones.</p>",
		tags: []string{"Community", "Languages"},
	},
	BlogPostTitleEducation: {
		content: "<p>Education is the most powerful tool we can use to change the world.</p>",
		tags:    []string{"Learners", "News"},
	},
	BlogPostTitleFormatting: {
		content: "<h1>Heading</h1><p><strong>Bold</strong>, <em>italic</em> and <code>code</code>.</p>" +
			"<ul><li>First</li><li>Second</li></ul><blockquote>Quote</blockquote>",
		tags: []string{"Community"},
	},
}

// publishedOnLayout parses mm/dd/yyyy dates.
const publishedOnLayout = "1/2/2006"

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// BlogPost returns a blog post.
func (s *Service) BlogPost(ctx context.Context, id string) (*BlogPost, error) {
	p, err := getEntity[BlogPost](ctx, s.store, KindBlogPost, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("The blog post with the given id or url doesn't exist.")
	}
	return p, err
}

// PublishedBlogPosts returns every blog post with a publication date.
func (s *Service) PublishedBlogPosts(ctx context.Context) ([]BlogPost, error) {
	posts, err := listEntities[BlogPost](ctx, s.store, KindBlogPost)
	if err != nil {
		return nil, err
	}
	out := posts[:0]
	for _, p := range posts {
		if p.PublishedOn != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateBlogPost stores an unpublished blog post.
func (s *Service) CreateBlogPost(ctx context.Context, authorID, title, body string) (*BlogPost, error) {
	id := newEntityID()
	p := BlogPost{
		ID:          id,
		AuthorID:    authorID,
		Title:       title,
		Content:     body,
		Tags:        []string{},
		URLFragment: slug(title) + "-" + id[:6],
		LastUpdated: s.now().UTC(),
	}
	if err := putEntity(ctx, s.store, KindBlogPost, id, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GenerateDummyBlogPost creates and publishes a blog post from one of the
// dummy templates.
func (s *Service) GenerateDummyBlogPost(ctx context.Context, authorID, title string) (*BlogPost, error) {
	tmpl, ok := blogTemplates[title]
	if !ok {
		return nil, apperr.InvalidInput("Unknown dummy blog post title %q.", title)
	}
	p, err := s.CreateBlogPost(ctx, authorID, title, tmpl.content)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.Tags = append([]string(nil), tmpl.tags...)
	p.PublishedOn = &now
	p.LastUpdated = now
	if err := putEntity(ctx, s.store, KindBlogPost, p.ID, p); err != nil {
		return nil, err
	}
	s.index.Add(search.IndexBlogPostSummaries, p.ID, append([]string{p.Title}, p.Tags...)...)
	s.logger.Info("generated dummy blog post", "blog_post_id", p.ID, "title", title)
	return p, nil
}

// UpdateBlogPostData reassigns a blog post's author and sets its
// publication date from an mm/dd/yyyy string.
func (s *Service) UpdateBlogPostData(ctx context.Context, postID, authorID, publishedOn string) error {
	p, err := s.BlogPost(ctx, postID)
	if err != nil {
		return err
	}
	date, err := time.Parse(publishedOnLayout, publishedOn)
	if err != nil {
		return fmt.Errorf("time data '%s, 00:00:00:00' does not match format '%%m/%%d/%%Y, %%H:%%M:%%S:%%f'", publishedOn)
	}
	p.AuthorID = authorID
	p.PublishedOn = &date
	p.LastUpdated = date
	if err := putEntity(ctx, s.store, KindBlogPost, postID, p); err != nil {
		return err
	}
	s.index.Add(search.IndexBlogPostSummaries, p.ID, append([]string{p.Title}, p.Tags...)...)
	return nil
}
