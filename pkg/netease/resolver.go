package netease

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "photobackup/pkg/errors"
)

var albumURLPattern = regexp.MustCompile(`albumUrl\s*:\s*'([^']+)'`)

// ResolveIndexURL fetches the landing page of ownerID and returns the URL
// of its album index feed. Any failure is an index_not_found error.
func (c *Client) ResolveIndexURL(ctx context.Context, ownerID string) (string, error) {
	landing := LandingURL(c.baseURL, ownerID)

	c.logger.DebugWithFields("resolving album index", map[string]interface{}{
		"owner": ownerID,
		"url":   landing,
	})

	page, err := c.getPage(ctx, landing)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeIndexNotFound, err, "fetch landing page of %s", ownerID)
	}

	indexURL, ok := findAlbumURL(page)
	if !ok {
		return "", errs.New(errs.ErrorTypeIndexNotFound, "no album index on landing page of %s", ownerID)
	}
	return ensureScheme(indexURL), nil
}

// findAlbumURL looks for the albumUrl assignment in inline scripts first
// and falls back to scanning the whole page.
func findAlbumURL(page string) (string, bool) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		var found string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := albumURLPattern.FindStringSubmatch(s.Text()); m != nil {
				found = m[1]
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}

	if m := albumURLPattern.FindStringSubmatch(page); m != nil {
		return m[1], true
	}
	return "", false
}
