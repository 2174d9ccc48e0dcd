package netease

import (
	"context"
	"strings"

	"photobackup/pkg/normalize"
)

// FetchAlbums fetches and decodes the album index feed at indexURL, in the
// order the site presents the albums.
func (c *Client) FetchAlbums(ctx context.Context, indexURL string) ([]AlbumDescriptor, error) {
	page, err := c.getPage(ctx, ensureScheme(indexURL))
	if err != nil {
		return nil, err
	}

	albums, err := normalize.Decode[AlbumDescriptor](c.normalizer, page)
	if err != nil {
		return nil, err
	}
	for i := range albums {
		albums[i].Name = strings.TrimSpace(albums[i].Name)
	}

	c.logger.DebugWithFields("album index decoded", map[string]interface{}{
		"url":    indexURL,
		"albums": len(albums),
	})
	return albums, nil
}

// ParseAlbums is FetchAlbums with failures downgraded to a warning and an
// empty result.
func (c *Client) ParseAlbums(ctx context.Context, indexURL string) []AlbumDescriptor {
	albums, err := c.FetchAlbums(ctx, indexURL)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("could not read album index", map[string]interface{}{
			"url": indexURL,
		})
		return []AlbumDescriptor{}
	}
	return albums
}
