package netease

import (
	"context"

	"photobackup/pkg/normalize"
)

// FetchItems fetches the item feed at listingReference and resolves every
// photo reference to an absolute URL. An empty reference yields no items
// without a request.
func (c *Client) FetchItems(ctx context.Context, listingReference string) ([]PhotoDescriptor, error) {
	if listingReference == "" {
		return []PhotoDescriptor{}, nil
	}
	feedURL := ensureScheme(listingReference)

	page, err := c.getPage(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	items, err := normalize.Decode[PhotoDescriptor](c.normalizer, page)
	if err != nil {
		return nil, err
	}

	invalid := 0
	for i := range items {
		items[i].resolve(c.cdnHost)
		if items[i].Err != nil {
			invalid++
		}
	}

	c.logger.DebugWithFields("item feed decoded", map[string]interface{}{
		"url":     feedURL,
		"items":   len(items),
		"invalid": invalid,
	})
	return items, nil
}

// ParseItems is FetchItems with failures downgraded to a warning and an
// empty result.
func (c *Client) ParseItems(ctx context.Context, listingReference string) []PhotoDescriptor {
	items, err := c.FetchItems(ctx, listingReference)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("could not read album items", map[string]interface{}{
			"url": listingReference,
		})
		return []PhotoDescriptor{}
	}
	return items
}
