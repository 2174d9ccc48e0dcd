package netease

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	errs "photobackup/pkg/errors"
	"photobackup/pkg/storage"
)

// FlexInt decodes integers the feeds encode as numbers, quoted numbers,
// empty strings or null.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = FlexInt(v)
	return nil
}

// AlbumDescriptor is one entry of the album index feed
type AlbumDescriptor struct {
	ID   FlexInt `json:"id"`
	Name string  `json:"name"`
	// ListingReference locates the album's item feed; it may lack a scheme
	ListingReference string `json:"purl"`
	// ExpectedCount is advisory and only used to size progress output
	ExpectedCount FlexInt `json:"count"`
}

// PhotoDescriptor is one entry of an album's item feed. After ParseItems the
// URL fields hold absolute URLs.
type PhotoDescriptor struct {
	ID          FlexInt `json:"id"`
	Original    string  `json:"ourl"`
	Medium      string  `json:"murl"`
	Small       string  `json:"surl"`
	Thumb       string  `json:"turl"`
	Square      string  `json:"qurl"`
	Description string  `json:"desc"`

	// Err is set when a reference could not be resolved; such a photo is
	// kept so it can be counted as failed.
	Err error `json:"-"`
}

// resolve rewrites the shard references through PhotoURL and trims the
// description. Original is mandatory, the size variants are optional.
func (p *PhotoDescriptor) resolve(cdnHost string) {
	p.Description = strings.TrimSpace(p.Description)

	if strings.TrimSpace(p.Original) == "" {
		p.Err = errs.New(errs.ErrorTypeInvalidReference, "photo %d has no original reference", p.ID)
		return
	}

	for _, field := range []*string{&p.Original, &p.Medium, &p.Small, &p.Thumb, &p.Square} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		u, err := PhotoURL(cdnHost, *field)
		if err != nil {
			if p.Err == nil {
				p.Err = err
			}
			continue
		}
		*field = u
	}
}

// Filename returns the name the photo is stored under: the description when
// present, otherwise the base name of the original URL. The result is a
// single sanitized path segment, or "" when neither yields a usable name.
func (p *PhotoDescriptor) Filename() string {
	if name := storage.SanitizeSegment(p.Description); name != "" {
		return name
	}

	ref := p.Original
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	base := path.Base(strings.TrimRight(ref, "/"))
	if base == "/" || base == "." {
		return ""
	}
	return storage.SanitizeSegment(base)
}
