package netease

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"photobackup/pkg/config"
	errs "photobackup/pkg/errors"
	"photobackup/pkg/logger"
)

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	out, err := simplifiedchinese.GBK.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

// site serves GBK pages from a path → body map and counts requests
type site struct {
	t        *testing.T
	srv      *httptest.Server
	pages    map[string]string
	requests int64
}

func newSite(t *testing.T) *site {
	s := &site{t: t, pages: map[string]string{}}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)
		body, ok := s.pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		w.Write(gbk(t, body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

// host returns the server address without a scheme, the way feeds carry it
func (s *site) host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = baseURL
	cfg.Retry.Enabled = false
	return cfg
}

func newTestClient(t *testing.T, baseURL string, log logger.Logger) *Client {
	t.Helper()
	c, err := NewClient(testConfig(baseURL), log)
	require.NoError(t, err)
	return c
}

func TestPhotoURL(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"shard", "12/foo/bar.jpg", "http://img12.ph.126.net/foo/bar.jpg", false},
		{"single segment", "3/a.jpg", "http://img3.ph.126.net/a.jpg", false},
		{"padded", "  7/x/y.png ", "http://img7.ph.126.net/x/y.png", false},
		{"absolute", "http://img1.ph.126.net/z.jpg", "http://img1.ph.126.net/z.jpg", false},
		{"no separator", "foo", "", true},
		{"empty path", "12/", "", true},
		{"non-numeric shard", "ab/c.jpg", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PhotoURL("", tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidReference))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhotoURLCustomHost(t *testing.T) {
	got, err := PhotoURL("cdn.example.org", "4/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://img4.cdn.example.org/p.jpg", got)
}

func TestLandingURL(t *testing.T) {
	assert.Equal(t, "http://photo.163.com/someone", LandingURL("", "someone"))
	assert.Equal(t, "http://h/a%20b", LandingURL("http://h/", "a b"))
}

func TestEnsureScheme(t *testing.T) {
	assert.Equal(t, "http://s1.photo.163.com/a.js", ensureScheme("s1.photo.163.com/a.js"))
	assert.Equal(t, "https://x/a.js", ensureScheme("https://x/a.js"))
	assert.Equal(t, "http://x/a.js", ensureScheme("//x/a.js"))
}

func TestFlexInt(t *testing.T) {
	var v struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
		C FlexInt `json:"c"`
		D FlexInt `json:"d"`
		E FlexInt `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"34","c":null,"d":"","e":5.0}`), &v))
	assert.Equal(t, FlexInt(12), v.A)
	assert.Equal(t, FlexInt(34), v.B)
	assert.Equal(t, FlexInt(0), v.C)
	assert.Equal(t, FlexInt(0), v.D)
	assert.Equal(t, FlexInt(5), v.E)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"many"}`), &v))
}

func TestPhotoDescriptorFilename(t *testing.T) {
	tests := []struct {
		photo PhotoDescriptor
		want  string
	}{
		{PhotoDescriptor{Description: "Sunset", Original: "http://img1.ph.126.net/a/b.jpg"}, "Sunset"},
		{PhotoDescriptor{Original: "http://img1.ph.126.net/a/b.jpg"}, "b.jpg"},
		{PhotoDescriptor{Description: "a/b", Original: "http://img1.ph.126.net/x.jpg"}, "a_b"},
		{PhotoDescriptor{Description: "..", Original: "http://img1.ph.126.net/x.jpg"}, "x.jpg"},
		{PhotoDescriptor{Original: "http://img1.ph.126.net/"}, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.photo.Filename())
	}
}

func TestResolveIndexURL(t *testing.T) {
	s := newSite(t)
	s.pages["/owner1"] = `<html><head><script type="text/javascript">
var cfg = { userId : 1, albumUrl : 's1.photo.163.com/owner1/albums.js', theme: 'blue' };
</script></head><body>相册</body></html>`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())
	got, err := c.ResolveIndexURL(context.Background(), "owner1")
	require.NoError(t, err)
	assert.Equal(t, "http://s1.photo.163.com/owner1/albums.js", got)
}

func TestResolveIndexURLOutsideScript(t *testing.T) {
	s := newSite(t)
	s.pages["/owner2"] = `<html><body><div data-x="albumUrl:'http://s2.photo.163.com/a.js'"></div></body></html>`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())
	got, err := c.ResolveIndexURL(context.Background(), "owner2")
	require.NoError(t, err)
	assert.Equal(t, "http://s2.photo.163.com/a.js", got)
}

func TestResolveIndexURLPrefersScript(t *testing.T) {
	s := newSite(t)
	s.pages["/owner3"] = `<html><head><meta name="description" content="albumUrl : 'http://spam.example/fake.js'">
<script>var cfg = { albumUrl : 's3.photo.163.com/owner3/albums.js' };</script></head>
<body><!-- albumUrl : 'http://old.example/legacy.js' --></body></html>`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())
	got, err := c.ResolveIndexURL(context.Background(), "owner3")
	require.NoError(t, err)
	assert.Equal(t, "http://s3.photo.163.com/owner3/albums.js", got)

	raw, ok := findAlbumURL(s.pages["/owner3"])
	require.True(t, ok)
	assert.Equal(t, "s3.photo.163.com/owner3/albums.js", raw)
}

func TestResolveIndexURLMissing(t *testing.T) {
	s := newSite(t)
	s.pages["/private"] = `<html><script>var nothing = 1;</script></html>`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())

	_, err := c.ResolveIndexURL(context.Background(), "private")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeIndexNotFound))

	_, err = c.ResolveIndexURL(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeIndexNotFound))
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}

func TestFetchAlbums(t *testing.T) {
	s := newSite(t)
	s.pages["/albums.js"] = `var g_albums=[{id:1,name:' 旅行 ',purl:'` + s.host() + `/items1.js',count:2},` +
		`{id:2,name:'Family',purl:'',count:'0'},{id:3,name:'Work',purl:'x',count:null}];`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())
	albums, err := c.FetchAlbums(context.Background(), s.srv.URL+"/albums.js")
	require.NoError(t, err)
	require.Len(t, albums, 3)

	assert.Equal(t, "旅行", albums[0].Name)
	assert.Equal(t, s.host()+"/items1.js", albums[0].ListingReference)
	assert.Equal(t, FlexInt(2), albums[0].ExpectedCount)
	assert.Equal(t, []string{"旅行", "Family", "Work"}, []string{albums[0].Name, albums[1].Name, albums[2].Name})
}

func TestParseAlbumsDowngradesFailures(t *testing.T) {
	s := newSite(t)
	s.pages["/broken.js"] = `album list unavailable`

	log := logger.NewTestLogger()
	c := newTestClient(t, s.srv.URL, log)

	albums := c.ParseAlbums(context.Background(), s.srv.URL+"/broken.js")
	assert.NotNil(t, albums)
	assert.Empty(t, albums)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)

	_, err := c.FetchAlbums(context.Background(), s.srv.URL+"/broken.js")
	assert.True(t, errs.IsType(err, errs.ErrorTypeMalformedPayload))
}

func TestFetchItems(t *testing.T) {
	s := newSite(t)
	s.pages["/items1.js"] = `var g_items=[` +
		`{id:11,ourl:'12/abc/1.jpg',murl:'12/abc/1m.jpg',surl:'',turl:'',qurl:'',desc:' 日落 '},` +
		`{id:12,ourl:'nope',murl:'',surl:'',turl:'',qurl:'',desc:''},` +
		`{id:13,ourl:'',desc:'no original'}];`

	c := newTestClient(t, s.srv.URL, logger.NewTestLogger())
	items, err := c.FetchItems(context.Background(), s.host()+"/items1.js")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.Equal(t, "http://img12.ph.126.net/abc/1.jpg", items[0].Original)
	assert.Equal(t, "http://img12.ph.126.net/abc/1m.jpg", items[0].Medium)
	assert.Equal(t, "", items[0].Small)
	assert.Equal(t, "日落", items[0].Description)

	assert.True(t, errs.IsType(items[1].Err, errs.ErrorTypeInvalidReference))
	assert.True(t, errs.IsType(items[2].Err, errs.ErrorTypeInvalidReference))
}

func TestParseItemsEmptyReference(t *testing.T) {
	s := newSite(t)
	log := logger.NewTestLogger()
	c := newTestClient(t, s.srv.URL, log)

	items := c.ParseItems(context.Background(), "")
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, atomic.LoadInt64(&s.requests))
	assert.Empty(t, log.GetMessagesByLevel("WARN"))
}

func TestParseItemsDowngradesFailures(t *testing.T) {
	s := newSite(t)
	log := logger.NewTestLogger()
	c := newTestClient(t, s.srv.URL, log)

	items := c.ParseItems(context.Background(), s.srv.URL+"/missing.js")
	assert.Empty(t, items)
	assert.True(t, log.HasMessage("could not read album items"))
}

func TestFetchPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.jpg" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("Referer"))
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, logger.NewTestLogger())

	body, err := c.FetchPhoto(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	_, err = c.FetchPhoto(context.Background(), srv.URL+"/b.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}

func TestFetchPhotoTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	strict := newTestClient(t, srv.URL, logger.NewTestLogger())
	_, err := strict.FetchPhoto(context.Background(), srv.URL+"/a.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))

	cfg := testConfig(srv.URL)
	cfg.Download.AllowInsecureTLS = true
	log := logger.NewTestLogger()
	insecure, err := NewClient(cfg, log)
	require.NoError(t, err)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)

	body, err := insecure.FetchPhoto(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	body.Close()
}

func TestNewClientRejectsBadSettings(t *testing.T) {
	cfg := testConfig("")
	cfg.Source.Encoding = "klingon-8"
	_, err := NewClient(cfg, nil)
	assert.Error(t, err)

	cfg = testConfig("")
	cfg.Source.FeedFormat = "xml"
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)
}
