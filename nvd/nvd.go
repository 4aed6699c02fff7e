package nvd

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/travispaul/nvd-search/utils"
)

const (
	baseURLFormat        = "https://nvd.nist.gov/feeds/json/cve/%s/nvdcve-%s"
	defaultSchemaVersion = "1.1"
	defaultFetchLimit    = 2
	firstFeedYear        = 2002
)

type Option func(*Client)

func WithFeeds(feeds []string) Option {
	return func(c *Client) { c.feeds = feeds }
}

func WithRootPath(rootPath string) Option {
	return func(c *Client) { c.rootPath = rootPath }
}

func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

func WithSchemaVersion(version string) Option {
	return func(c *Client) { c.schemaVersion = version }
}

func WithFetchLimit(limit int) Option {
	return func(c *Client) { c.fetchLimit = limit }
}

func WithPersistAll(persistAll bool) Option {
	return func(c *Client) { c.persistAll = persistAll }
}

func WithAppFs(fs afero.Fs) Option {
	return func(c *Client) { c.appFs = fs }
}

func WithClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithRetry(retry int) Option {
	return func(c *Client) { c.retry = retry }
}

// Client mirrors NVD JSON feeds into a local cache directory and looks up
// individual CVEs across the cached feeds. All configuration is fixed at
// construction time.
type Client struct {
	feeds         []string
	rootPath      string
	cacheDir      string
	schemaVersion string
	fetchLimit    int
	persistAll    bool
	retry         int
	appFs         afero.Fs
	client        *http.Client
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		feeds:         defaultFeeds(),
		schemaVersion: defaultSchemaVersion,
		cacheDir:      utils.CacheDir(),
		fetchLimit:    defaultFetchLimit,
		appFs:         afero.NewOsFs(),
		client:        http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rootPath == "" {
		c.rootPath = fmt.Sprintf(baseURLFormat, c.schemaVersion, c.schemaVersion)
	}
	return c
}

// Feeds returns the configured feed names in configuration order.
func (c *Client) Feeds() []string {
	return c.feeds
}

// defaultFeeds lists every yearly feed NVD publishes plus the two rolling
// feeds, in the order NVD lists them.
func defaultFeeds() []string {
	years := lo.Map(lo.RangeFrom(firstFeedYear, time.Now().Year()-firstFeedYear+1),
		func(year int, _ int) string {
			return strconv.Itoa(year)
		})
	return append(years, "recent", "modified")
}

// FetchResult describes the outcome of one feed's sync: the parsed remote
// metadata and whether the feed had to be fetched.
type FetchResult struct {
	Feed        string
	Meta        Meta
	FetchRemote bool
}

func (c *Client) metaURL(feed string) string {
	return fmt.Sprintf("%s-%s.meta", c.rootPath, feed)
}

func (c *Client) feedURL(feed string) string {
	return fmt.Sprintf("%s-%s.json.gz", c.rootPath, feed)
}

func (c *Client) feedFilePath(feed string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("nvdcve-%s-%s.json", c.schemaVersion, feed))
}

// syncFeed runs the whole pipeline for one feed: remote metadata, staleness
// check, and the conditional fetch. The progress callback fires once, only
// after every step has succeeded.
func (c *Client) syncFeed(feed string, progress func()) (FetchResult, error) {
	result := FetchResult{Feed: feed}

	body, err := utils.FetchURL(c.metaURL(feed), "", c.retry)
	if err != nil {
		return result, xerrors.Errorf("failed to fetch metadata: %w", err)
	}
	result.Meta = ParseMeta(string(body))

	if c.persistAll {
		metaPath := c.feedFilePath(feed) + ".meta"
		if err = afero.WriteFile(c.appFs, metaPath, body, 0644); err != nil {
			return result, xerrors.Errorf("failed to persist metadata: %w", err)
		}
	}

	result.FetchRemote, err = c.isStale(feed, result.Meta)
	if err != nil {
		return result, xerrors.Errorf("staleness check error: %w", err)
	}

	if result.FetchRemote {
		if err = c.fetchFeed(feed); err != nil {
			return result, xerrors.Errorf("failed to fetch feed: %w", err)
		}
	}

	if progress != nil {
		progress()
	}
	return result, nil
}

// isStale reports whether the cached file for feed needs to be re-fetched.
// A missing cache file means stale, not an error; every other read failure
// is fatal to the feed's sync.
func (c *Client) isStale(feed string, meta Meta) (bool, error) {
	f, err := c.appFs.Open(c.feedFilePath(feed))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, xerrors.Errorf("unable to open cached feed: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err = io.Copy(hash, f); err != nil {
		return false, xerrors.Errorf("unable to hash cached feed: %w", err)
	}
	digest := strings.ToUpper(hex.EncodeToString(hash.Sum(nil)))
	return !strings.EqualFold(digest, meta["sha256"]), nil
}

// fetchFeed downloads the compressed feed and writes the decompressed JSON
// to the cache, replacing any previous copy. With persistAll the compressed
// artifact is written to disk first and decompressed from there, so it
// remains in the cache next to the JSON.
func (c *Client) fetchFeed(feed string) error {
	body, err := c.fetchStream(c.feedURL(feed))
	if err != nil {
		return err
	}
	defer body.Close()

	src := io.Reader(body)
	if c.persistAll {
		gzPath := c.feedFilePath(feed) + ".gz"
		if err = c.writeStream(gzPath, body); err != nil {
			return xerrors.Errorf("failed to persist compressed feed: %w", err)
		}
		compressed, err := c.appFs.Open(gzPath)
		if err != nil {
			return xerrors.Errorf("unable to reopen compressed feed: %w", err)
		}
		defer compressed.Close()
		src = compressed
	}

	gz, err := gzip.NewReader(src)
	if err != nil {
		return xerrors.Errorf("failed to decompress feed: %w", err)
	}
	defer gz.Close()

	if err = c.writeStream(c.feedFilePath(feed), gz); err != nil {
		return xerrors.Errorf("failed to write feed: %w", err)
	}
	return nil
}

func (c *Client) writeStream(path string, r io.Reader) error {
	f, err := c.appFs.Create(path)
	if err != nil {
		return xerrors.Errorf("unable to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return xerrors.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}

// fetchStream returns the response body as a stream so large feeds are
// decompressed as they arrive instead of being buffered in memory.
func (c *Client) fetchStream(url string) (io.ReadCloser, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}

// Sync brings the local cache up to date with the remote feeds. It returns
// one FetchResult per completed feed in completion order. On failure the
// first error is returned together with the results of the feeds that did
// complete.
func (c *Client) Sync(progress func()) ([]FetchResult, error) {
	if err := c.appFs.MkdirAll(c.cacheDir, 0755); err != nil {
		return nil, xerrors.Errorf("failed to create cache directory: %w", err)
	}

	results, err := c.runFetchTasks(progress)
	if err != nil {
		return results, err
	}

	if err = c.setLastSync(time.Now().UTC()); err != nil {
		return results, xerrors.Errorf("failed to record sync time: %w", err)
	}
	return results, nil
}
