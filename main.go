package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/xerrors"

	"github.com/travispaul/nvd-search/nvd"
	"github.com/travispaul/nvd-search/utils"
)

var (
	target        = flag.String("target", "sync", "operation to run (sync, search, status)")
	cveID         = flag.String("id", "", "CVE identifier to search for (e.g. CVE-2015-5611)")
	feeds         = flag.String("feeds", "", "comma-separated feed names (default: every yearly feed plus recent and modified)")
	cacheDir      = flag.String("cache-dir", "", "feed cache directory")
	rootPath      = flag.String("root-path", "", "remote feed URL prefix")
	schemaVersion = flag.String("schema-version", "", "NVD JSON schema version")
	fetchLimit    = flag.Int("fetch-limit", 0, "maximum concurrent feed fetches")
	persistAll    = flag.Bool("persist-all", false, "keep the compressed feeds and metadata files in the cache")
	retry         = flag.Int("retry", 0, "extra fetch attempts per metadata request")
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Parse()

	opts := []nvd.Option{
		nvd.WithPersistAll(*persistAll),
		nvd.WithRetry(*retry),
	}
	if *feeds != "" {
		opts = append(opts, nvd.WithFeeds(strings.Split(*feeds, ",")))
	}
	if dir := utils.LookupEnv("NVD_SEARCH_CACHE_DIR", *cacheDir); dir != "" {
		opts = append(opts, nvd.WithCacheDir(dir))
	}
	if *rootPath != "" {
		opts = append(opts, nvd.WithRootPath(*rootPath))
	}
	if *schemaVersion != "" {
		opts = append(opts, nvd.WithSchemaVersion(*schemaVersion))
	}
	if *fetchLimit > 0 {
		opts = append(opts, nvd.WithFetchLimit(*fetchLimit))
	}
	client := nvd.NewClient(opts...)

	switch *target {
	case "sync":
		return sync(client)
	case "search":
		return search(client)
	case "status":
		return status(client)
	default:
		return xerrors.Errorf("unknown target: %s", *target)
	}
}

func sync(client *nvd.Client) error {
	log.Println("Syncing NVD feeds...")
	bar := pb.StartNew(len(client.Feeds()))
	results, err := client.Sync(func() {
		bar.Increment()
	})
	bar.Finish()
	if err != nil {
		return xerrors.Errorf("sync error (%d feeds completed): %w", len(results), err)
	}

	var fetched int
	for _, result := range results {
		if result.FetchRemote {
			fetched++
		}
	}
	log.Printf("%d feeds synced, %d fetched from NVD", len(results), fetched)
	return nil
}

func search(client *nvd.Client) error {
	if *cveID == "" {
		return xerrors.New("search requires -id")
	}

	result, err := client.Search(*cveID)
	if err != nil {
		return xerrors.Errorf("search error: %w", err)
	}
	if result.Data == nil {
		return xerrors.Errorf("%s not found (scanned %d feeds)", *cveID, len(result.Scanned))
	}
	fmt.Fprintln(os.Stdout, string(result.Data))
	return nil
}

func status(client *nvd.Client) error {
	lastSync, err := client.LastSync()
	if err != nil {
		return xerrors.Errorf("status error: %w", err)
	}
	if len(lastSync) == 0 {
		log.Println("No feeds synced yet")
		return nil
	}
	for _, feed := range client.Feeds() {
		if t, ok := lastSync[feed]; ok {
			fmt.Printf("%s\t%s\n", feed, t.Format(time.RFC3339))
		} else {
			fmt.Printf("%s\tnever\n", feed)
		}
	}
	return nil
}
