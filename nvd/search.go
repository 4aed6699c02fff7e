package nvd

import (
	"encoding/json"
	"io"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

const itemsField = "CVE_Items"

// SearchResult carries the outcome of a Search: the raw matched feed entry
// (nil when nothing matched) and the feeds that were scanned, in scan order.
type SearchResult struct {
	Data    json.RawMessage
	Scanned []string
}

// cveItem is the minimal shape needed to read an entry's identifier.
type cveItem struct {
	CVE struct {
		Meta struct {
			ID string `json:"ID"`
		} `json:"CVE_data_meta"`
	} `json:"cve"`
}

// Search scans the cached feeds for the CVE with the given identifier and
// returns its raw feed entry. Feeds are scanned one at a time; the scan
// stops at the first match. A feed that cannot be opened or parsed aborts
// the whole search.
func (c *Client) Search(id string) (SearchResult, error) {
	var result SearchResult
	for _, feed := range c.searchOrder(id) {
		data, err := c.scanFeed(feed, id)
		if err != nil {
			return result, xerrors.Errorf("feed %s: %w", feed, err)
		}
		result.Scanned = append(result.Scanned, feed)
		if data != nil {
			result.Data = data
			return result, nil
		}
	}
	return result, nil
}

// searchOrder decides which feeds to scan and in what order. The year
// embedded in the identifier (CVE-<year>-<seq>) is the most likely home of
// the record, so that feed goes first when it is configured; the remaining
// feeds are taken from the end of the configured list.
func (c *Client) searchOrder(id string) []string {
	var hint string
	if parts := strings.Split(id, "-"); len(parts) > 1 {
		hint = parts[1]
	}

	pool := slices.Clone(c.feeds)
	var order []string
	if i := slices.Index(pool, hint); i >= 0 {
		order = append(order, hint)
		pool = slices.Delete(pool, i, i+1)
	}
	for len(pool) > 0 {
		order = append(order, pool[len(pool)-1])
		pool = pool[:len(pool)-1]
	}
	return order
}

// scanFeed streams one cached feed and returns the raw entry whose
// identifier matches id, or nil if the feed holds no match. Decoding stops
// as soon as a match is found; the rest of the file is never read.
func (c *Client) scanFeed(feed, id string) (json.RawMessage, error) {
	f, err := c.appFs.Open(c.feedFilePath(feed))
	if err != nil {
		return nil, xerrors.Errorf("unable to open cached feed: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if found, err := seekItems(dec); err != nil {
		return nil, err
	} else if !found {
		return nil, nil
	}

	for dec.More() {
		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return nil, xerrors.Errorf("unable to decode feed entry: %w", err)
		}
		var item cveItem
		if err = json.Unmarshal(raw, &item); err != nil {
			return nil, xerrors.Errorf("unable to decode feed entry: %w", err)
		}
		if item.CVE.Meta.ID == id {
			return raw, nil
		}
	}
	return nil, nil
}

// seekItems advances the decoder to just inside the top-level item array.
// It reports false when the document ends without such an array.
func seekItems(dec *json.Decoder) (bool, error) {
	depth := 0
	for {
		token, err := dec.Token()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, xerrors.Errorf("unable to parse feed: %w", err)
		}

		switch t := token.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		case string:
			if depth != 1 || t != itemsField {
				continue
			}
			// the next token must be the opening of the item array;
			// anything else was a value that merely looked like the key
			next, err := dec.Token()
			if err != nil {
				return false, xerrors.Errorf("unable to parse feed: %w", err)
			}
			if d, ok := next.(json.Delim); ok {
				if d == '[' {
					return true, nil
				}
				switch d {
				case '{':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
}
