package nvd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const lastSyncFile = "last_sync.json"

// LastSync returns the time each feed was last synced successfully. Feeds
// never synced are absent from the map; a cache directory with no sync
// history yields an empty map.
func (c *Client) LastSync() (map[string]time.Time, error) {
	lastSync := map[string]time.Time{}

	f, err := c.appFs.Open(filepath.Join(c.cacheDir, lastSyncFile))
	if err != nil {
		if os.IsNotExist(err) {
			return lastSync, nil
		}
		return nil, xerrors.Errorf("unable to open the last sync file: %w", err)
	}
	defer f.Close()

	if err = json.NewDecoder(f).Decode(&lastSync); err != nil {
		return nil, xerrors.Errorf("unable to decode the last sync file: %w", err)
	}
	return lastSync, nil
}

func (c *Client) setLastSync(t time.Time) error {
	lastSync, err := c.LastSync()
	if err != nil {
		return err
	}
	for _, feed := range c.feeds {
		lastSync[feed] = t
	}

	b, err := json.MarshalIndent(lastSync, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal sync times: %w", err)
	}
	path := filepath.Join(c.cacheDir, lastSyncFile)
	if err = afero.WriteFile(c.appFs, path, b, 0600); err != nil {
		return xerrors.Errorf("failed to write the last sync file: %w", err)
	}
	return nil
}
