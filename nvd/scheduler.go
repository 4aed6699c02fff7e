package nvd

import (
	"log"
	"sync"

	"golang.org/x/xerrors"
)

// runFetchTasks syncs every configured feed with at most fetchLimit fetches
// in flight. NVD drops clients that open too many connections, so the cap
// stays small by default.
//
// Results arrive in completion order, not feed order. After the first task
// failure no new feeds are handed out, but tasks already running are left to
// finish so their results are not lost; the first error is returned together
// with whatever completed.
func (c *Client) runFetchTasks(progress func()) ([]FetchResult, error) {
	jobs := make(chan string)
	resChan := make(chan FetchResult, len(c.feeds))
	errChan := make(chan error, len(c.feeds))
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(jobs)
		for _, feed := range c.feeds {
			select {
			case jobs <- feed:
			case <-quit:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.fetchLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feed := range jobs {
				result, err := c.syncFeed(feed, progress)
				if err != nil {
					once.Do(func() { close(quit) })
					errChan <- xerrors.Errorf("feed %s: %w", feed, err)
					continue
				}
				log.Printf("Synced NVD feed %s (fetched: %t)", feed, result.FetchRemote)
				resChan <- result
			}
		}()
	}
	wg.Wait()
	close(resChan)
	close(errChan)

	var results []FetchResult
	for result := range resChan {
		results = append(results, result)
	}
	// only the first failure is reported upward
	for err := range errChan {
		return results, err
	}
	return results, nil
}
