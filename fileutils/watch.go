package fileutils

import (
	"context"
)

// WatchFile polls the content hash of path on every tick and emits an event
// when it differs from the previous one. The returned channel is closed when
// ctx is done.
func WatchFile(ctx context.Context, path string, ticker <-chan struct{}, onErr func(err error)) (<-chan struct{}, error) {
	ch := make(chan struct{})

	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker:
				newHash, err := ComputeFileHash(path)
				if err != nil {
					onErr(err)
					continue
				}
				if lastHash == newHash {
					continue
				}
				lastHash = newHash
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
