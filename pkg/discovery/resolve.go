package discovery

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("receiver not found")

// Resolve browses for receivers until one named id shows up.
func Resolve(ctx context.Context, adapter Adapter, id string) (ServiceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := adapter.Discover(ctx, ServiceType())
	for {
		select {
		case <-ctx.Done():
			return ServiceInfo{}, fmt.Errorf("%w: %s: %v", ErrNotFound, id, ctx.Err())
		case result, ok := <-results:
			if !ok {
				return ServiceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			if result.Error != nil {
				return ServiceInfo{}, result.Error
			}
			for _, s := range result.Services {
				if s.Name == id {
					return s, nil
				}
			}
		}
	}
}
