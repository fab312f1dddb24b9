package homekit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"

	"github.com/hapkit/hap-go/pkg/hap"
)

// RefreshResult is the outcome of RefreshAll.
type RefreshResult struct {
	// Values holds the value of every characteristic read successfully,
	// keyed by RefreshKey.
	Values map[string]any

	// Failures holds the error of every read that failed.
	Failures map[string]error

	// Skipped counts characteristics without read permission.
	Skipped int
}

// Err combines the failures in key order, or returns nil.
func (r *RefreshResult) Err() error {
	keys := make([]string, 0, len(r.Failures))
	for k := range r.Failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		err = multierr.Append(err, fmt.Errorf("%s: %w", k, r.Failures[k]))
	}
	return err
}

// RefreshKey returns the key a characteristic is reported under:
// "{uuid}.{serviceType}.{name}", with "/{subtype}" appended to the service
// type for non-primary services.
func RefreshKey(accessoryUUID string, svc *hap.Service, c *hap.Characteristic) string {
	st := svc.Type()
	if !svc.IsPrimary() {
		st += "/" + svc.Subtype()
	}
	return accessoryUUID + "." + st + "." + c.Name()
}

// RefreshAll reads every readable characteristic of every accessory
// concurrently. Characteristics without read permission are skipped. A
// failing or panicking read is recorded in Failures and does not affect
// the other reads. With a virtual clock and a latency gate, RefreshAll
// returns only once the clock has been advanced past the latency.
func (c *Controller) RefreshAll(ctx context.Context) *RefreshResult {
	res := &RefreshResult{
		Values:   make(map[string]any),
		Failures: make(map[string]error),
	}

	type target struct {
		key string
		c   *hap.Characteristic
	}
	var targets []target
	for _, acc := range c.Accessories() {
		for _, svc := range acc.Services() {
			for _, ch := range svc.Characteristics() {
				if !ch.Perms().CanRead() {
					res.Skipped++
					continue
				}
				targets = append(targets, target{RefreshKey(acc.UUID(), svc, ch), ch})
			}
		}
	}

	var (
		mu sync.Mutex
		wg conc.WaitGroup
	)
	for _, t := range targets {
		wg.Go(func() {
			var (
				pc  panics.Catcher
				v   any
				err error
			)
			pc.Try(func() { v, err = t.c.GetValue(ctx) })
			if r := pc.Recovered(); r != nil {
				err = r.AsError()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures[t.key] = err
				return
			}
			res.Values[t.key] = v
		})
	}
	wg.Wait()

	c.logger.Debug("refresh complete",
		"read", len(res.Values), "failed", len(res.Failures), "skipped", res.Skipped)
	return res
}
