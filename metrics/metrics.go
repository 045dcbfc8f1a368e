// Package metrics tracks coarse, ambient counters about server activity.
// It never touches the image or in-memory inode table, so a background
// goroutine serving these values over HTTP does not violate the
// single-writer concurrency model described in the spec: it only reads
// atomic counters the request loop updates after each request completes.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Counters holds request-count statistics for one running server.
type Counters struct {
	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
	shutdowns      atomic.Uint64
	perVerb        [7]atomic.Uint64
}

// verbOrder maps a protocol verb name to a slot in Counters.perVerb by
// its position in this list.
var verbOrder = []string{"LOOKUP", "STAT", "CREAT", "UNLINK", "WRITE", "READ", "SHUTDOWN"}

// RecordRequest increments the counters for one completed request.
func (c *Counters) RecordRequest(verb string, failed bool) {
	c.requestsTotal.Add(1)
	if failed {
		c.requestsFailed.Add(1)
	}
	for i, v := range verbOrder {
		if v == verb {
			c.perVerb[i].Add(1)
			break
		}
	}
	if verb == "SHUTDOWN" && !failed {
		c.shutdowns.Add(1)
	}
}

// Snapshot is a point-in-time copy of the counters, safe to format or
// serialize without racing further updates.
type Snapshot struct {
	RequestsTotal  uint64
	RequestsFailed uint64
	Shutdowns      uint64
	PerVerb        map[string]uint64
}

// Snapshot reads every counter once.
func (c *Counters) Snapshot() Snapshot {
	perVerb := make(map[string]uint64, len(verbOrder))
	for i, v := range verbOrder {
		perVerb[v] = c.perVerb[i].Load()
	}
	return Snapshot{
		RequestsTotal:  c.requestsTotal.Load(),
		RequestsFailed: c.requestsFailed.Load(),
		Shutdowns:      c.shutdowns.Load(),
		PerVerb:        perVerb,
	}
}

// Handler returns a minimal text/plain handler suitable for mounting at
// an operator-facing "/metrics" endpoint.
func (c *Counters) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := c.Snapshot()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "mfsd_requests_total %d\n", snap.RequestsTotal)
		fmt.Fprintf(w, "mfsd_requests_failed_total %d\n", snap.RequestsFailed)
		fmt.Fprintf(w, "mfsd_shutdowns_total %d\n", snap.Shutdowns)
		for _, v := range verbOrder {
			fmt.Fprintf(w, "mfsd_requests_by_verb{verb=%q} %d\n", v, snap.PerVerb[v])
		}
	})
}
