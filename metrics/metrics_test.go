package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequestTallies(t *testing.T) {
	c := &Counters{}
	c.RecordRequest("LOOKUP", false)
	c.RecordRequest("LOOKUP", true)
	c.RecordRequest("SHUTDOWN", false)

	snap := c.Snapshot()
	assert.EqualValues(t, 3, snap.RequestsTotal)
	assert.EqualValues(t, 1, snap.RequestsFailed)
	assert.EqualValues(t, 1, snap.Shutdowns)
	assert.EqualValues(t, 2, snap.PerVerb["LOOKUP"])
}

func TestFailedShutdownDoesNotCount(t *testing.T) {
	c := &Counters{}
	c.RecordRequest("SHUTDOWN", true)
	assert.EqualValues(t, 0, c.Snapshot().Shutdowns)
}

func TestHandlerServesPlainText(t *testing.T) {
	c := &Counters{}
	c.RecordRequest("STAT", false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "mfsd_requests_total 1")
}
