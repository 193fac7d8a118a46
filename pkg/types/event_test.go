package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_String(t *testing.T) {
	rec := &ServiceRecord{Name: "Printer1", Type: "_http._tcp", Domain: "local", Host: "printer1.local", Port: 8080}

	assert.Equal(t, "servicePublished", PublishedEvent().String())
	assert.Equal(t, "serviceAdded(Printer1._http._tcp.local@printer1.local:8080)",
		RecordEvent(EventServiceAdded, rec).String())
	assert.Equal(t, "error(browserFailed: boom)",
		ErrorEvent(ErrorBrowserFailed, errors.New("boom")).String())
	assert.Equal(t, "error(serviceNameCollision)",
		ErrorEvent(ErrorServiceNameCollision, nil).String())
}

func TestRecordEvent_Snapshot(t *testing.T) {
	rec := &ServiceRecord{Name: "x"}
	rec.Txt.Set("k", "v")

	ev := RecordEvent(EventServiceUpdated, rec)
	rec.Txt.Set("k", "changed")

	v, _ := ev.Record.Txt.Get("k")
	assert.Equal(t, "v", v)
}
