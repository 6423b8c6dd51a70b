package reliability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_Mark(t *testing.T) {
	d := NewDetector(time.Minute)
	defer d.Close()
	now := time.Unix(1700000000, 0)
	d.now = func() time.Time { return now }

	assert.True(t, d.Mark("urn:uuid:1"))
	assert.False(t, d.Mark("urn:uuid:1"))
	assert.True(t, d.IsDuplicate("urn:uuid:1"))
	assert.False(t, d.IsDuplicate("urn:uuid:2"))

	// outside the window the id is accepted again
	now = now.Add(2 * time.Minute)
	assert.False(t, d.IsDuplicate("urn:uuid:1"))
	assert.True(t, d.Mark("urn:uuid:1"))
}

func TestDetector_Cleanup(t *testing.T) {
	d := NewDetector(time.Minute)
	defer d.Close()
	now := time.Unix(1700000000, 0)
	d.now = func() time.Time { return now }

	d.Mark("old")
	now = now.Add(30 * time.Second)
	d.Mark("new")
	now = now.Add(45 * time.Second)
	d.cleanup()
	assert.Equal(t, 1, d.Len())
	assert.True(t, d.IsDuplicate("new"))
}

func TestDetector_CloseTwice(t *testing.T) {
	d := NewDetector(time.Millisecond)
	d.Close()
	d.Close()
}

func TestProcessor(t *testing.T) {
	d := NewDetector(time.Hour)
	defer d.Close()
	p := d.Processor()

	m := message.New(message.Soap12WSAddressing10)
	m.SetAddressing("urn:test/Submit", "")
	require.NotEmpty(t, m.MessageID())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := context.Background()
	calls := 0
	failNext := false
	next := func(context.Context, *message.Message, *http.Request) (*message.Message, error) {
		calls++
		if failNext {
			return nil, errors.New("transient")
		}
		return nil, nil
	}

	_, err := p.ProcessMessage(ctx, m, r, next)
	require.NoError(t, err)

	_, err = p.ProcessMessage(ctx, m, r, next)
	var fe *contract.FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, message.FaultCodeSender, fe.FaultCode())
	assert.Equal(t, SubcodeDuplicateMessage, fe.Subcode)
	assert.Equal(t, 1, calls)

	// failed requests may be retried
	retry := message.New(message.Soap12WSAddressing10)
	retry.SetAddressing("urn:test/Submit", "")
	failNext = true
	_, err = p.ProcessMessage(ctx, retry, r, next)
	require.Error(t, err)
	failNext = false
	_, err = p.ProcessMessage(ctx, retry, r, next)
	require.NoError(t, err)

	// messages without MessageID are never rejected
	plain := message.New(message.Soap11)
	for i := 0; i < 2; i++ {
		_, err = p.ProcessMessage(ctx, plain, r, next)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, calls)
}
