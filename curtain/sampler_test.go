package curtain

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testId = "c1:22:33:44:55:66"

func TestSampleReturnsComplement(t *testing.T) {
	scanner := &fakeScanner{adverts: []Advertisement{
		{Address: "00:00:00:00:00:01", Position: 5},
		{Address: "C1:22:33:44:55:66", Position: 20},
	}}
	sampler := NewSampler(scanner, 200*time.Millisecond)

	position, err := sampler.Sample(context.Background(), testId)

	require.NoError(t, err)
	assert.Equal(t, 80, position)
	assert.Equal(t, 1, scanner.calls)
}

func TestSampleTimeout(t *testing.T) {
	scanner := &fakeScanner{adverts: []Advertisement{{Address: "00:00:00:00:00:01", Position: 5}}}
	sampler := NewSampler(scanner, 20*time.Millisecond)

	started := time.Now()
	_, err := sampler.Sample(context.Background(), testId)

	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
}

func TestSampleScanError(t *testing.T) {
	cause := errors.New("hci0: no such device")
	sampler := NewSampler(&fakeScanner{err: cause}, 20*time.Millisecond)

	_, err := sampler.Sample(context.Background(), testId)

	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, testId, scanErr.DeviceId)
	assert.ErrorIs(t, err, cause)
}

func TestSampleInvalidRaw(t *testing.T) {
	sampler := NewSampler(&fakeScanner{adverts: []Advertisement{{Address: testId, Position: 127}}}, 20*time.Millisecond)

	_, err := sampler.Sample(context.Background(), testId)

	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestSampleParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sampler := NewSampler(&fakeScanner{}, time.Second)

	_, err := sampler.Sample(ctx, testId)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSamplerDefaultTimeout(t *testing.T) {
	sampler := NewSampler(&fakeScanner{}, 0)

	assert.Equal(t, DefaultScanTimeout, sampler.Timeout)
}
