package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greenguard/greenguard/internal/cache"
	"github.com/greenguard/greenguard/internal/provider"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{oops"), &v)
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", fmt.Errorf("executing request: %w", context.DeadlineExceeded), provider.ErrUpstreamTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, provider.ErrUpstreamTimeout},
		{"json syntax", fmt.Errorf("decoding response: %w", syntaxErr), provider.ErrMalformedResponse},
		{"truncated body", io.ErrUnexpectedEOF, provider.ErrMalformedResponse},
		{"connection refused", errors.New("dial tcp: connection refused"), provider.ErrUpstreamUnreachable},
		{"already classified", fmt.Errorf("wrap: %w", provider.ErrMalformedResponse), provider.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := provider.Classify(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestFetchError(t *testing.T) {
	cause := fmt.Errorf("executing request: %w", context.DeadlineExceeded)
	err := provider.NewFetchError("open-meteo", nil, cause)

	assert.ErrorIs(t, err, provider.ErrUpstreamTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "open-meteo")

	var fetchErr *provider.FetchError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &fetchErr))
	assert.Equal(t, "open-meteo", fetchErr.Provider)

	explicit := provider.NewFetchError("openweathermap", provider.ErrMalformedResponse, nil)
	assert.ErrorIs(t, explicit, provider.ErrMalformedResponse)
	assert.Equal(t, "openweathermap: malformed upstream response", explicit.Error())
}

func TestSourceFor(t *testing.T) {
	assert.Equal(t, provider.SourceCache, provider.SourceFor(cache.ResultHit))
	assert.Equal(t, provider.SourceLive, provider.SourceFor(cache.ResultMiss))
	assert.Equal(t, provider.SourceStale, provider.SourceFor(cache.ResultStale))
}

func TestClassifyDecode(t *testing.T) {
	assert.NoError(t, provider.ClassifyDecode(nil))
	assert.ErrorIs(t, provider.ClassifyDecode(io.EOF), provider.ErrMalformedResponse)
	assert.ErrorIs(t, provider.ClassifyDecode(context.DeadlineExceeded), provider.ErrUpstreamTimeout)
}
