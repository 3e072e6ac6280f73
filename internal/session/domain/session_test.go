package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/pseudonymizer/internal/errors"
)

func TestParsePurpose(t *testing.T) {
	for _, value := range []string{"extraction", "testing", "audit"} {
		p, err := ParsePurpose(value)
		require.NoError(t, err)
		assert.Equal(t, Purpose(value), p)
	}

	_, err := ParsePurpose("marketing")
	assert.ErrorIs(t, err, ErrInvalidPurpose)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestExpiresAfter(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Success_ZeroTTLStaysAfterCreation", func(t *testing.T) {
		expires := ExpiresAfter(now, 0)
		assert.True(t, expires.After(now))
		assert.Equal(t, time.Microsecond, expires.Sub(now))
	})

	t.Run("Success_RegularTTL", func(t *testing.T) {
		assert.Equal(t, now.Add(time.Hour), ExpiresAfter(now, time.Hour))
	})
}

func TestSession_Live(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		session Session
		at      time.Time
		want    bool
	}{
		{"active before expiry", Session{Active: true, ExpiresAt: now.Add(time.Minute)}, now, true},
		{"active at expiry", Session{Active: true, ExpiresAt: now}, now, false},
		{"inactive", Session{Active: false, ExpiresAt: now.Add(time.Minute)}, now, false},
		{"zero ttl", Session{Active: true, CreatedAt: now, ExpiresAt: ExpiresAfter(now, 0)}, now.Add(time.Millisecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Live(tt.at))
		})
	}
}
