package competition

import (
	"testing"
	"time"

	"github.com/ctf-scoreboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]int64
		wantErr bool
	}{
		{name: "valid", flags: map[string]int64{"CTF{hello}": 100, "CTF{zero}": 0, "CTF{penalty}": -5}},
		{name: "empty", flags: map[string]int64{}, wantErr: true},
		{name: "nil", flags: nil, wantErr: true},
		{name: "empty token", flags: map[string]int64{"": 10}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalog(tt.flags)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.flags), c.Total())
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c, err := NewCatalog(map[string]int64{"CTF{hello}": 100, "CTF{neg}": -5})
	require.NoError(t, err)

	assert.True(t, c.IsValid("CTF{hello}"))
	assert.Equal(t, int64(100), c.ValueOf("CTF{hello}"))
	assert.True(t, c.IsValid("CTF{neg}"))
	assert.Equal(t, int64(-5), c.ValueOf("CTF{neg}"))

	assert.False(t, c.IsValid("CTF{wrong}"))
	assert.False(t, c.IsValid("ctf{hello}"))
	assert.False(t, c.IsValid(" CTF{hello}"))
	assert.False(t, c.IsValid(""))

	assert.Equal(t, int64(95), c.TotalPoints())
}

func TestCatalog_CopiesInput(t *testing.T) {
	flags := map[string]int64{"CTF{a}": 1}
	c, err := NewCatalog(flags)
	require.NoError(t, err)

	flags["CTF{b}"] = 2
	flags["CTF{a}"] = 50

	assert.False(t, c.IsValid("CTF{b}"))
	assert.Equal(t, int64(1), c.ValueOf("CTF{a}"))
}

func TestClock_IsOpen(t *testing.T) {
	end := time.Date(2026, 10, 31, 18, 0, 0, 0, time.UTC)
	c := NewClock(end)

	assert.True(t, c.IsOpen(end.Add(-time.Nanosecond)))
	assert.False(t, c.IsOpen(end), "the end instant itself is closed")
	assert.False(t, c.IsOpen(end.Add(time.Hour)))
	assert.Equal(t, end, c.EndsAt())

	// Same instant expressed in another zone.
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.False(t, c.IsOpen(end.In(loc)))
}
