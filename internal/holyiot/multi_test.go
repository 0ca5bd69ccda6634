package holyiot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiDecoder_PrefersStrict(t *testing.T) {
	m, err := NewMultiDecoder(Variants())
	require.NoError(t, err)

	u, ok := m.Decode(record(testAddr, strictPayload(60, testMAC)))
	require.True(t, ok)
	assert.Equal(t, "strict", u.Variant)
	require.NotNil(t, u.Battery)
	assert.Equal(t, 60, *u.Battery)
}

func TestMultiDecoder_FallsBackToPermissive(t *testing.T) {
	m, err := NewMultiDecoder(Variants())
	require.NoError(t, err)

	u, ok := m.Decode(record(testAddr, []byte{0x00, 0x2A, 0x99}))
	require.True(t, ok)
	assert.Equal(t, "permissive", u.Variant)
	require.NotNil(t, u.Battery)
	assert.Equal(t, 42, *u.Battery)
}

func TestMultiDecoder_IdentityMismatchIsFinal(t *testing.T) {
	m, err := NewMultiDecoder(Variants())
	require.NoError(t, err)

	// A strict frame relayed under another address must not be reread with
	// the permissive layout.
	r := record(testAddr, strictPayload(60, []byte{1, 2, 3, 4, 5, 6}))
	assert.False(t, m.Matches(r))
	_, ok := m.Decode(r)
	assert.False(t, ok)

	err = m.Explain(r)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
	assert.NotContains(t, err.Error(), "permissive")
}

func TestMultiDecoder_MalformedAddressIsFinal(t *testing.T) {
	m, err := NewMultiDecoder(Variants())
	require.NoError(t, err)

	r := record("not-a-mac", strictPayload(60, testMAC))
	_, ok := m.Decode(r)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Explain(r), ErrMalformedAddress)
}

func TestMultiDecoder_RejectsAll(t *testing.T) {
	m, err := NewMultiDecoder(Variants())
	require.NoError(t, err)

	r := record(testAddr, []byte{0x01})
	assert.False(t, m.Matches(r))
	_, ok := m.Decode(r)
	assert.False(t, ok)

	err = m.Explain(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedPayload)
	assert.Contains(t, err.Error(), "strict")
	assert.Contains(t, err.Error(), "permissive")
}

func TestMultiDecoder_Invalid(t *testing.T) {
	_, err := NewMultiDecoder(nil)
	assert.Error(t, err)

	_, err = NewMultiDecoder([]Variant{Strict, Strict})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
		strict  bool
	}{
		{name: "", strict: false},
		{name: "auto", strict: false},
		{name: "AUTO", strict: false},
		{name: " Auto ", strict: false},
		{name: "STRICT", strict: true},
		{name: "strict", strict: true},
		{name: "permissive"},
		{name: "v3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			// A short frame separates strict-only decoders from the rest.
			short := record(testAddr, []byte{0x00, 0x20})
			assert.Equal(t, !tt.strict, d.Matches(short))
		})
	}
}
