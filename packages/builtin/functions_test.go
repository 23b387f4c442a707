package builtin

import (
	"math/big"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_RandomIntSingleValue(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		got, handled, err := r.Call("$randomInt 1 1")
		require.NoError(t, err)
		require.True(t, handled)
		s, ok := got.Str()
		require.True(t, ok)
		assert.Equal(t, "1", s)
	}
}

func TestCall_RandomIntRange(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 50; i++ {
		got, _, err := r.Call("$randomInt -2 3")
		require.NoError(t, err)
		n, err := strconv.Atoi(got.String())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, -2)
		assert.LessOrEqual(t, n, 3)
	}
}

func TestCall_RandomIntWideRange(t *testing.T) {
	r := NewRegistry()
	tests := []struct{ lo, hi string }{
		{"0", "9223372036854775807"},
		{"-9223372036854775808", "9223372036854775807"},
		{"0", "100000000000000000000000"},
		{"9223372036854775807", "9223372036854775807"},
	}
	for _, tt := range tests {
		token := "$randomInt " + tt.lo + " " + tt.hi
		t.Run(token, func(t *testing.T) {
			var got string
			require.NotPanics(t, func() {
				v, handled, err := r.Call(token)
				require.NoError(t, err)
				require.True(t, handled)
				got = v.String()
			})
			n, ok := new(big.Int).SetString(got, 10)
			require.True(t, ok, got)
			lo, _ := new(big.Int).SetString(tt.lo, 10)
			hi, _ := new(big.Int).SetString(tt.hi, 10)
			assert.True(t, n.Cmp(lo) >= 0 && n.Cmp(hi) <= 0, got)
		})
	}
}

func TestCall_RandomIntMalformed(t *testing.T) {
	r := NewRegistry()
	for _, token := range []string{"$randomInt", "$randomInt 1", "$randomInt a 2", "$randomInt 1 2 3", "$randomInt 5 1"} {
		t.Run(token, func(t *testing.T) {
			_, handled, err := r.Call(token)
			assert.True(t, handled)
			assert.ErrorIs(t, err, ErrInvalidArguments)
			assert.Contains(t, err.Error(), "$randomInt")
		})
	}
}

func TestCall_Unhandled(t *testing.T) {
	r := NewRegistry()
	for _, token := range []string{"randomInt 1 2", "$", "$nope 1"} {
		_, handled, err := r.Call(token)
		assert.False(t, handled, token)
		assert.NoError(t, err)
	}
}

func TestCall_Functions(t *testing.T) {
	fixed := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	r := NewRegistry()
	r.now = func() time.Time { return fixed }

	tests := []struct {
		token string
		want  string
	}{
		{"$timestamp", "1709634600"},
		{"$timestampMs", "1709634600000"},
		{"$now", "2024-03-05T10:30:00Z"},
		{"$date", "2024-03-05"},
		{"$date 02/01/2006 15:04", "05/03/2024 10:30"},
		{"$base64 hello", "aGVsbG8="},
		{"$urlEncode a&b", "a%26b"},
		{"$md5 abc", "900150983cd24fb0d6963f7d28e17f72"},
		{"$sha256 abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, handled, err := r.Call(tt.token)
			require.NoError(t, err)
			require.True(t, handled)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCall_RandomValues(t *testing.T) {
	r := NewRegistry()

	got, _, err := r.Call("$uuid")
	require.NoError(t, err)
	_, err = uuid.Parse(got.String())
	assert.NoError(t, err)

	got, _, err = r.Call("$randomString 12")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{12}$`), got.String())

	got, _, err = r.Call("$randomString")
	require.NoError(t, err)
	assert.Len(t, got.String(), 16)

	_, _, err = r.Call("$randomString -1")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	got, _, err = r.Call("$randomEmail")
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z]{10}@example\.com$`, got.String())

	_, _, err = r.Call("$base64")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("env"))
	r.Register("env", oneArg(func(s string) string { return "v:" + s }))
	assert.True(t, r.Has("env"))

	got, handled, err := r.Call("$env HOME")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "v:HOME", got.String())
}
