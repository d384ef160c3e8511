package pseudonym

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceKey = "super_secret_key"

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := New([]byte(referenceKey))
	require.NoError(t, err)
	return tok
}

func TestTokenize_GoldenReferenceCard(t *testing.T) {
	tok := newTestTokenizer(t)

	got, err := tok.Tokenize([]byte{0x04, 0x1A, 0x2B, 0x3C})
	require.NoError(t, err)
	assert.Equal(t,
		Token("b3a384ba5aa4ba6607ac7301dc31c84da392f215c38fc7081004ecd46d853a4e"),
		got,
	)
}

func TestTokenize_RFC4231Case1(t *testing.T) {
	// RFC 4231 section 4.2: key = 0x0b * 20, data = "Hi There".
	tok, err := New(bytes.Repeat([]byte{0x0b}, 20))
	require.NoError(t, err)

	got, err := tok.Tokenize([]byte("Hi There"))
	require.NoError(t, err)
	assert.Equal(t,
		Token("b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7"),
		got,
	)
}

func TestTokenize_SevenByteUID(t *testing.T) {
	tok := newTestTokenizer(t)

	got, err := tok.Tokenize([]byte{0x04, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F})
	require.NoError(t, err)
	assert.Equal(t,
		Token("958b9b1b92225b6437b48092e277b29868a5e6302d0697a3eb9c03607accc190"),
		got,
	)
}

func TestTokenize_DistinctIdentifiersDiffer(t *testing.T) {
	tok := newTestTokenizer(t)

	a, err := tok.Tokenize([]byte{0x04, 0x1A, 0x2B, 0x3C})
	require.NoError(t, err)
	b, err := tok.Tokenize([]byte{0x04, 0x1A, 0x2B, 0x3D})
	require.NoError(t, err)

	assert.Equal(t, Token("727a3bf0e869b8369585f5be6ae1500f8a00c607ad17e76b9dd8135f279477d3"), b)
	assert.NotEqual(t, a, b)
}

func TestTokenize_Deterministic(t *testing.T) {
	tok := newTestTokenizer(t)
	other := newTestTokenizer(t)

	uids := [][]byte{
		{0x01, 0x02, 0x03, 0x04},
		{0xde, 0xad, 0xbe, 0xef, 0x00, 0x11, 0x22},
		{0xff, 0xff, 0xff, 0xff},
		{0x00, 0x00, 0x00, 0x00},
	}

	for _, uid := range uids {
		first, err := tok.Tokenize(uid)
		require.NoError(t, err)
		second, err := tok.Tokenize(uid)
		require.NoError(t, err)
		third, err := other.Tokenize(uid)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, first, third)
		assert.Len(t, string(first), TokenLength)
		assert.True(t, first.Valid(), "token %q should be lowercase hex", first)
		assert.Equal(t, strings.ToLower(string(first)), string(first))
	}
}

func TestTokenize_KeyChangesToken(t *testing.T) {
	a := newTestTokenizer(t)
	b, err := New([]byte("another_secret_key"))
	require.NoError(t, err)

	uid := []byte{0x04, 0x1A, 0x2B, 0x3C}
	ta, err := a.Tokenize(uid)
	require.NoError(t, err)
	tb, err := b.Tokenize(uid)
	require.NoError(t, err)

	assert.NotEqual(t, ta, tb)
}

func TestTokenize_InvalidIdentifier(t *testing.T) {
	tok := newTestTokenizer(t)

	tests := []struct {
		name string
		uid  []byte
	}{
		{name: "nil", uid: nil},
		{name: "empty", uid: []byte{}},
		{name: "too long", uid: make([]byte, MaxIdentifierLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tok.Tokenize(tt.uid)
			if !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("Tokenize() error = %v, want ErrInvalidIdentifier", err)
			}
		})
	}
}

func TestNew_RejectsShortKey(t *testing.T) {
	for _, key := range [][]byte{nil, []byte(""), []byte("short")} {
		_, err := New(key)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("New(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestNew_CopiesKey(t *testing.T) {
	key := []byte(referenceKey)
	tok, err := New(key)
	require.NoError(t, err)

	key[0] = 'X'

	got, err := tok.Tokenize([]byte{0x04, 0x1A, 0x2B, 0x3C})
	require.NoError(t, err)
	assert.Equal(t,
		Token("b3a384ba5aa4ba6607ac7301dc31c84da392f215c38fc7081004ecd46d853a4e"),
		got,
	)
}

func TestToken_Redacted(t *testing.T) {
	tok := Token("b3a384ba5aa4ba6607ac7301dc31c84da392f215c38fc7081004ecd46d853a4e")
	assert.Equal(t, "b3a384ba…", tok.Redacted())
	assert.Equal(t, "abc", Token("abc").Redacted())
}

func TestToken_Valid(t *testing.T) {
	assert.False(t, Token("").Valid())
	assert.False(t, Token(strings.Repeat("A", TokenLength)).Valid())
	assert.False(t, Token(strings.Repeat("a", TokenLength-1)).Valid())
	assert.True(t, Token(strings.Repeat("a", TokenLength)).Valid())
}
