// Copyright (c) 2026 The go-manta Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file.

package eestream

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartOutputStreamAlignment(t *testing.T) {
	for i, tt := range []struct {
		blockSize int
		writes    []string
	}{
		{4, []string{"ab", "cd", "ef"}},
		{4, []string{"abcdefgh"}},
		{8, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}},
	} {
		tag := fmt.Sprintf("#%d. %+v", i, tt)

		var sinks []*bytes.Buffer
		m := NewMultipartOutputStream(tt.blockSize)
		newSink := func() *bytes.Buffer {
			b := new(bytes.Buffer)
			sinks = append(sinks, b)
			m.SetNext(b)
			return b
		}
		newSink()

		var all strings.Builder
		for _, w := range tt.writes {
			all.WriteString(w)
			_, err := m.Write([]byte(w))
			require.NoError(t, err, tag)
			newSink()
		}
		require.NoError(t, m.ForceFlush(), tag)

		var got strings.Builder
		for si, s := range sinks {
			if si < len(sinks)-1 {
				assert.Zero(t, s.Len()%tt.blockSize, "%s sink #%d not block-aligned", tag, si)
			}
			got.Write(s.Bytes())
		}
		assert.Equal(t, all.String(), got.String(), tag)
	}
}

func TestFlushBufferEmitsUnalignedTail(t *testing.T) {
	// A part boundary is not a block boundary: matches java-manta's
	// MultipartOutputStreamTest#happyPath, which flushes 6 bytes at
	// blockSize 16 with no error.
	m := NewMultipartOutputStream(16)
	var sink bytes.Buffer
	m.SetNext(&sink)
	_, err := m.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, m.FlushBuffer())
	assert.Equal(t, "abc", sink.String())
	assert.Zero(t, m.Buffered())
}

func TestCipherCatalogRoundTrip(t *testing.T) {
	for _, id := range []CipherID{AES128CTRNoPadding, AES256CTRNoPadding, AES128GCMNoPadding, SecretBox} {
		t.Run(string(id), func(t *testing.T) {
			spec, err := Lookup(id)
			require.NoError(t, err)

			key := make([]byte, spec.KeySize)
			_, err = rand.Read(key)
			require.NoError(t, err)

			cs, err := NewCipherState(spec, key)
			require.NoError(t, err)

			plaintext := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog", 100))

			var ciphertext bytes.Buffer
			entity := NewEncryptingEntity(bytes.NewReader(plaintext), cs, &ciphertext, int64(len(plaintext)))
			n, err := entity.WriteTo()
			require.NoError(t, err)
			assert.Equal(t, int64(len(plaintext)), n)

			trailer, err := cs.Finalize()
			require.NoError(t, err)

			if spec.AEAD {
				// AEAD ciphers emit ciphertext+tag entirely from Finalize;
				// nothing streams out of WriteTo.
				assert.Zero(t, ciphertext.Len())
				assert.NotEmpty(t, trailer)
			} else {
				assert.Equal(t, len(plaintext), ciphertext.Len())
				assert.Equal(t, spec.TagSize, len(trailer))
			}
		})
	}
}

func TestCipherStateRejectsWrongKeySize(t *testing.T) {
	spec, err := Lookup(AES256CTRNoPadding)
	require.NoError(t, err)
	_, err = NewCipherState(spec, make([]byte, 10))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires a")
}

func TestThawRejectsAEAD(t *testing.T) {
	spec, err := Lookup(AES128GCMNoPadding)
	require.NoError(t, err)
	_, err = ThawCipherState(CipherStateSnapshot{CipherID: spec.ID}, make([]byte, spec.KeySize))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot thaw")
}

func TestFreezeThawResumesCTR(t *testing.T) {
	spec, err := Lookup(AES256CTRNoPadding)
	require.NoError(t, err)
	key := make([]byte, spec.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)

	cs, err := NewCipherState(spec, key)
	require.NoError(t, err)

	first := []byte("first part plaintext, exactly some bytes")
	_, err = cs.EncryptChunk(first)
	require.NoError(t, err)

	snap := cs.Freeze()
	resumed, err := ThawCipherState(snap, key)
	require.NoError(t, err)

	second := []byte("second part plaintext")
	wantCipher, err := cs.EncryptChunk(second)
	require.NoError(t, err)
	gotCipher, err := resumed.EncryptChunk(second)
	require.NoError(t, err)
	assert.Equal(t, wantCipher, gotCipher)
}
