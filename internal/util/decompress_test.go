package util

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{"response":{"join_link":"https://vk.com/call/join/abc"}}`

func TestDecodeResponseBody(t *testing.T) {
	var gz bytes.Buffer
	gzw := gzip.NewWriter(&gz)
	_, err := gzw.Write([]byte(samplePayload))
	require.NoError(t, err)
	require.NoError(t, gzw.Close())

	var zl bytes.Buffer
	zlw := zlib.NewWriter(&zl)
	_, err = zlw.Write([]byte(samplePayload))
	require.NoError(t, err)
	require.NoError(t, zlw.Close())

	var raw bytes.Buffer
	flw, err := flate.NewWriter(&raw, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = flw.Write([]byte(samplePayload))
	require.NoError(t, err)
	require.NoError(t, flw.Close())

	var br bytes.Buffer
	brw := brotli.NewWriter(&br)
	_, err = brw.Write([]byte(samplePayload))
	require.NoError(t, err)
	require.NoError(t, brw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll([]byte(samplePayload), nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		name     string
		encoding string
		data     []byte
	}{
		{"identity", "", []byte(samplePayload)},
		{"gzip", "gzip", gz.Bytes()},
		{"deflate", "deflate", zl.Bytes()},
		{"raw deflate", "deflate", raw.Bytes()},
		{"brotli", "br", br.Bytes()},
		{"zstd", "ZSTD", zst},
		{"unknown passes through", "compress", []byte(samplePayload)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errDecode := DecodeResponseBody(tt.encoding, tt.data)
			require.NoError(t, errDecode)
			assert.Equal(t, samplePayload, string(got))
		})
	}
}

func TestDecodeResponseBodyCorruptGzip(t *testing.T) {
	_, err := DecodeResponseBody("gzip", []byte("not gzip"))
	assert.Error(t, err)
}

func TestReadResponseBody(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(strings.NewReader(samplePayload)),
	}
	got, err := ReadResponseBody(resp)
	require.NoError(t, err)
	assert.Equal(t, samplePayload, string(got))
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "****", RedactToken("abcd"))
	assert.Equal(t, "abcd...mnop", RedactToken("abcdefghijklmnop"))
}
