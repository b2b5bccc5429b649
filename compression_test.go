package smartcache

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeValueRespectsLimitEqualsLen(t *testing.T) {
	out, err := encodeValue(CompressionNone, 3, []byte("abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "abc" {
		t.Fatalf("unexpected output: %s", string(out))
	}
}

func TestEncodeValueRejectsOversizedPlainBody(t *testing.T) {
	if _, err := encodeValue(CompressionNone, 2, []byte("abc")); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestDecodeValuePassThrough(t *testing.T) {
	for _, in := range [][]byte{[]byte("plain"), []byte("tiny"), nil} {
		out, err := decodeValue(in)
		if err != nil {
			t.Fatalf("decode %q err: %v", in, err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("expected passthrough for %q, got %q", in, out)
		}
	}
}

func TestDecodeValueUnknownCodec(t *testing.T) {
	in := append([]byte("CMP1"), 's', 0x00)
	if _, err := decodeValue(in); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected unsupported codec error, got %v", err)
	}
}

func TestEncodeValueUnknownCodec(t *testing.T) {
	if _, err := encodeValue(CompressionCodec("zstd"), 0, []byte("v")); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected unsupported codec error, got %v", err)
	}
}

func TestEncodeValueGzipEarlySizeCheck(t *testing.T) {
	if _, err := encodeValue(CompressionGzip, 1, []byte("toolong")); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestDecodeValueGzipRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"v":"abc"}`), 64)
	encoded, err := encodeValue(CompressionGzip, 0, payload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.HasPrefix(encoded, []byte("CMP1g")) {
		t.Fatalf("expected compression header, got %q", encoded[:5])
	}
	if len(encoded) >= len(payload) {
		t.Fatalf("expected repetitive payload to shrink: %d >= %d", len(encoded), len(payload))
	}
	decoded, err := decodeValue(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("unexpected decode value: %s", string(decoded))
	}
}

func TestDecodeValueCorruptGzip(t *testing.T) {
	in := append([]byte("CMP1g"), []byte("not gzip at all")...)
	if _, err := decodeValue(in); !errors.Is(err, ErrCorruptCompression) {
		t.Fatalf("expected corrupt compression error, got %v", err)
	}
}
