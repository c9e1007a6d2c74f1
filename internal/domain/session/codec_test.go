package session

import (
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec("codec-test-secret")
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now().Unix()

	in := Claims{
		Type: AuthOAuth,
		User: User{
			ID:         "42",
			Name:       "某用户",
			ExternalID: "42",
			Avatar:     "https://cdn.example.com/a.png",
		},
		IssuedAt: now,
		Expires:  now + 3600,
	}

	token, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if strings.Count(token, ".") != 1 {
		t.Fatalf("expected body.signature shape, got %q", token)
	}

	var out Claims
	if !codec.Decode(token, &out) {
		t.Fatalf("Decode rejected a valid token")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestCodecRejectsBitFlips(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(Claims{Type: AuthPassword, Expires: time.Now().Unix() + 60})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	// 翻转正文和签名中的每个字节的最低位，全部必须被拒绝
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		mutated := []byte(token)
		mutated[i] ^= 1
		var out Claims
		if codec.Decode(string(mutated), &out) {
			t.Fatalf("accepted token with flipped byte at %d", i)
		}
	}
}

func TestCodecRejectsMalformedInput(t *testing.T) {
	codec := newTestCodec(t)

	cases := []string{
		"",
		"justonesegment",
		"a.b.c",
		".",
		"!!!.???",
		"bm9zaWc.",
		".c2ln",
	}
	for _, tc := range cases {
		var out Claims
		if codec.Decode(tc, &out) {
			t.Fatalf("accepted malformed token %q", tc)
		}
	}
}

func TestCodecRejectsForeignSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("another-secret")
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	token, err := other.Encode(Claims{Type: AuthPassword})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	var out Claims
	if codec.Decode(token, &out) {
		t.Fatalf("accepted token signed with a different secret")
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
