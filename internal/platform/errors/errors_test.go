package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesTypedError(t *testing.T) {
	inner := New(KindUpstream, "tier1.search", "上游请求失败 (502)")
	wrapped := Wrap(KindUnknown, "pipeline", "should not replace", fmt.Errorf("outer: %w", inner))

	if wrapped.Kind != KindUpstream {
		t.Fatalf("expected inner kind to win, got %s", wrapped.Kind)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindConfig, "load", "ignored", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsKind(t *testing.T) {
	err := New(KindBadRequest, "method", "缺少参数: platform / functionName")
	chained := fmt.Errorf("handler: %w", err)

	if !IsKind(chained, KindBadRequest) {
		t.Fatalf("expected bad_request kind in chain")
	}
	if IsKind(chained, KindUpstream) {
		t.Fatalf("did not expect upstream kind")
	}
	if IsKind(stderrors.New("plain"), KindBadRequest) {
		t.Fatalf("plain error must not match")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindUnauthorized, http.StatusUnauthorized},
		{KindBadRequest, http.StatusBadRequest},
		{KindUpstream, http.StatusBadGateway},
		{KindForbidden, http.StatusBadRequest},
		{KindNotConfigured, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "op", "msg")); got != tc.want {
			t.Fatalf("kind %s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestClientMessage(t *testing.T) {
	err := New(KindUpstream, "tier2.search", "备用源请求失败")
	if got := ClientMessage(err); got != "备用源请求失败" {
		t.Fatalf("unexpected message: %s", got)
	}
	if got := ClientMessage(stderrors.New("internal detail")); got != "请求失败" {
		t.Fatalf("plain errors must not leak detail, got %s", got)
	}
}
