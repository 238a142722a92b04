package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestDeriveParcelCode(t *testing.T) {
	cases := []struct {
		name  string
		parts AddressParts
		want  string
		fails bool
	}{
		{
			name:  "plain lot",
			parts: AddressParts{LegalDongCode: "1111010100", MainNo: 1, SubNo: 0},
			want:  "1111010100100010000",
		},
		{
			name:  "san lot",
			parts: AddressParts{LegalDongCode: "1111010100", Mountain: true, MainNo: 12, SubNo: 3},
			want:  "1111010100200120003",
		},
		{
			name:  "short dong code",
			parts: AddressParts{LegalDongCode: "12345", MainNo: 1},
			fails: true,
		},
		{
			name:  "lot number out of range",
			parts: AddressParts{LegalDongCode: "1111010100", MainNo: 10000},
			fails: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DeriveParcelCode(c.parts)
			if c.fails {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
			if !ValidParcelCode(got) {
				t.Errorf("derived code %q is not a valid PNU", got)
			}
		})
	}
}

func TestValidParcelCode(t *testing.T) {
	if !ValidParcelCode("1111010100100010000") {
		t.Error("expected 19-digit code to be valid")
	}
	if ValidParcelCode("123") {
		t.Error("expected short code to be invalid")
	}
	if ValidParcelCode("111101010010001000a") {
		t.Error("expected non-numeric code to be invalid")
	}
}

func TestResolveParcelCode_ServiceHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/cadastral/lookup" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","pnu":"1111010100100010000"}`))
	}))
	defer srv.Close()

	client := NewGeocodeClient(srv.URL, "test-key", zap.NewNop())
	result, err := client.ResolveParcelCode(context.Background(), "서울특별시 종로구 청운동 1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ParcelCode != "1111010100100010000" {
		t.Errorf("got %q", result.ParcelCode)
	}
	if result.Derived {
		t.Error("service hit should not be marked derived")
	}
}

func TestResolveParcelCode_FallsBackToDerivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGeocodeClient(srv.URL, "test-key", zap.NewNop())
	parts := &AddressParts{LegalDongCode: "1111010100", MainNo: 1, SubNo: 2}
	result, err := client.ResolveParcelCode(context.Background(), "서울특별시 종로구 청운동 1-2", parts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Derived {
		t.Error("expected derived result")
	}
	if result.ParcelCode != "1111010100100010002" {
		t.Errorf("got %q", result.ParcelCode)
	}
}

func TestResolveParcelCode_NoFallbackWithoutParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGeocodeClient(srv.URL, "test-key", zap.NewNop())
	if _, err := client.ResolveParcelCode(context.Background(), "어딘가", nil); err == nil {
		t.Fatal("expected error when lookup fails and no structured parts given")
	}
}
