package noop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/kontrakt/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name   string
		header string
		def    string
		want   string
	}{
		{"anonymous", "", "", auth.Anonymous},
		{"default user", "", "dev", "dev"},
		{"header wins", " erin ", "dev", "erin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(UserHeader, tt.header)
			}
			a := &Authenticator{DefaultUser: tt.def}
			res := a.Authenticate(context.Background(), r)
			if res.Decision != auth.Yes {
				t.Fatalf("decision = %v", res.Decision)
			}
			if res.Identity.Subject != tt.want {
				t.Errorf("subject = %q, want %q", res.Identity.Subject, tt.want)
			}
		})
	}
}
