package credentials_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nimbusdrive/nimbusdrive/internal/credentials"
	_ "github.com/nimbusdrive/nimbusdrive/testing"
)

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNormalizerRewritesLoginPassword(t *testing.T) {
	var seenPassword, seenEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenEmail = r.PostFormValue(credentials.FormFieldEmail)
		seenPassword = r.PostFormValue(credentials.FormFieldPassword)
	})

	values := url.Values{}
	values.Set("email", "user@test.local")
	values.Set("password", "hunter22")
	req := postForm("/auth/login", values)

	credentials.Normalizer("/auth/login")(next).ServeHTTP(httptest.NewRecorder(), req)

	if seenEmail != "user@test.local" {
		t.Fatalf("email must pass through unchanged, got %q", seenEmail)
	}
	if seenPassword == "hunter22" {
		t.Fatalf("handler must never see the plaintext password")
	}
	if seenPassword != credentials.Digest("user@test.local", "hunter22") {
		t.Fatalf("expected the deterministic digest, got %q", seenPassword)
	}
}

func TestNormalizerIgnoresOtherPaths(t *testing.T) {
	var seenPassword string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPassword = r.PostFormValue(credentials.FormFieldPassword)
	})

	values := url.Values{}
	values.Set("email", "user@test.local")
	values.Set("password", "hunter22")
	req := postForm("/user/register", values)

	credentials.Normalizer("/auth/login")(next).ServeHTTP(httptest.NewRecorder(), req)

	if seenPassword != "hunter22" {
		t.Fatalf("non-login paths must pass through untouched, got %q", seenPassword)
	}
}

func TestNormalizerIgnoresGet(t *testing.T) {
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	credentials.Normalizer("/auth/login")(next).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatalf("GET must pass through")
	}
}

func TestNormalizerSkipsEmptyCredentials(t *testing.T) {
	var seenPassword string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPassword = r.PostFormValue(credentials.FormFieldPassword)
	})

	values := url.Values{}
	values.Set("password", "hunter22")
	req := postForm("/auth/login", values)

	credentials.Normalizer("/auth/login")(next).ServeHTTP(httptest.NewRecorder(), req)

	// Without an identifier there is no salt; leave the field for the handler
	// to reject.
	if seenPassword != "hunter22" {
		t.Fatalf("expected untouched password when email is missing, got %q", seenPassword)
	}
}
