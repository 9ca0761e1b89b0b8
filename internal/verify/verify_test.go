package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citypay/mail-handler/internal/request"
)

func settings() *request.VerificationSettings {
	return &request.VerificationSettings{
		Enabled:  true,
		Response: "challenge-response",
		Secret:   "shared-secret",
		RemoteIP: "203.0.113.9",
	}
}

func TestVerify_Success(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotForm = map[string]string{
			"secret":   r.PostFormValue("secret"),
			"response": r.PostFormValue("response"),
			"remoteip": r.PostFormValue("remoteip"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	if err := c.Verify(context.Background(), settings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotForm["secret"] != "shared-secret" {
		t.Errorf("secret: got %q", gotForm["secret"])
	}
	if gotForm["response"] != "challenge-response" {
		t.Errorf("response: got %q", gotForm["response"])
	}
	if gotForm["remoteip"] != "203.0.113.9" {
		t.Errorf("remoteip: got %q", gotForm["remoteip"])
	}
}

func TestVerify_OmitsEmptyRemoteIP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if _, present := r.PostForm["remoteip"]; present {
			t.Error("remoteip should not be sent when unset")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	s := settings()
	s.RemoteIP = ""

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	if err := c.Verify(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerify_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	err := c.Verify(context.Background(), settings())
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("got %v, want ErrFailed", err)
	}
}

func TestVerify_ServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	err := c.Verify(context.Background(), settings())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrFailed) {
		t.Error("a service error must not be reported as a rejection")
	}
}

func TestVerify_Unreachable(t *testing.T) {
	t.Parallel()

	// Reserved TEST-NET address, nothing listens there.
	c := NewClient(ClientConfig{Endpoint: "http://192.0.2.1:9/siteverify", Timeout: 100 * time.Millisecond})
	if err := c.Verify(context.Background(), settings()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	t.Parallel()

	c := NewClient(ClientConfig{})
	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint: got %q, want %q", c.endpoint, DefaultEndpoint)
	}
}
