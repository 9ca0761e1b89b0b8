package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/citypay/mail-handler/internal/brand"
	"github.com/citypay/mail-handler/internal/mail"
	"github.com/citypay/mail-handler/internal/request"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	name  string
	id    string
	err   error
	calls int
	last  *mail.Message
}

func (m *mockProvider) Send(_ context.Context, msg *mail.Message) (string, error) {
	m.calls++
	m.last = msg
	return m.id, m.err
}

func (m *mockProvider) Name() string { return m.name }

// sendOutcome runs one dispatch and records which callback fired.
type sendOutcome struct {
	err error
	id  string
	ok  bool
}

func runSend(t *testing.T, d *Dispatcher, req *request.Request, item *request.MailItem) sendOutcome {
	t.Helper()

	var out sendOutcome
	fired := 0
	d.Send(context.Background(), req, item,
		func(err error) { fired++; out.err = err },
		func(id string) { fired++; out.ok = true; out.id = id },
	)
	if fired != 1 {
		t.Fatalf("callbacks fired %d times, want exactly 1", fired)
	}
	return out
}

func baseRequest(items ...request.MailItem) *request.Request {
	return &request.Request{
		Verification: &request.VerificationSettings{Response: "r", Secret: "s"},
		Mail:         items,
	}
}

func item(body string) request.MailItem {
	return request.MailItem{
		From:    "a@x.com",
		To:      []string{"b@x.com"},
		Subject: "S",
		Body:    body,
	}
}

func newTestDispatcher(live, dry *mockProvider, root string) *Dispatcher {
	return New(live, dry, brand.NewResolver(brand.ResolverConfig{Root: root}))
}

func TestSend_PlainTextBody(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "msg-1"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	req := baseRequest(item("hello"))
	out := runSend(t, d, req, &req.Mail[0])

	if !out.ok || out.id != "msg-1" {
		t.Fatalf("got %+v, want success with msg-1", out)
	}
	if live.last.TextBody != "hello" {
		t.Errorf("TextBody: got %q", live.last.TextBody)
	}
	if live.last.HTMLBody != "" {
		t.Errorf("HTMLBody: got %q, want empty", live.last.HTMLBody)
	}
}

func TestSend_HTMLFragmentWithoutBrandPassesThrough(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "msg-2"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	req := baseRequest(item("<p>hi</p>"))
	out := runSend(t, d, req, &req.Mail[0])

	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}
	if live.last.HTMLBody != "<p>hi</p>" {
		t.Errorf("HTMLBody: got %q, want unchanged fragment", live.last.HTMLBody)
	}
	if live.last.TextBody != "" {
		t.Errorf("TextBody: got %q, want empty", live.last.TextBody)
	}
}

func TestSend_BrandForcesHTMLAndWraps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("h1 { color: blue; }"), 0o600); err != nil {
		t.Fatal(err)
	}

	live := &mockProvider{name: "live", id: "msg-3"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, dir)

	req := baseRequest(item("plain words"))
	req.Brand = "acme"
	req.Branding = []request.BrandDefinition{{Name: "acme", CSS: "style.css"}}

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}

	html := live.last.HTMLBody
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Errorf("branded body is not a document:\n%s", html)
	}
	if !strings.Contains(html, "h1 { color: blue; }") {
		t.Errorf("branded body missing css:\n%s", html)
	}
	if !strings.Contains(html, "plain words") {
		t.Errorf("branded body missing original content:\n%s", html)
	}
	if live.last.TextBody != "" {
		t.Errorf("TextBody: got %q, want empty", live.last.TextBody)
	}
}

func TestSend_BrandedDocumentPassesThrough(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "msg-4"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	doc := "<!DOCTYPE html><html><body>done</body></html>"
	req := baseRequest(item(doc))
	req.Brand = "acme"
	req.Branding = []request.BrandDefinition{{Name: "acme"}}

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}
	if live.last.HTMLBody != doc {
		t.Errorf("document was modified:\ngot  %q\nwant %q", live.last.HTMLBody, doc)
	}
}

func TestSend_ItemBrandOverridesRequestBrand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "globex.html"), []byte("<h1>Globex</h1>"), 0o600); err != nil {
		t.Fatal(err)
	}

	live := &mockProvider{name: "live", id: "msg-5"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, dir)

	it := item("body")
	it.Brand = "globex"
	req := baseRequest(it)
	req.Brand = "acme"
	req.Branding = []request.BrandDefinition{
		{Name: "acme", Header: "missing-on-purpose.html"},
		{Name: "globex", Header: "globex.html"},
	}

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}
	if !strings.Contains(live.last.HTMLBody, "<h1>Globex</h1>") {
		t.Errorf("item-level brand not applied:\n%s", live.last.HTMLBody)
	}
}

func TestSend_UnknownBrandFallsBackToSniffing(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "msg-6"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	req := baseRequest(item("just text"))
	req.Brand = "nonexistent"

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}
	if live.last.TextBody != "just text" {
		t.Errorf("TextBody: got %q", live.last.TextBody)
	}
}

func TestSend_DeliverFalseUsesDryRunProvider(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "real"}
	dry := &mockProvider{name: "dry", id: "dry-run-1"}
	d := newTestDispatcher(live, dry, "")

	req := baseRequest(item("hello"))
	f := false
	req.Deliver = &f

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok || out.id != "dry-run-1" {
		t.Fatalf("got %+v, want dry-run success", out)
	}
	if live.calls != 0 {
		t.Errorf("live provider called %d times, want 0", live.calls)
	}
	if dry.calls != 1 {
		t.Errorf("dry-run provider called %d times, want 1", dry.calls)
	}
}

func TestSend_ProviderErrorRoutedToOnError(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", err: errors.New("delivery rejected")}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	req := baseRequest(item("hello"))
	out := runSend(t, d, req, &req.Mail[0])

	if out.ok {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.err.Error(), "delivery rejected") {
		t.Errorf("error: got %v", out.err)
	}
}

func TestSend_StrictAssetFailureRoutedToOnError(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "never"}
	d := New(live, &mockProvider{name: "dry"}, brand.NewResolver(brand.ResolverConfig{
		Root:   t.TempDir(),
		Strict: true,
	}))

	req := baseRequest(item("hello"))
	req.Brand = "acme"
	req.Branding = []request.BrandDefinition{{Name: "acme", CSS: "missing.css"}}

	out := runSend(t, d, req, &req.Mail[0])
	if out.ok {
		t.Fatal("expected failure")
	}
	if live.calls != 0 {
		t.Errorf("provider called %d times after a build failure, want 0", live.calls)
	}
}

func TestSend_AddressFieldsCopied(t *testing.T) {
	t.Parallel()

	live := &mockProvider{name: "live", id: "msg-7"}
	d := newTestDispatcher(live, &mockProvider{name: "dry"}, "")

	it := request.MailItem{
		From:    "a@x.com",
		To:      []string{"b@x.com", "c@x.com"},
		CC:      []string{"d@x.com"},
		BCC:     []string{"e@x.com"},
		Subject: "S",
		Body:    "hello",
		ReplyTo: "reply@x.com",
	}
	req := baseRequest(it)

	out := runSend(t, d, req, &req.Mail[0])
	if !out.ok {
		t.Fatalf("got %+v, want success", out)
	}

	msg := live.last
	if len(msg.To) != 2 || msg.To[0] != "b@x.com" {
		t.Errorf("To: got %v", msg.To)
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "d@x.com" {
		t.Errorf("Cc: got %v", msg.Cc)
	}
	if len(msg.Bcc) != 1 || msg.Bcc[0] != "e@x.com" {
		t.Errorf("Bcc: got %v", msg.Bcc)
	}
	if msg.ReplyTo != "reply@x.com" {
		t.Errorf("ReplyTo: got %q", msg.ReplyTo)
	}
	if msg.From != "a@x.com" || msg.Subject != "S" {
		t.Errorf("From/Subject: got %q/%q", msg.From, msg.Subject)
	}
}
