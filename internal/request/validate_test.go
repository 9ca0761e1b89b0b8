package request

import (
	"strings"
	"testing"
)

// validRequest returns a request that passes validation; tests mutate it.
func validRequest() *Request {
	return &Request{
		Verification: &VerificationSettings{
			Enabled:  false,
			Response: "challenge-response",
			Secret:   "shared-secret",
		},
		Mail: []MailItem{
			{
				From:    "a@x.com",
				To:      []string{"b@x.com"},
				Subject: "S",
				Body:    "hello",
			},
		},
	}
}

func TestValidate_ValidRequest(t *testing.T) {
	t.Parallel()

	if err := Validate(validRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVerification(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Verification = nil

	err := Validate(req)
	if err == nil {
		t.Fatal("expected error for missing verification settings")
	}
	if !strings.Contains(err.Error(), "verification") {
		t.Errorf("error %q does not mention verification", err)
	}
}

// The handler has always required response and secret only when
// verification is disabled; when it is enabled the fields pass validation
// unchecked (and the verification call itself rejects them). This test
// pins that contract.
func TestValidate_VerificationFieldsRequiredOnlyWhenDisabled(t *testing.T) {
	t.Parallel()

	disabled := validRequest()
	disabled.Verification.Enabled = false
	disabled.Verification.Response = ""
	if err := Validate(disabled); err == nil {
		t.Error("expected error: disabled verification without response")
	}

	disabled = validRequest()
	disabled.Verification.Enabled = false
	disabled.Verification.Secret = ""
	if err := Validate(disabled); err == nil {
		t.Error("expected error: disabled verification without secret")
	}

	enabled := validRequest()
	enabled.Verification.Enabled = true
	enabled.Verification.Response = ""
	enabled.Verification.Secret = ""
	if err := Validate(enabled); err != nil {
		t.Errorf("enabled verification with empty fields should validate, got %v", err)
	}
}

func TestValidate_MissingMail(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Mail = nil
	if err := Validate(req); err == nil {
		t.Error("expected error for nil mail")
	}

	req = validRequest()
	req.Mail = []MailItem{}
	if err := Validate(req); err == nil {
		t.Error("expected error for empty mail")
	}
}

func TestValidate_MailItemFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*MailItem)
	}{
		{"missing from", func(m *MailItem) { m.From = "" }},
		{"missing to", func(m *MailItem) { m.To = nil }},
		{"empty to", func(m *MailItem) { m.To = []string{} }},
		{"missing subject", func(m *MailItem) { m.Subject = "" }},
		{"missing body", func(m *MailItem) { m.Body = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req.Mail[0])
			if err := Validate(req); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestValidate_ReportsFirstFailingItem(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Mail = append(req.Mail, MailItem{To: []string{"c@x.com"}, Subject: "T", Body: "b"})

	err := Validate(req)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "mail[1]") {
		t.Errorf("error %q does not point at the failing item", err)
	}
}

func TestShouldDeliver_Defaults(t *testing.T) {
	t.Parallel()

	req := validRequest()
	if !req.ShouldDeliver() {
		t.Error("unset deliver flag should default to true")
	}

	f := false
	req.Deliver = &f
	if req.ShouldDeliver() {
		t.Error("deliver=false should suppress delivery")
	}

	tr := true
	req.Deliver = &tr
	if !req.ShouldDeliver() {
		t.Error("deliver=true should allow delivery")
	}
}
