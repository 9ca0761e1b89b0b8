package request

import "fmt"

// Validate checks a request for the fields the handler depends on. It
// reports the first problem found and stops; it never accumulates errors.
//
// Note the verification rule: response and secret are required only when
// verification is disabled. This mirrors the contract the handler has
// always exposed; see TestValidate_VerificationFieldsRequiredOnlyWhenDisabled.
func Validate(req *Request) error {
	if req.Verification == nil {
		return fmt.Errorf("request has no verification settings")
	}

	if !req.Verification.Enabled {
		if req.Verification.Response == "" || req.Verification.Secret == "" {
			return fmt.Errorf("verification settings require both response and secret")
		}
	}

	if len(req.Mail) == 0 {
		return fmt.Errorf("request has no mail items")
	}

	for i, item := range req.Mail {
		if item.From == "" {
			return fmt.Errorf("mail[%d] has no from address", i)
		}
		if len(item.To) == 0 {
			return fmt.Errorf("mail[%d] has no recipients", i)
		}
		if item.Subject == "" {
			return fmt.Errorf("mail[%d] has no subject", i)
		}
		if item.Body == "" {
			return fmt.Errorf("mail[%d] has no body", i)
		}
	}

	return nil
}
