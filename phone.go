package shelf

import "github.com/nyaruka/phonenumbers"

// NormalizePhone canonicalizes a phone number to E.164 when it parses;
// otherwise the input is kept as provided. Phone is optional profile data,
// not a credential, so unparseable values are not rejected here.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
