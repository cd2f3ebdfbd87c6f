package shelf

// AuthResponse is the payload returned on successful registration or login.
type AuthResponse struct {
	Token    string   `json:"token"`
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// AuthResult is a tagged union of a successful authentication (token +
// profile) or a structured error list. Exactly one branch is populated,
// governed by Succeeded, so callers cannot read a nil payload on a success
// path. Login failures carry no details at all.
type AuthResult struct {
	succeeded bool
	response  *AuthResponse
	errors    []ErrorDetail
}

// Succeeded builds the success branch.
func Succeeded(response *AuthResponse) AuthResult {
	return AuthResult{succeeded: true, response: response}
}

// Failed builds the failure branch. Calling it with no details yields the
// detail-free failure Login responds with.
func Failed(details ...ErrorDetail) AuthResult {
	return AuthResult{errors: details}
}

// OK reports whether the result carries a response.
func (r AuthResult) OK() bool {
	return r.succeeded
}

// Response returns the success payload; ok is false on the failure branch.
func (r AuthResult) Response() (*AuthResponse, bool) {
	if !r.succeeded {
		return nil, false
	}
	return r.response, true
}

// Errors returns a copy of the failure details. Empty for successful results
// and for login failures, which never surface detail.
func (r AuthResult) Errors() []ErrorDetail {
	if r.succeeded || len(r.errors) == 0 {
		return nil
	}
	out := make([]ErrorDetail, len(r.errors))
	copy(out, r.errors)
	return out
}
