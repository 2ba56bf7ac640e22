package models

// Credential is the bearer token issued by the identity service plus the
// account identity used for session-ownership comparison. A zero
// AccountID means the identity fetch did not run or did not return one.
type Credential struct {
	Token     string `json:"token"`
	AccountID int    `json:"accountId,omitempty"`
	UUID      string `json:"uuid,omitempty"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
}

// HasToken reports whether a token has been issued.
func (c Credential) HasToken() bool {
	return c.Token != ""
}
