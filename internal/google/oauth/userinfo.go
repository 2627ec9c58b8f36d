package oauth

// UserInfo is the profile returned by Google's user info endpoint.
type UserInfo struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
	Picture    string `json:"picture"`
	// HostedDomain is the Workspace domain, empty for consumer accounts.
	HostedDomain string `json:"hd"`
}
