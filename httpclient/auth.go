package httpclient

import "net/http"

// AuthType identifies how credentials are attached to a request.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer
	// AuthBasic uses HTTP Basic authentication.
	AuthBasic
	// AuthAPIKey sends a key in a header or query parameter.
	AuthAPIKey
)

// AuthConfig is static credential configuration passed through to the
// transport. Obtaining or refreshing tokens is the caller's business.
type AuthConfig struct {
	Type     AuthType
	Token    string
	Username string
	Password string
	// Key is the API key value.
	Key string
	// Name is the header or query parameter name. Defaults to "X-API-Key".
	Name string
	// InQuery sends the API key as a query parameter instead of a header.
	InQuery bool
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BasicAuth creates a basic auth config.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// APIKeyAuth creates an API key auth config sent in the named header.
func APIKeyAuth(key, headerName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: headerName}
}

// APIKeyAuthQuery creates an API key auth config sent as a query parameter.
func APIKeyAuthQuery(key, paramName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: paramName, InQuery: true}
}

// String names the auth type without exposing credentials.
func (a *AuthConfig) String() string {
	if a == nil {
		return "none"
	}
	switch a.Type {
	case AuthBearer:
		return "bearer"
	case AuthBasic:
		return "basic"
	case AuthAPIKey:
		return "api_key"
	default:
		return "none"
	}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = "X-API-Key"
		}
		if a.InQuery {
			q := req.URL.Query()
			q.Set(name, a.Key)
			req.URL.RawQuery = q.Encode()
			return
		}
		req.Header.Set(name, a.Key)
	}
}
