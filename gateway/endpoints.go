package gateway

import "strings"

// Console backend routes used by this client.
const (
	EndpointLogin                = "/api/auth/login/"
	EndpointRegister             = "/api/auth/register/"
	EndpointTokenRefresh         = "/api/auth/token/refresh/"
	EndpointPasswordReset        = "/api/auth/password-reset/"
	EndpointPasswordResetConfirm = "/api/auth/password-reset/confirm/"
	EndpointProfile              = "/api/auth/profile/"
	EndpointChangePassword       = "/api/auth/change-password/"

	EndpointTemplates      = "/api/templates/"
	EndpointGraduants      = "/api/graduants/"
	EndpointGenerate       = "/api/certificates/generate/"
	EndpointSendEmails     = "/api/certificates/send-email/"
	EndpointDashboardStats = "/api/dashboard/stats/"
)

// publicEndpoints can be called without a session; no token is attached and
// no refresh-and-retry applies to them.
var publicEndpoints = map[string]struct{}{
	EndpointLogin:                {},
	EndpointRegister:             {},
	EndpointPasswordReset:        {},
	EndpointPasswordResetConfirm: {},
}

// IsPublicEndpoint reports whether endpoint may be called unauthenticated.
func IsPublicEndpoint(endpoint string) bool {
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		endpoint = endpoint[:idx]
	}
	_, ok := publicEndpoints[endpoint]
	return ok
}
