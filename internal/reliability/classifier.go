package reliability

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// StatusClass buckets an HTTP status for metric labels.
func StatusClass(code int) string {
	switch {
	case code == 429:
		return "rate_limited"
	case code >= 500:
		return "server_error"
	case code >= 400:
		return "client_error"
	case code >= 200 && code < 300:
		return "ok"
	default:
		return "unexpected"
	}
}
