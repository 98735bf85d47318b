package reliability

import "testing"

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}
