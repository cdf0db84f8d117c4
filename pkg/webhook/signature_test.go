package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	body := []byte(`{"event_type":"transaction.completed"}`)

	sig := Sign("top-secret", body)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, Verify("top-secret", body, sig))
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"amount":"100"}`)
	sig := Sign("top-secret", body)

	assert.False(t, Verify("top-secret", []byte(`{"amount":"999"}`), sig))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"amount":"100"}`)
	sig := Sign("top-secret", body)

	assert.False(t, Verify("other-secret", body, sig))
}

func TestVerify_RejectsMalformedSignature(t *testing.T) {
	body := []byte(`{}`)

	assert.False(t, Verify("s", body, ""))
	assert.False(t, Verify("s", body, "md5=abcdef"))
	assert.False(t, Verify("s", body, "sha256=not-hex"))
}

func TestSign_Deterministic(t *testing.T) {
	body := []byte("payload")
	assert.Equal(t, Sign("s", body), Sign("s", body))
	assert.NotEqual(t, Sign("s", body), Sign("s2", body))
}
