// SPDX-License-Identifier: BSL-1.1

package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSign_MatchesHMACSHA256(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"event":"reservation.created"}`)

	got := sign(secret, body)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
}

func TestSign_DifferentSecretsDifferentSignatures(t *testing.T) {
	body := []byte(`{"event":"reservation.cancelled"}`)
	assert.NotEqual(t, sign("secret-a", body), sign("secret-b", body))
}

func TestSnippet_TruncatesAtLimit(t *testing.T) {
	small := []byte("short body")
	assert.Equal(t, "short body", snippet(small))

	large := []byte(strings.Repeat("x", responseSnippetLimit+500))
	got := snippet(large)
	assert.Len(t, got, responseSnippetLimit)
}

func TestBackoffFor_FollowsSpecSchedule(t *testing.T) {
	want := []time.Duration{
		0,
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		1 * time.Hour,
		6 * time.Hour,
	}
	for i, w := range want {
		assert.Equal(t, w, backoffFor(i))
	}
}

func TestBackoffFor_OutOfRangeClampsToLongestDelay(t *testing.T) {
	assert.Equal(t, retrySchedule[len(retrySchedule)-1], backoffFor(len(retrySchedule)+10))
	assert.Equal(t, retrySchedule[len(retrySchedule)-1], backoffFor(-1))
}

func TestRetrySchedule_BoundsMaxAttemptsToSix(t *testing.T) {
	assert.Len(t, retrySchedule, 6)
}
