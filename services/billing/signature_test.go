package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		header string
		at     time.Time
		want   error
	}{
		{name: "valid", header: Sign("whsec", body, now), at: now},
		{name: "within tolerance", header: Sign("whsec", body, now.Add(-4*time.Minute)), at: now},
		{name: "stale", header: Sign("whsec", body, now.Add(-6*time.Minute)), at: now, want: ErrStaleSignature},
		{name: "future", header: Sign("whsec", body, now.Add(6*time.Minute)), at: now, want: ErrStaleSignature},
		{name: "wrong secret", header: Sign("other", body, now), at: now, want: ErrInvalidSignature},
		{name: "missing", header: "", at: now, want: ErrMissingSignature},
		{name: "no timestamp", header: "v1=abcd", at: now, want: ErrInvalidSignature},
		{name: "garbage", header: "t=abc,v1=zz", at: now, want: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature("whsec", tt.header, body, tt.at, 5*time.Minute)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifySignatureAcceptsAnyMatchingV1(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(1_700_000_000, 0)
	valid := Sign("whsec", body, now)

	header := "t=1700000000,v1=deadbeef," + valid[len("t=1700000000,"):]
	require.NoError(t, VerifySignature("whsec", header, body, now, time.Minute))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	header := Sign("whsec", []byte(`{"seats":1}`), now)

	require.ErrorIs(t, VerifySignature("whsec", header, []byte(`{"seats":9}`), now, time.Minute), ErrInvalidSignature)
}
