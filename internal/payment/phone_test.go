package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "AfriArt-Gallery/internal/errors"
)

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"254712345678":     "254712345678",
		"+254 712 345 678": "254712345678",
		"0712345678":       "254712345678",
		"0712-345-678":     "254712345678",
		"712345678":        "254712345678",
		"0110123456":       "254110123456",
		"(254)110123456":   "254110123456",
	}
	for raw, want := range valid {
		got, err := NormalizePhone(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "12345", "0812345678", "254812345678", "07123456789", "07a2345678", "+1 415 555 0100"} {
		_, err := NormalizePhone(raw)
		require.Error(t, err, raw)
		assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err), raw)
		assert.Equal(t, "Invalid phone number. Use the format 2547XXXXXXXX", xerrors.PublicMessage(err))
	}
}
