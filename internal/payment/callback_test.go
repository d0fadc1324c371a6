package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "AfriArt-Gallery/internal/errors"
)

func TestParseCallbackSuccess(t *testing.T) {
	cb, err := ParseCallback(callbackBody("ws_CO_191220191020363925", 0, "NLJ7RT61SV"))
	require.NoError(t, err)

	assert.Equal(t, "MR-001", cb.MerchantRequestID)
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
	assert.Equal(t, ResultSuccess, cb.Result.Code)
	assert.Equal(t, "NLJ7RT61SV", cb.Result.ReceiptNumber)
	assert.Equal(t, "254712345678", cb.PhoneNumber)
	assert.Equal(t, "12000", cb.Amount)
	assert.Equal(t, StatusCompleted, StatusForResult(cb.Result.Code))
}

func TestParseCallbackWithoutMetadata(t *testing.T) {
	cb, err := ParseCallback(callbackBody("ws_CO_1", ResultCancelledByUser, ""))
	require.NoError(t, err)
	assert.Equal(t, ResultCancelledByUser, cb.Result.Code)
	assert.Empty(t, cb.Result.ReceiptNumber)
	assert.Equal(t, StatusCancelled, StatusForResult(cb.Result.Code))
}

func TestParseCallbackRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"Body":`,
		"missing callback":   `{"Body":{}}`,
		"missing checkout":   `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"missing resultcode": `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCallback([]byte(body))
			require.Error(t, err)
			assert.Equal(t, CodeInvalidCallback, xerrors.CodeOf(err))
		})
	}
}
