package payment

import (
	"fmt"

	"github.com/tidwall/gjson"

	xerrors "AfriArt-Gallery/internal/errors"
)

// Callback 是 Daraja 回调中 Body.stkCallback 的内容。
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	Result            Result
	Amount            string
	PhoneNumber       string
}

// ParseCallback 解析 Daraja 的 STK 回调。
func ParseCallback(body []byte) (*Callback, error) {
	if !gjson.ValidBytes(body) {
		return nil, xerrors.New(CodeInvalidCallback, "Invalid callback payload")
	}
	cb := gjson.GetBytes(body, "Body.stkCallback")
	if !cb.Exists() {
		return nil, xerrors.New(CodeInvalidCallback, "Callback is missing Body.stkCallback")
	}
	checkoutID := cb.Get("CheckoutRequestID").String()
	code := cb.Get("ResultCode")
	if checkoutID == "" || !code.Exists() {
		return nil, xerrors.New(CodeInvalidCallback, "Callback is missing CheckoutRequestID or ResultCode")
	}
	items := cb.Get("CallbackMetadata.Item")
	return &Callback{
		MerchantRequestID: cb.Get("MerchantRequestID").String(),
		CheckoutRequestID: checkoutID,
		Result: Result{
			Code:          int(code.Int()),
			Description:   cb.Get("ResultDesc").String(),
			ReceiptNumber: metadataItem(items, "MpesaReceiptNumber"),
		},
		Amount:      metadataItem(items, "Amount"),
		PhoneNumber: metadataItem(items, "PhoneNumber"),
	}, nil
}

func metadataItem(items gjson.Result, name string) string {
	return items.Get(fmt.Sprintf(`#(Name==%q).Value`, name)).String()
}
