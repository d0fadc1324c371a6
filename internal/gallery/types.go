package gallery

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	xerrors "AfriArt-Gallery/internal/errors"
)

func init() {
	// 前端按数字读取价格与金额。
	decimal.MarshalJSONWithoutQuotes = true
	xerrors.Register(CodeUnavailable, xerrors.Attributes{Message: "Artwork is not available", Severity: xerrors.SeverityInfo})
	xerrors.RegisterStatus(CodeUnavailable, http.StatusConflict)
	xerrors.Register(CodeInsufficientSlots, xerrors.Attributes{Message: "Not enough slots available", Severity: xerrors.SeverityInfo})
	xerrors.RegisterStatus(CodeInsufficientSlots, http.StatusConflict)
	xerrors.Register(CodeSettlementConflict, xerrors.Attributes{
		Message:  "Order payment was already settled with a different outcome",
		Severity: xerrors.SeverityCritical,
		Status:   http.StatusConflict,
		Alert:    true,
	})
}

const (
	CodeUnavailable       xerrors.Code = "ARTWORK_UNAVAILABLE"
	CodeInsufficientSlots xerrors.Code = "INSUFFICIENT_SLOTS"

	// CodeSettlementConflict 表示订单付款结果已定，迟到的成功结果需要人工退款核对。
	CodeSettlementConflict xerrors.Code = "SETTLEMENT_CONFLICT"
)

// Errors shared by the services and the stores.
var (
	ErrArtworkNotFound    = xerrors.New(xerrors.CodeNotFound, "Artwork not found")
	ErrExhibitionNotFound = xerrors.New(xerrors.CodeNotFound, "Exhibition not found")
	ErrMessageNotFound    = xerrors.New(xerrors.CodeNotFound, "Message not found")
	ErrOrderNotFound      = xerrors.New(xerrors.CodeNotFound, "Order not found")
	ErrBookingNotFound    = xerrors.New(xerrors.CodeNotFound, "Booking not found")
	ErrArtworkUnavailable = xerrors.New(CodeUnavailable, "Artwork is not available")
	ErrInsufficientSlots  = xerrors.New(CodeInsufficientSlots, "Not enough slots available")
	ErrSettlementConflict = xerrors.New(CodeSettlementConflict, "Order payment was already settled with a different outcome")
)

// ArtworkStatus 作品状态。
type ArtworkStatus string

const (
	ArtworkAvailable ArtworkStatus = "available"
	ArtworkSold      ArtworkStatus = "sold"
)

// Artwork 描述一件作品。
type Artwork struct {
	ID          int64           `json:"id,string"`
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	ArtistID    *int64          `json:"artist_id,omitempty"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Dimensions  string          `json:"dimensions,omitempty"`
	Medium      string          `json:"medium,omitempty"`
	Year        int             `json:"year,omitempty"`
	Status      ArtworkStatus   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ArtworkInput is the payload for creating or replacing an artwork.
type ArtworkInput struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Artist      string          `json:"artist" validate:"max=255"`
	ArtistID    *int64          `json:"artist_id"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Dimensions  string          `json:"dimensions" validate:"max=100"`
	Medium      string          `json:"medium" validate:"max=100"`
	Year        int             `json:"year" validate:"gte=0,lte=3000"`
	Status      ArtworkStatus   `json:"status" validate:"omitempty,oneof=available sold"`
}

// ExhibitionStatus 展览状态，由日期推导。
type ExhibitionStatus string

const (
	ExhibitionUpcoming ExhibitionStatus = "upcoming"
	ExhibitionOngoing  ExhibitionStatus = "ongoing"
	ExhibitionPast     ExhibitionStatus = "past"
)

// Date is a calendar day. It accepts "2006-01-02" or RFC 3339 on input and
// renders as "2006-01-02".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar day.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, xerrors.New(xerrors.CodeInvalidArgument, "Invalid date: "+raw)
	}
	return NewDate(t), nil
}

// String renders the day.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Exhibition 描述一场展览及其展位余量。
type Exhibition struct {
	ID             int64            `json:"id,string"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Location       string           `json:"location"`
	StartDate      Date             `json:"startDate"`
	EndDate        Date             `json:"endDate"`
	TicketPrice    decimal.Decimal  `json:"ticketPrice"`
	ImageURL       string           `json:"imageUrl"`
	TotalSlots     int              `json:"totalSlots"`
	AvailableSlots int              `json:"availableSlots"`
	Status         ExhibitionStatus `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ExhibitionInput is the payload for creating or replacing an exhibition.
// AvailableSlots may be omitted; it then follows TotalSlots minus the slots
// already booked.
type ExhibitionInput struct {
	Title          string          `json:"title" validate:"required,max=255"`
	Description    string          `json:"description"`
	Location       string          `json:"location" validate:"max=255"`
	StartDate      Date            `json:"startDate"`
	EndDate        Date            `json:"endDate"`
	TicketPrice    decimal.Decimal `json:"ticketPrice"`
	ImageURL       string          `json:"imageUrl"`
	TotalSlots     int             `json:"totalSlots" validate:"gte=0"`
	AvailableSlots *int            `json:"availableSlots" validate:"omitempty,gte=0"`
}

// MessageStatus 留言处理状态。
type MessageStatus string

const (
	MessageNew     MessageStatus = "new"
	MessageRead    MessageStatus = "read"
	MessageReplied MessageStatus = "replied"
)

// ParseMessageStatus validates a status sent by the admin UI.
func ParseMessageStatus(raw string) (MessageStatus, error) {
	switch status := MessageStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case MessageNew, MessageRead, MessageReplied:
		return status, nil
	}
	return "", xerrors.New(xerrors.CodeInvalidArgument, "Invalid status")
}

// Message 联系表单留言。
type Message struct {
	ID        int64         `json:"id,string"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Message   string        `json:"message"`
	Source    string        `json:"source"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"date_sent"`
}

// MessageInput is the public contact form payload.
type MessageInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=32"`
	Message string `json:"message" validate:"required"`
	Source  string `json:"source" validate:"max=50"`
}

// OrderKind distinguishes the two things a customer can pay for.
type OrderKind string

const (
	OrderArtwork    OrderKind = "artwork"
	OrderExhibition OrderKind = "exhibition"
)

// ParseOrderKind validates the orderType sent by the client.
func ParseOrderKind(raw string) (OrderKind, error) {
	switch kind := OrderKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case OrderArtwork, OrderExhibition:
		return kind, nil
	}
	return "", xerrors.New(xerrors.CodeInvalidArgument, "Invalid order type")
}

// OrderStatus 订单状态。
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// TicketStatus 门票状态。
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// PaymentStatus 订单与门票共享的支付状态。
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// CheckPaymentTransition 判断付款状态能否由 current 变为 next，apply 为 false 时无需写入。
// completed 与 failed 都是终态：已完成的订单忽略迟到的失败结果，
// 已失败的订单收到成功结果时返回 ErrSettlementConflict，由调用方转人工退款核对。
func CheckPaymentTransition(current, next PaymentStatus) (apply bool, err error) {
	switch {
	case current == next:
		return false, nil
	case current == PaymentPending:
		return true, nil
	case next == PaymentCompleted:
		return false, ErrSettlementConflict
	default:
		return false, nil
	}
}

// ArtworkOrder 作品订单。
type ArtworkOrder struct {
	ID              int64           `json:"id,string"`
	UserID          int64           `json:"user_id"`
	UserName        string          `json:"user_name"`
	ArtworkID       int64           `json:"artwork_id,string"`
	ArtworkTitle    string          `json:"artwork_title"`
	Artist          string          `json:"artist"`
	ArtistID        *int64          `json:"artist_id,omitempty"`
	Medium          string          `json:"medium,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	OrderDate       time.Time       `json:"order_date"`
}

// Booking 展览预订，同时也是门票视图的数据来源。
type Booking struct {
	ID                 int64           `json:"id,string"`
	UserID             int64           `json:"user_id"`
	UserName           string          `json:"user_name"`
	ExhibitionID       int64           `json:"exhibition_id,string"`
	ExhibitionTitle    string          `json:"exhibition_title"`
	ExhibitionImageURL string          `json:"exhibition_image_url"`
	BookingDate        time.Time       `json:"booking_date"`
	TicketCode         string          `json:"ticket_code"`
	Slots              int             `json:"slots"`
	Phone              string          `json:"phone,omitempty"`
	Status             TicketStatus    `json:"status"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
}

// ArtworkOrderInput is the customer payload for ordering an artwork.
type ArtworkOrderInput struct {
	ArtworkID       FlexID `json:"artworkId" validate:"required,gt=0"`
	DeliveryAddress string `json:"deliveryAddress" validate:"max=500"`
	Phone           string `json:"phone" validate:"max=32"`
}

// BookingInput is the customer payload for booking exhibition slots.
type BookingInput struct {
	ExhibitionID FlexID `json:"exhibitionId" validate:"required,gt=0"`
	Slots        int    `json:"slots" validate:"required,gte=1"`
	Phone        string `json:"phone" validate:"max=32"`
}

// FlexID is an id the web client may send either as a number or as a string.
type FlexID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "Invalid id: "+raw)
	}
	*id = FlexID(v)
	return nil
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	UserID   int64
	ArtistID int64
}

// Orders groups both order kinds for listings.
type Orders struct {
	Orders   []ArtworkOrder `json:"orders"`
	Bookings []Booking      `json:"bookings"`
}

// Artist is the admin view of an artist account.
type Artist struct {
	ID              int64     `json:"id,string"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Bio             string    `json:"bio"`
	ProfileImageURL string    `json:"profile_image_url"`
	Phone           string    `json:"phone"`
	CreatedAt       time.Time `json:"created_at"`
	ArtworkCount    int       `json:"artwork_count"`
}

// PaymentTarget is the order a payment settles, resolved for the payment
// service.
type PaymentTarget struct {
	Kind       OrderKind
	ID         int64
	UserID     int64
	UserName   string
	UserEmail  string
	Title      string
	Amount     decimal.Decimal
	TicketCode string
	Payment    PaymentStatus
	// Artwork 是作品订单对应作品的当前状态，作品已删除或预订时为空。
	Artwork    ArtworkStatus
}
