package gallery

import (
	"context"

	"AfriArt-Gallery/internal/auth"
)

// ArtworkStore 定义作品的持久化能力。
type ArtworkStore interface {
	// ListArtworks returns every artwork, newest first.
	ListArtworks(ctx context.Context) ([]Artwork, error)
	GetArtwork(ctx context.Context, id int64) (*Artwork, error)
	CreateArtwork(ctx context.Context, artwork *Artwork) error
	UpdateArtwork(ctx context.Context, artwork *Artwork) error
	DeleteArtwork(ctx context.Context, id int64) error
}

// ExhibitionStore 定义展览的持久化能力。
type ExhibitionStore interface {
	// ListExhibitions returns every exhibition ordered by start date.
	ListExhibitions(ctx context.Context) ([]Exhibition, error)
	GetExhibition(ctx context.Context, id int64) (*Exhibition, error)
	CreateExhibition(ctx context.Context, exhibition *Exhibition) error
	// UpdateExhibition locks the row, lets apply rewrite it and saves the
	// result. Bookings and slot releases cannot interleave with apply.
	UpdateExhibition(ctx context.Context, id int64, apply func(current *Exhibition) error) error
	DeleteExhibition(ctx context.Context, id int64) error
	SetExhibitionStatus(ctx context.Context, id int64, status ExhibitionStatus) error
}

// MessageStore 定义留言的持久化能力。
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *Message) error
	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context) ([]Message, error)
	UpdateMessageStatus(ctx context.Context, id int64, status MessageStatus) error
}

// OrderStore 定义订单与预订的持久化能力。
//
// CreateBooking must reserve booking.Slots on the exhibition and insert the
// booking atomically, returning ErrInsufficientSlots when the exhibition has
// fewer slots left. Both payment setters follow CheckPaymentTransition under a
// row lock: a settled order is never rewritten, and a success arriving after a
// failure returns ErrSettlementConflict without touching the order.
// SetArtworkOrderPayment with PaymentCompleted also marks the artwork sold and
// cancels the other pending orders for it. SetBookingPayment with PaymentFailed
// cancels the ticket and returns its slots to the exhibition, once.
type OrderStore interface {
	CreateArtworkOrder(ctx context.Context, order *ArtworkOrder) error
	GetArtworkOrder(ctx context.Context, id int64) (*ArtworkOrder, error)
	ListArtworkOrders(ctx context.Context, filter OrderFilter) ([]ArtworkOrder, error)
	SetArtworkOrderPayment(ctx context.Context, id int64, status PaymentStatus) error

	CreateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	ListBookings(ctx context.Context, filter OrderFilter) ([]Booking, error)
	SetBookingPayment(ctx context.Context, id int64, status PaymentStatus) error
}

// Store aggregates the gallery stores.
type Store interface {
	ArtworkStore
	ExhibitionStore
	MessageStore
	OrderStore
}

// AccountDirectory exposes the account reads the gallery needs.
type AccountDirectory interface {
	FindAccountByID(ctx context.Context, role auth.Role, id int64) (*auth.Account, error)
	ListAccounts(ctx context.Context, role auth.Role) ([]auth.Account, error)
}
