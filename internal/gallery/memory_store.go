package gallery

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore 以内存方式保存画廊数据，用于开发与测试。
type MemoryStore struct {
	mu          sync.RWMutex
	artworks    map[int64]*Artwork
	exhibitions map[int64]*Exhibition
	messages    map[int64]*Message
	orders      map[int64]*ArtworkOrder
	bookings    map[int64]*Booking
	seq         map[string]int64
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artworks:    make(map[int64]*Artwork),
		exhibitions: make(map[int64]*Exhibition),
		messages:    make(map[int64]*Message),
		orders:      make(map[int64]*ArtworkOrder),
		bookings:    make(map[int64]*Booking),
		seq:         make(map[string]int64),
	}
}

func (m *MemoryStore) next(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneArtwork(a *Artwork) Artwork {
	clone := *a
	clone.ArtistID = cloneID(a.ArtistID)
	return clone
}

func cloneOrder(o *ArtworkOrder) ArtworkOrder {
	clone := *o
	clone.ArtistID = cloneID(o.ArtistID)
	return clone
}

// ListArtworks 实现 ArtworkStore 接口。
func (m *MemoryStore) ListArtworks(_ context.Context) ([]Artwork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Artwork, 0, len(m.artworks))
	for _, a := range m.artworks {
		out = append(out, cloneArtwork(a))
	}
	sortNewestFirst(out)
	return out, nil
}

// GetArtwork 实现 ArtworkStore 接口。
func (m *MemoryStore) GetArtwork(_ context.Context, id int64) (*Artwork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artworks[id]
	if !ok {
		return nil, ErrArtworkNotFound
	}
	clone := cloneArtwork(a)
	return &clone, nil
}

// CreateArtwork 实现 ArtworkStore 接口。
func (m *MemoryStore) CreateArtwork(_ context.Context, artwork *Artwork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	artwork.ID = m.next("artworks")
	clone := cloneArtwork(artwork)
	m.artworks[artwork.ID] = &clone
	return nil
}

// UpdateArtwork 实现 ArtworkStore 接口。
func (m *MemoryStore) UpdateArtwork(_ context.Context, artwork *Artwork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artworks[artwork.ID]; !ok {
		return ErrArtworkNotFound
	}
	clone := cloneArtwork(artwork)
	m.artworks[artwork.ID] = &clone
	return nil
}

// DeleteArtwork 实现 ArtworkStore 接口。
func (m *MemoryStore) DeleteArtwork(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.artworks[id]; !ok {
		return ErrArtworkNotFound
	}
	delete(m.artworks, id)
	return nil
}

// ListExhibitions 实现 ExhibitionStore 接口。
func (m *MemoryStore) ListExhibitions(_ context.Context) ([]Exhibition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Exhibition, 0, len(m.exhibitions))
	for _, e := range m.exhibitions {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate.Time) {
			return out[i].StartDate.Before(out[j].StartDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetExhibition 实现 ExhibitionStore 接口。
func (m *MemoryStore) GetExhibition(_ context.Context, id int64) (*Exhibition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exhibitions[id]
	if !ok {
		return nil, ErrExhibitionNotFound
	}
	clone := *e
	return &clone, nil
}

// CreateExhibition 实现 ExhibitionStore 接口。
func (m *MemoryStore) CreateExhibition(_ context.Context, exhibition *Exhibition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exhibition.ID = m.next("exhibitions")
	clone := *exhibition
	m.exhibitions[exhibition.ID] = &clone
	return nil
}

// UpdateExhibition 实现 ExhibitionStore 接口。
func (m *MemoryStore) UpdateExhibition(_ context.Context, id int64, apply func(current *Exhibition) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exhibitions[id]
	if !ok {
		return ErrExhibitionNotFound
	}
	clone := *e
	if err := apply(&clone); err != nil {
		return err
	}
	clone.ID = id
	m.exhibitions[id] = &clone
	return nil
}

// DeleteExhibition 实现 ExhibitionStore 接口。
func (m *MemoryStore) DeleteExhibition(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exhibitions[id]; !ok {
		return ErrExhibitionNotFound
	}
	delete(m.exhibitions, id)
	return nil
}

// SetExhibitionStatus 实现 ExhibitionStore 接口。
func (m *MemoryStore) SetExhibitionStatus(_ context.Context, id int64, status ExhibitionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exhibitions[id]
	if !ok {
		return ErrExhibitionNotFound
	}
	e.Status = status
	return nil
}

// CreateMessage 实现 MessageStore 接口。
func (m *MemoryStore) CreateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.next("messages")
	clone := *msg
	m.messages[msg.ID] = &clone
	return nil
}

// ListMessages 实现 MessageStore 接口。
func (m *MemoryStore) ListMessages(_ context.Context) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateMessageStatus 实现 MessageStore 接口。
func (m *MemoryStore) UpdateMessageStatus(_ context.Context, id int64, status MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.Status = status
	return nil
}

// CreateArtworkOrder 实现 OrderStore 接口。
func (m *MemoryStore) CreateArtworkOrder(_ context.Context, order *ArtworkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.next("orders")
	clone := cloneOrder(order)
	m.orders[order.ID] = &clone
	return nil
}

// GetArtworkOrder 实现 OrderStore 接口。
func (m *MemoryStore) GetArtworkOrder(_ context.Context, id int64) (*ArtworkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := cloneOrder(o)
	return &clone, nil
}

// ListArtworkOrders 实现 OrderStore 接口，结果按下单时间倒序。
func (m *MemoryStore) ListArtworkOrders(_ context.Context, filter OrderFilter) ([]ArtworkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ArtworkOrder, 0)
	for _, o := range m.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.ArtistID != 0 && (o.ArtistID == nil || *o.ArtistID != filter.ArtistID) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SetArtworkOrderPayment 实现 OrderStore 接口。
func (m *MemoryStore) SetArtworkOrderPayment(_ context.Context, id int64, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	apply, err := CheckPaymentTransition(o.PaymentStatus, status)
	if !apply {
		return err
	}
	o.PaymentStatus = status
	switch status {
	case PaymentCompleted:
		o.Status = OrderCompleted
		if a, ok := m.artworks[o.ArtworkID]; ok {
			a.Status = ArtworkSold
		}
		// 作品已售出，同一作品上其余待付款的订单作废。
		for _, other := range m.orders {
			if other.ID != o.ID && other.ArtworkID == o.ArtworkID && other.PaymentStatus == PaymentPending {
				other.PaymentStatus = PaymentFailed
				other.Status = OrderCancelled
			}
		}
	case PaymentFailed:
		o.Status = OrderCancelled
	}
	return nil
}

// CreateBooking 实现 OrderStore 接口，预留展位与写入预订在同一把锁内完成。
func (m *MemoryStore) CreateBooking(_ context.Context, booking *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exhibitions[booking.ExhibitionID]
	if !ok {
		return ErrExhibitionNotFound
	}
	if booking.Slots > e.AvailableSlots {
		return ErrInsufficientSlots
	}
	e.AvailableSlots -= booking.Slots
	booking.ID = m.next("bookings")
	clone := *booking
	m.bookings[booking.ID] = &clone
	return nil
}

// GetBooking 实现 OrderStore 接口。
func (m *MemoryStore) GetBooking(_ context.Context, id int64) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

// ListBookings 实现 OrderStore 接口，结果按预订时间倒序。
func (m *MemoryStore) ListBookings(_ context.Context, filter OrderFilter) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Booking, 0)
	for _, b := range m.bookings {
		if filter.UserID != 0 && b.UserID != filter.UserID {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SetBookingPayment 实现 OrderStore 接口。
func (m *MemoryStore) SetBookingPayment(_ context.Context, id int64, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	apply, err := CheckPaymentTransition(b.PaymentStatus, status)
	if !apply {
		return err
	}
	if status == PaymentCompleted && b.Status == TicketCancelled {
		return ErrSettlementConflict
	}
	if status == PaymentFailed && b.Status != TicketCancelled {
		b.Status = TicketCancelled
		if e, ok := m.exhibitions[b.ExhibitionID]; ok {
			e.AvailableSlots = min(e.TotalSlots, e.AvailableSlots+b.Slots)
		}
	}
	b.PaymentStatus = status
	return nil
}
