package gallery

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

// NewTicketCode 生成 AFRI-XXXXXXXX 形式的门票编号。
func NewTicketCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AFRI-" + strings.ToUpper(raw[:8])
}

// PlaceArtworkOrder 为普通用户下单购买在售作品，订单金额取作品价格。
func (s *Service) PlaceArtworkOrder(ctx context.Context, subject *auth.Subject, in ArtworkOrderInput) (*ArtworkOrder, error) {
	if err := auth.CanPlaceOrder(subject); err != nil {
		return nil, err
	}
	if err := Validate(&in); err != nil {
		return nil, err
	}
	artwork, err := s.store.GetArtwork(ctx, int64(in.ArtworkID))
	if err != nil {
		return nil, err
	}
	if artwork.Status != ArtworkAvailable {
		return nil, ErrArtworkUnavailable
	}
	order := &ArtworkOrder{
		UserID:          subject.ID,
		UserName:        subject.Name,
		ArtworkID:       artwork.ID,
		ArtworkTitle:    artwork.Title,
		Artist:          artwork.Artist,
		ArtistID:        artwork.ArtistID,
		Medium:          artwork.Medium,
		TotalAmount:     artwork.Price,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Phone:           strings.TrimSpace(in.Phone),
		Status:          OrderPending,
		PaymentStatus:   PaymentPending,
		OrderDate:       s.now().UTC(),
	}
	if err := s.store.CreateArtworkOrder(ctx, order); err != nil {
		return nil, err
	}
	s.audit.Info("artwork_order_placed",
		slog.Int64("order_id", order.ID),
		slog.Int64("artwork_id", artwork.ID),
		slog.String("subject", subject.String()),
	)
	return order, nil
}

// BookExhibition 为普通用户预订展位。展位在存储层原子预留，
// 金额为展位数乘以票价。
func (s *Service) BookExhibition(ctx context.Context, subject *auth.Subject, in BookingInput) (*Booking, error) {
	if err := auth.CanPlaceOrder(subject); err != nil {
		return nil, err
	}
	if err := Validate(&in); err != nil {
		return nil, err
	}
	exhibition, err := s.store.GetExhibition(ctx, int64(in.ExhibitionID))
	if err != nil {
		return nil, err
	}
	if StatusAt(exhibition.StartDate, exhibition.EndDate, s.now()) == ExhibitionPast {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Exhibition has already ended")
	}
	if in.Slots > exhibition.AvailableSlots {
		return nil, ErrInsufficientSlots
	}
	booking := &Booking{
		UserID:             subject.ID,
		UserName:           subject.Name,
		ExhibitionID:       exhibition.ID,
		ExhibitionTitle:    exhibition.Title,
		ExhibitionImageURL: NormalizeImageURL(exhibition.ImageURL),
		BookingDate:        s.now().UTC(),
		TicketCode:         s.newCode(),
		Slots:              in.Slots,
		Phone:              strings.TrimSpace(in.Phone),
		Status:             TicketActive,
		TotalAmount:        exhibition.TicketPrice.Mul(decimal.NewFromInt(int64(in.Slots))),
		PaymentStatus:      PaymentPending,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	s.audit.Info("exhibition_booked",
		slog.Int64("booking_id", booking.ID),
		slog.Int64("exhibition_id", exhibition.ID),
		slog.Int("slots", booking.Slots),
		slog.String("subject", subject.String()),
	)
	return booking, nil
}

// ListOrders 返回全部作品订单与展览预订，仅管理员可见。
func (s *Service) ListOrders(ctx context.Context, subject *auth.Subject) (*Orders, error) {
	if err := auth.CanListAllOrders(subject); err != nil {
		return nil, err
	}
	return s.listOrders(ctx, OrderFilter{})
}

// ListUserOrders 返回指定用户的订单与预订。
func (s *Service) ListUserOrders(ctx context.Context, subject *auth.Subject, userID int64) (*Orders, error) {
	if err := auth.CanViewUserResources(subject, userID); err != nil {
		return nil, err
	}
	return s.listOrders(ctx, OrderFilter{UserID: userID})
}

func (s *Service) listOrders(ctx context.Context, filter OrderFilter) (*Orders, error) {
	orders, err := s.store.ListArtworkOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []ArtworkOrder{}
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return &Orders{Orders: orders, Bookings: bookings}, nil
}

// ListArtistOrders 返回购买当前艺术家作品的订单。
func (s *Service) ListArtistOrders(ctx context.Context, subject *auth.Subject) ([]ArtworkOrder, error) {
	if err := auth.RequireArtist(subject); err != nil {
		return nil, err
	}
	orders, err := s.store.ListArtworkOrders(ctx, OrderFilter{ArtistID: subject.ID})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []ArtworkOrder{}
	}
	return orders, nil
}

// ListTickets 返回全部门票，仅管理员可见。
func (s *Service) ListTickets(ctx context.Context, subject *auth.Subject) ([]Booking, error) {
	if err := auth.CanListAllTickets(subject); err != nil {
		return nil, err
	}
	return s.listBookings(ctx, OrderFilter{})
}

// ListUserTickets 返回指定用户的门票。
func (s *Service) ListUserTickets(ctx context.Context, subject *auth.Subject, userID int64) ([]Booking, error) {
	if err := auth.CanViewUserResources(subject, userID); err != nil {
		return nil, err
	}
	return s.listBookings(ctx, OrderFilter{UserID: userID})
}

func (s *Service) listBookings(ctx context.Context, filter OrderFilter) ([]Booking, error) {
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return bookings, nil
}

// GenerateTicket 返回预订对应的门票，仅预订人与管理员可见。
func (s *Service) GenerateTicket(ctx context.Context, subject *auth.Subject, bookingID int64) (*Booking, error) {
	if err := auth.RequireAuthenticated(subject); err != nil {
		return nil, err
	}
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanViewBooking(subject, booking.UserID); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListArtists 返回全部艺术家及其作品数量，仅管理员可见。
func (s *Service) ListArtists(ctx context.Context, subject *auth.Subject) ([]Artist, error) {
	if err := auth.CanListArtists(subject); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListAccounts(ctx, auth.RoleArtist)
	if err != nil {
		return nil, err
	}
	artworks, err := s.store.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(accounts))
	for _, artwork := range artworks {
		if artwork.ArtistID != nil {
			counts[*artwork.ArtistID]++
		}
	}
	artists := make([]Artist, 0, len(accounts))
	for _, account := range accounts {
		artists = append(artists, Artist{
			ID:              account.ID,
			Name:            account.Name,
			Email:           account.Email,
			Bio:             account.Bio,
			ProfileImageURL: account.ProfileImageURL,
			Phone:           account.Phone,
			CreatedAt:       account.CreatedAt,
			ArtworkCount:    counts[account.ID],
		})
	}
	return artists, nil
}

// PaymentTarget 解析一笔支付对应的订单或预订。
func (s *Service) PaymentTarget(ctx context.Context, kind OrderKind, id int64) (*PaymentTarget, error) {
	var target *PaymentTarget
	switch kind {
	case OrderArtwork:
		order, err := s.store.GetArtworkOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		target = &PaymentTarget{
			Kind:     kind,
			ID:       order.ID,
			UserID:   order.UserID,
			UserName: order.UserName,
			Title:    order.ArtworkTitle,
			Amount:   order.TotalAmount,
			Payment:  order.PaymentStatus,
		}
		artwork, err := s.store.GetArtwork(ctx, order.ArtworkID)
		switch {
		case err == nil:
			target.Artwork = artwork.Status
		case errors.Is(err, ErrArtworkNotFound):
		default:
			return nil, err
		}
	case OrderExhibition:
		booking, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		target = &PaymentTarget{
			Kind:       kind,
			ID:         booking.ID,
			UserID:     booking.UserID,
			UserName:   booking.UserName,
			Title:      booking.ExhibitionTitle,
			Amount:     booking.TotalAmount,
			TicketCode: booking.TicketCode,
			Payment:    booking.PaymentStatus,
		}
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Invalid order type")
	}
	account, err := s.accounts.FindAccountByID(ctx, auth.RoleUser, target.UserID)
	switch {
	case err == nil:
		target.UserEmail = account.Email
	case errors.Is(err, auth.ErrAccountNotFound):
	default:
		return nil, err
	}
	return target, nil
}

// SettlePayment 根据支付结果更新订单。成功时作品标记为已售、门票标记为已付款；
// 失败时门票作废并释放展位。重复调用不会产生额外影响。订单已失败后收到成功结果
// 返回 ErrSettlementConflict，订单保持不变。
func (s *Service) SettlePayment(ctx context.Context, kind OrderKind, id int64, success bool) error {
	status := PaymentFailed
	if success {
		status = PaymentCompleted
	}
	var err error
	switch kind {
	case OrderArtwork:
		err = s.store.SetArtworkOrderPayment(ctx, id, status)
	case OrderExhibition:
		err = s.store.SetBookingPayment(ctx, id, status)
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, "Invalid order type")
	}
	if err != nil {
		if errors.Is(err, ErrSettlementConflict) {
			s.audit.Warn("order_payment_conflict",
				slog.String("order_type", string(kind)),
				slog.Int64("order_id", id),
				slog.String("payment_status", string(status)),
			)
		}
		return err
	}
	s.audit.Info("order_payment_settled",
		slog.String("order_type", string(kind)),
		slog.Int64("order_id", id),
		slog.String("payment_status", string(status)),
	)
	return nil
}
