package gallery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

func TestPlaceArtworkOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artwork := f.artwork(t, testArtist, "Savannah", "", "Acrylic", 2500)

	if _, err := f.svc.PlaceArtworkOrder(ctx, testArtist, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)}); xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("only customers order, got %v", err)
	}
	order, err := f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID), DeliveryAddress: "Westlands"})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if order.Status != OrderPending || order.PaymentStatus != PaymentPending || !order.TotalAmount.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("unexpected order %+v", order)
	}

	if err := f.svc.SettlePayment(ctx, OrderArtwork, order.ID, true); err != nil {
		t.Fatalf("settle: %v", err)
	}
	sold, _ := f.svc.GetArtwork(ctx, artwork.ID)
	if sold.Status != ArtworkSold {
		t.Fatalf("artwork should be sold, got %s", sold.Status)
	}
	_, err = f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)})
	if !errors.Is(err, ErrArtworkUnavailable) || xerrors.StatusOf(err) != http.StatusConflict {
		t.Fatalf("sold artwork cannot be ordered, got %v", err)
	}
}

func TestBookExhibitionReservesSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 5, "2026-06-01", "2026-06-30")

	booking, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 3})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if !booking.TotalAmount.Equal(decimal.NewFromInt(1500)) || !strings.HasPrefix(booking.TicketCode, "AFRI-") {
		t.Fatalf("unexpected booking %+v", booking)
	}
	if booking.Status != TicketActive || booking.PaymentStatus != PaymentPending {
		t.Fatalf("unexpected booking state %+v", booking)
	}
	current, _ := f.svc.GetExhibition(ctx, e.ID)
	if current.AvailableSlots != 2 {
		t.Fatalf("expected 2 slots left, got %d", current.AvailableSlots)
	}
	if _, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 3}); !errors.Is(err, ErrInsufficientSlots) {
		t.Fatalf("expected insufficient slots, got %v", err)
	}
	if _, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 0}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("zero slots must be rejected, got %v", err)
	}

	if err := f.svc.SettlePayment(ctx, OrderExhibition, booking.ID, false); err != nil {
		t.Fatalf("settle failure: %v", err)
	}
	if err := f.svc.SettlePayment(ctx, OrderExhibition, booking.ID, false); err != nil {
		t.Fatalf("repeat settle failure: %v", err)
	}
	current, _ = f.svc.GetExhibition(ctx, e.ID)
	if current.AvailableSlots != 5 {
		t.Fatalf("failed payment should release slots once, got %d", current.AvailableSlots)
	}
	ticket, _ := f.svc.GenerateTicket(ctx, testUser, booking.ID)
	if ticket.Status != TicketCancelled || ticket.PaymentStatus != PaymentFailed {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 10, "2026-06-01", "2026-06-30")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 1}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	current, _ := f.store.GetExhibition(ctx, e.ID)
	if succeeded != 10 || current.AvailableSlots != 0 {
		t.Fatalf("succeeded=%d available=%d", succeeded, current.AvailableSlots)
	}
}

func TestOrderAndTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artwork := f.artwork(t, testArtist, "Visible", "", "Oil", 100)
	e := f.exhibition(t, 5, "2026-06-01", "2026-06-30")
	if _, err := f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)}); err != nil {
		t.Fatalf("order: %v", err)
	}
	booking, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 1})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	stranger := &auth.Subject{ID: 77, Name: "Stranger", Role: auth.RoleUser}

	orders, err := f.svc.ListUserOrders(ctx, testUser, testUser.ID)
	if err != nil || len(orders.Orders) != 1 || len(orders.Bookings) != 1 {
		t.Fatalf("unexpected user orders %+v %v", orders, err)
	}
	if _, err := f.svc.ListUserOrders(ctx, stranger, testUser.ID); xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("stranger must not list orders, got %v", err)
	}
	if _, err := f.svc.ListOrders(ctx, testUser); err == nil {
		t.Fatalf("all orders are admin only")
	}
	all, err := f.svc.ListOrders(ctx, testAdmin)
	if err != nil || len(all.Orders) != 1 || len(all.Bookings) != 1 {
		t.Fatalf("unexpected admin orders %+v %v", all, err)
	}

	artistOrders, err := f.svc.ListArtistOrders(ctx, testArtist)
	if err != nil || len(artistOrders) != 1 {
		t.Fatalf("artist should see the order, got %+v %v", artistOrders, err)
	}
	otherOrders, _ := f.svc.ListArtistOrders(ctx, testOther)
	if len(otherOrders) != 0 {
		t.Fatalf("other artist sees foreign orders: %+v", otherOrders)
	}

	if _, err := f.svc.GenerateTicket(ctx, stranger, booking.ID); xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("stranger must not see ticket, got %v", err)
	}
	if _, err := f.svc.GenerateTicket(ctx, testAdmin, booking.ID); err != nil {
		t.Fatalf("admin ticket: %v", err)
	}
	tickets, err := f.svc.ListUserTickets(ctx, testUser, testUser.ID)
	if err != nil || len(tickets) != 1 {
		t.Fatalf("unexpected tickets %+v %v", tickets, err)
	}
	if _, err := f.svc.ListTickets(ctx, testArtist); err == nil {
		t.Fatalf("ticket listing is admin only")
	}
}

func TestListArtistsCountsArtworks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Kehinde Ade", "Other Artist"} {
		acc := &auth.Account{Role: auth.RoleArtist, Name: name, Email: strings.ReplaceAll(name, " ", ".") + "@example.com"}
		if err := f.accounts.CreateAccount(ctx, acc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	// Artist ids 1 and 2 in the account store.
	first := &auth.Subject{ID: 1, Name: "Kehinde Ade", Role: auth.RoleArtist}
	f.artwork(t, first, "A", "", "Oil", 1)
	f.artwork(t, first, "B", "", "Oil", 1)

	artists, err := f.svc.ListArtists(ctx, testAdmin)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(artists) != 2 || artists[0].ArtworkCount != 2 || artists[1].ArtworkCount != 0 {
		t.Fatalf("unexpected artists %+v", artists)
	}
	if _, err := f.svc.ListArtists(ctx, testArtist); err == nil {
		t.Fatalf("artist listing is admin only")
	}
}

func TestPaymentTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := &auth.Account{Role: auth.RoleUser, Name: "Wanjiku", Email: "wanjiku@example.com"}
	if err := f.accounts.CreateAccount(ctx, customer); err != nil {
		t.Fatalf("seed: %v", err)
	}
	buyer := &auth.Subject{ID: customer.ID, Name: customer.Name, Role: auth.RoleUser}
	e := f.exhibition(t, 5, "2026-06-01", "2026-06-30")
	booking, err := f.svc.BookExhibition(ctx, buyer, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 2})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	target, err := f.svc.PaymentTarget(ctx, OrderExhibition, booking.ID)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if target.UserEmail != "wanjiku@example.com" || !target.Amount.Equal(decimal.NewFromInt(1000)) || target.TicketCode != booking.TicketCode {
		t.Fatalf("unexpected target %+v", target)
	}
	if _, err := f.svc.PaymentTarget(ctx, OrderArtwork, 999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if _, err := f.svc.PaymentTarget(ctx, OrderKind("gift"), 1); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestSettlePaymentKeepsFinalOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artwork := f.artwork(t, testArtist, "Savannah", "", "Acrylic", 2500)
	order, err := f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	rival, err := f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)})
	if err != nil {
		t.Fatalf("rival order: %v", err)
	}

	if err := f.svc.SettlePayment(ctx, OrderArtwork, order.ID, true); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := f.svc.SettlePayment(ctx, OrderArtwork, order.ID, false); err != nil {
		t.Fatalf("late failure: %v", err)
	}
	paid, _ := f.store.GetArtworkOrder(ctx, order.ID)
	if paid.PaymentStatus != PaymentCompleted || paid.Status != OrderCompleted {
		t.Fatalf("paid order must not change, got %+v", paid)
	}
	cancelled, _ := f.store.GetArtworkOrder(ctx, rival.ID)
	if cancelled.PaymentStatus != PaymentFailed || cancelled.Status != OrderCancelled {
		t.Fatalf("rival order should be cancelled, got %+v", cancelled)
	}
	if err := f.svc.SettlePayment(ctx, OrderArtwork, rival.ID, true); !errors.Is(err, ErrSettlementConflict) {
		t.Fatalf("expected settlement conflict, got %v", err)
	}
	if xerrors.StatusOf(ErrSettlementConflict) != http.StatusConflict || !xerrors.ShouldAlert(ErrSettlementConflict) {
		t.Fatalf("settlement conflict should alert with 409")
	}

	e := f.exhibition(t, 5, "2026-06-01", "2026-06-30")
	booking, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 2})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := f.svc.SettlePayment(ctx, OrderExhibition, booking.ID, false); err != nil {
		t.Fatalf("settle failure: %v", err)
	}
	if err := f.svc.SettlePayment(ctx, OrderExhibition, booking.ID, true); !errors.Is(err, ErrSettlementConflict) {
		t.Fatalf("expected settlement conflict, got %v", err)
	}
	ticket, _ := f.store.GetBooking(ctx, booking.ID)
	if ticket.Status != TicketCancelled || ticket.PaymentStatus != PaymentFailed {
		t.Fatalf("cancelled ticket must stay cancelled, got %+v", ticket)
	}
	current, _ := f.svc.GetExhibition(ctx, e.ID)
	if current.AvailableSlots != 5 {
		t.Fatalf("released slots must stay released, got %d", current.AvailableSlots)
	}
}

func TestPaymentTargetCarriesArtworkStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artwork := f.artwork(t, testArtist, "Savannah", "", "Acrylic", 2500)
	order, err := f.svc.PlaceArtworkOrder(ctx, testUser, ArtworkOrderInput{ArtworkID: FlexID(artwork.ID)})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	target, err := f.svc.PaymentTarget(ctx, OrderArtwork, order.ID)
	if err != nil || target.Artwork != ArtworkAvailable {
		t.Fatalf("expected available artwork, got %+v, %v", target, err)
	}
	if err := f.store.DeleteArtwork(ctx, artwork.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	target, err = f.svc.PaymentTarget(ctx, OrderArtwork, order.ID)
	if err != nil || target.Artwork != "" {
		t.Fatalf("deleted artwork should leave the status empty, got %+v, %v", target, err)
	}
}
