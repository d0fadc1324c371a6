package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/internal/observability/alerting"
)

var (
	admin    = &auth.Subject{ID: 1, Name: "Admin", Role: auth.RoleAdmin}
	customer = &auth.Subject{ID: 1, Name: "Wanjiku", Role: auth.RoleUser}
	stranger = &auth.Subject{ID: 2, Name: "Otieno", Role: auth.RoleUser}
)

type fakeProvider struct {
	mu       sync.Mutex
	seq      int
	pushes   []PushRequest
	pushErr  error
	results  map[string]*QueryResult
	queryErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{results: make(map[string]*QueryResult)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) STKPush(_ context.Context, req PushRequest) (*PushResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushErr != nil {
		return nil, p.pushErr
	}
	p.seq++
	p.pushes = append(p.pushes, req)
	return &PushResponse{
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%03d", p.seq),
		MerchantRequestID:   fmt.Sprintf("MR-%03d", p.seq),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (p *fakeProvider) Query(_ context.Context, checkoutRequestID string) (*QueryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if result, ok := p.results[checkoutRequestID]; ok {
		return result, nil
	}
	return &QueryResult{ResultDesc: "The transaction is being processed"}, nil
}

func (p *fakeProvider) resolve(checkoutRequestID string, code int, receipt string) {
	p.mu.Lock()
	p.results[checkoutRequestID] = &QueryResult{ResultCode: &code, ResultDesc: "resolved", ReceiptNumber: receipt}
	p.mu.Unlock()
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerter) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingAlerter) Events() []alerting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alerting.Event(nil), r.events...)
}

type fixture struct {
	svc      *Service
	store    *MemoryStore
	provider *fakeProvider
	mailer   *mail.LogSender
	gallery  *gallery.Service
	catalog  *gallery.MemoryStore
	now      time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemoryStore(),
		provider: newFakeProvider(),
		mailer:   mail.NewLogSender(),
		catalog:  gallery.NewMemoryStore(),
		now:      time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store.now = clock

	accounts := auth.NewMemoryStore()
	if err := accounts.CreateAccount(context.Background(), &auth.Account{
		Role: auth.RoleUser, Name: "Wanjiku", Email: "wanjiku@example.com", PasswordHash: "x",
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	svc, err := gallery.NewService(f.catalog, accounts, gallery.WithClock(clock))
	if err != nil {
		t.Fatalf("gallery service: %v", err)
	}
	f.gallery = svc

	opts = append([]Option{WithMailer(f.mailer), WithClock(clock)}, opts...)
	f.svc, err = NewService(f.store, f.provider, f.gallery, opts...)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	return f
}

func (f *fixture) artworkOrder(t *testing.T, price int64) *gallery.ArtworkOrder {
	t.Helper()
	ctx := context.Background()
	artwork, err := f.gallery.CreateArtwork(ctx, admin, gallery.ArtworkInput{
		Title:  "Maasai Market at Dusk",
		Artist: "Kehinde Ade",
		Price:  decimal.NewFromInt(price),
	})
	if err != nil {
		t.Fatalf("create artwork: %v", err)
	}
	order, err := f.gallery.PlaceArtworkOrder(ctx, customer, gallery.ArtworkOrderInput{ArtworkID: gallery.FlexID(artwork.ID)})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func (f *fixture) booking(t *testing.T, total, slots int) *gallery.Booking {
	t.Helper()
	ctx := context.Background()
	start, _ := gallery.ParseDate("2026-07-01")
	end, _ := gallery.ParseDate("2026-07-31")
	exhibition, err := f.gallery.CreateExhibition(ctx, admin, gallery.ExhibitionInput{
		Title:       "Threads of the Sahel",
		StartDate:   start,
		EndDate:     end,
		TicketPrice: decimal.NewFromInt(500),
		TotalSlots:  total,
	})
	if err != nil {
		t.Fatalf("create exhibition: %v", err)
	}
	booking, err := f.gallery.BookExhibition(ctx, customer, gallery.BookingInput{
		ExhibitionID: gallery.FlexID(exhibition.ID),
		Slots:        slots,
	})
	if err != nil {
		t.Fatalf("book exhibition: %v", err)
	}
	return booking
}

func (f *fixture) initiate(t *testing.T, kind gallery.OrderKind, id int64) string {
	t.Helper()
	resp, err := f.svc.Initiate(context.Background(), customer, InitiateRequest{
		PhoneNumber: "0712345678",
		OrderType:   string(kind),
		OrderID:     gallery.FlexID(id),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return resp.CheckoutRequestID
}

// pendingTransaction 直接写入一笔 pending 交易，模拟与 Initiate 并发落库的另一次推送。
func (f *fixture) pendingTransaction(t *testing.T, kind gallery.OrderKind, id int64, amount decimal.Decimal, checkoutID string) {
	t.Helper()
	err := f.store.CreateTransaction(context.Background(), &Transaction{
		CheckoutRequestID: checkoutID,
		OrderKind:         kind,
		OrderID:           id,
		UserID:            customer.ID,
		PhoneNumber:       "254712345678",
		Amount:            amount,
		AccountReference:  accountReference(kind, id),
		Status:            StatusPending,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
}

func callbackBody(checkoutRequestID string, code int, receipt string) []byte {
	metadata := ""
	if code == 0 {
		metadata = fmt.Sprintf(`,"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":12000.00},
			{"Name":"MpesaReceiptNumber","Value":%q},
			{"Name":"TransactionDate","Value":20260610121500},
			{"Name":"PhoneNumber","Value":254712345678}]}`, receipt)
	}
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"MR-001",
		"CheckoutRequestID":%q,
		"ResultCode":%d,
		"ResultDesc":"result %d"%s}}}`, checkoutRequestID, code, code, metadata))
}
