package gallery

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"AfriArt-Gallery/internal/auth"
)

var (
	testAdmin  = &auth.Subject{ID: 1, Name: "Admin", Role: auth.RoleAdmin}
	testArtist = &auth.Subject{ID: 2, Name: "Kehinde Ade", Role: auth.RoleArtist}
	testOther  = &auth.Subject{ID: 3, Name: "Other Artist", Role: auth.RoleArtist}
	testUser   = &auth.Subject{ID: 2, Name: "Wanjiku", Role: auth.RoleUser}
)

type fixture struct {
	svc      *Service
	store    *MemoryStore
	accounts *auth.MemoryStore
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewMemoryStore(),
		accounts: auth.NewMemoryStore(),
		now:      time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	var codes atomic.Int64
	svc, err := NewService(f.store, f.accounts,
		WithClock(func() time.Time { return f.now }),
		WithTicketCodes(func() string {
			return fmt.Sprintf("AFRI-T%07d", codes.Add(1))
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

// tick advances the clock so creation times stay distinct.
func (f *fixture) tick() {
	f.now = f.now.Add(time.Minute)
}

func (f *fixture) artwork(t *testing.T, subject *auth.Subject, title, artist, medium string, price int64) *Artwork {
	t.Helper()
	f.tick()
	a, err := f.svc.CreateArtwork(context.Background(), subject, ArtworkInput{
		Title:  title,
		Artist: artist,
		Medium: medium,
		Price:  decimal.NewFromInt(price),
	})
	if err != nil {
		t.Fatalf("create artwork %s: %v", title, err)
	}
	return a
}

func (f *fixture) exhibition(t *testing.T, slots int, start, end string) *Exhibition {
	t.Helper()
	startDate, _ := ParseDate(start)
	endDate, _ := ParseDate(end)
	e, err := f.svc.CreateExhibition(context.Background(), testAdmin, ExhibitionInput{
		Title:       "Threads of the Sahel",
		Location:    "Nairobi",
		StartDate:   startDate,
		EndDate:     endDate,
		TicketPrice: decimal.NewFromInt(500),
		TotalSlots:  slots,
	})
	if err != nil {
		t.Fatalf("create exhibition: %v", err)
	}
	return e
}
