package gallery

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	xerrors "AfriArt-Gallery/internal/errors"
)

func TestStatusAt(t *testing.T) {
	start, _ := ParseDate("2026-06-01")
	end, _ := ParseDate("2026-06-30")
	cases := []struct {
		now  string
		want ExhibitionStatus
	}{
		{"2026-05-31T23:00:00Z", ExhibitionUpcoming},
		{"2026-06-01T00:00:00Z", ExhibitionOngoing},
		{"2026-06-30T22:00:00Z", ExhibitionOngoing},
		{"2026-07-01T00:00:00Z", ExhibitionPast},
	}
	for _, tc := range cases {
		now, _ := time.Parse(time.RFC3339, tc.now)
		if got := StatusAt(start, end, now); got != tc.want {
			t.Fatalf("StatusAt(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestExhibitionsAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := ExhibitionInput{Title: "X", TotalSlots: 10}
	if _, err := f.svc.CreateExhibition(ctx, testArtist, in); xerrors.PublicMessage(err) != "Unauthorized access: Admin privileges required" {
		t.Fatalf("unexpected error %v", err)
	}
	e := f.exhibition(t, 10, "2026-06-01", "2026-06-30")
	if err := f.svc.DeleteExhibition(ctx, testUser, e.ID); xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestCreateExhibitionSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 25, "2026-06-01", "2026-06-30")
	if e.AvailableSlots != 25 || e.Status != ExhibitionOngoing {
		t.Fatalf("unexpected exhibition %+v", e)
	}
	tooMany := 30
	_, err := f.svc.CreateExhibition(ctx, testAdmin, ExhibitionInput{Title: "Y", TotalSlots: 20, AvailableSlots: &tooMany})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("available above total must fail, got %v", err)
	}
	start, _ := ParseDate("2026-07-10")
	end, _ := ParseDate("2026-07-01")
	_, err = f.svc.CreateExhibition(ctx, testAdmin, ExhibitionInput{Title: "Z", StartDate: start, EndDate: end})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("end before start must fail, got %v", err)
	}
}

func TestUpdateExhibitionKeepsBookedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 10, "2026-06-01", "2026-06-30")
	if _, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 4}); err != nil {
		t.Fatalf("book: %v", err)
	}
	in := ExhibitionInput{Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate, TicketPrice: decimal.NewFromInt(600), TotalSlots: 12}
	updated, err := f.svc.UpdateExhibition(ctx, testAdmin, e.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TotalSlots != 12 || updated.AvailableSlots != 8 {
		t.Fatalf("unexpected slots %d/%d", updated.AvailableSlots, updated.TotalSlots)
	}
	in.TotalSlots = 3
	if _, err := f.svc.UpdateExhibition(ctx, testAdmin, e.ID, in); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("shrinking below booked slots must fail, got %v", err)
	}
}

func TestUpdateExhibitionDuringBookingsKeepsSlotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 10, "2026-06-01", "2026-06-30")
	in := ExhibitionInput{Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate, TicketPrice: decimal.NewFromInt(500), TotalSlots: 10}

	var (
		wg     sync.WaitGroup
		booked atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.svc.BookExhibition(ctx, testUser, BookingInput{ExhibitionID: FlexID(e.ID), Slots: 1}); err == nil {
				booked.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.svc.UpdateExhibition(ctx, testAdmin, e.ID, in); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	current, _ := f.store.GetExhibition(ctx, e.ID)
	if int(booked.Load())+current.AvailableSlots != current.TotalSlots {
		t.Fatalf("booked=%d available=%d total=%d", booked.Load(), current.AvailableSlots, current.TotalSlots)
	}
}

func TestRefreshStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.exhibition(t, 5, "2026-06-11", "2026-06-20")
	if e.Status != ExhibitionUpcoming {
		t.Fatalf("expected upcoming, got %s", e.Status)
	}
	changed, err := f.svc.RefreshStatuses(ctx, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil || changed != 1 {
		t.Fatalf("refresh: changed=%d err=%v", changed, err)
	}
	stored, _ := f.store.GetExhibition(ctx, e.ID)
	if stored.Status != ExhibitionOngoing {
		t.Fatalf("stored status %s", stored.Status)
	}
	changed, _ = f.svc.RefreshStatuses(ctx, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	if changed != 0 {
		t.Fatalf("second refresh should be a no-op, changed=%d", changed)
	}
}
