package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	xerrors "AfriArt-Gallery/internal/errors"
)

func TestArtistCreateForcesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := int64(99)
	artwork, err := f.svc.CreateArtwork(ctx, testArtist, ArtworkInput{
		Title:    "Harmattan",
		Artist:   "Someone Else",
		ArtistID: &other,
		Price:    decimal.RequireFromString("1200.50"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if artwork.Artist != "Kehinde Ade" || artwork.ArtistID == nil || *artwork.ArtistID != 2 {
		t.Fatalf("ownership not forced: %+v", artwork)
	}
	if artwork.Status != ArtworkAvailable {
		t.Fatalf("expected default status available, got %s", artwork.Status)
	}

	byAdmin, err := f.svc.CreateArtwork(ctx, testAdmin, ArtworkInput{Title: "Gift", Artist: "Estate", ArtistID: &other, Price: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if byAdmin.Artist != "Estate" || *byAdmin.ArtistID != 99 {
		t.Fatalf("admin may set the artist freely: %+v", byAdmin)
	}
}

func TestCreateArtworkRejectsCustomersAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateArtwork(ctx, testUser, ArtworkInput{Title: "x", Price: decimal.NewFromInt(1)})
	if xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if _, err := f.svc.CreateArtwork(ctx, nil, ArtworkInput{Title: "x"}); xerrors.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	_, err = f.svc.CreateArtwork(ctx, testArtist, ArtworkInput{Price: decimal.NewFromInt(1)})
	if xerrors.PublicMessage(err) != "title is required" {
		t.Fatalf("unexpected validation error %v", err)
	}
	_, err = f.svc.CreateArtwork(ctx, testArtist, ArtworkInput{Title: "neg", Price: decimal.NewFromInt(-1)})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("negative price must be rejected, got %v", err)
	}
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artwork := f.artwork(t, testArtist, "Baobab", "", "Oil", 300)

	_, err := f.svc.UpdateArtwork(ctx, testOther, artwork.ID, ArtworkInput{Title: "Stolen"})
	if xerrors.PublicMessage(err) != "Unauthorized access: You can only edit your own artworks" {
		t.Fatalf("unexpected error %v", err)
	}
	updated, err := f.svc.UpdateArtwork(ctx, testArtist, artwork.ID, ArtworkInput{Title: "Baobab II", Artist: "Renamed", Price: decimal.NewFromInt(350)})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Baobab II" || updated.Artist != "Kehinde Ade" || !updated.Price.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("unexpected update %+v", updated)
	}

	// A customer whose id equals the artist id must still be denied.
	err = f.svc.DeleteArtwork(ctx, testUser, artwork.ID)
	if xerrors.PublicMessage(err) != "Unauthorized access: Not authorized" {
		t.Fatalf("customer delete must be denied, got %v", err)
	}
	err = f.svc.DeleteArtwork(ctx, testOther, artwork.ID)
	if xerrors.PublicMessage(err) != "Unauthorized access: You can only delete your own artworks" {
		t.Fatalf("unexpected error %v", err)
	}
	if err := f.svc.DeleteArtwork(ctx, testAdmin, artwork.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.svc.GetArtwork(ctx, artwork.ID); !errors.Is(err, ErrArtworkNotFound) || xerrors.PublicMessage(err) != "Artwork not found" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListArtworksNewestFirstWithNormalisedImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, img := range []string{"uploads/first.jpg", "data:image/png;base64,AAAA", "/static/uploads/third.jpg"} {
		f.tick()
		if _, err := f.svc.CreateArtwork(ctx, testArtist, ArtworkInput{Title: img, ImageURL: img, Price: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	artworks, err := f.svc.ListArtworks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"/static/uploads/third.jpg", "/placeholder.svg", "/static/uploads/first.jpg"}
	for i, a := range artworks {
		if a.ImageURL != want[i] {
			t.Fatalf("artwork %d: image %q, want %q", i, a.ImageURL, want[i])
		}
	}
}

func TestArtworkJSONShape(t *testing.T) {
	f := newFixture(t)
	artwork := f.artwork(t, testArtist, "Shape", "", "Ink", 42)
	raw, err := json.Marshal(artwork)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, fragment := range []string{`"id":"1"`, `"price":42`, `"imageUrl":""`, `"artist_id":2`} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("missing %s in %s", fragment, body)
		}
	}
}

func TestListArtistArtworks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.artwork(t, testArtist, "Mine", "", "Oil", 10)
	f.artwork(t, testOther, "Theirs", "", "Oil", 10)
	mine, err := f.svc.ListArtistArtworks(ctx, testArtist)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "Mine" {
		t.Fatalf("unexpected artworks %+v", mine)
	}
	if _, err := f.svc.ListArtistArtworks(ctx, testAdmin); xerrors.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("artist view is artist only, got %v", err)
	}
}

func TestSimilarArtworks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := f.artwork(t, testArtist, "Base", "", "Bronze", 1000)
	sameArtist := f.artwork(t, testArtist, "Same artist", "", "Paper", 10)
	sameMedium := f.artwork(t, testOther, "Same medium", "", "Bronze", 10)
	closePrice := f.artwork(t, testOther, "Close price", "", "Glass", 1400)
	f.artwork(t, testOther, "Unrelated", "", "Glass", 5000)

	similar, err := f.svc.SimilarArtworks(ctx, base.ID, 10)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	want := []int64{closePrice.ID, sameMedium.ID, sameArtist.ID}
	if len(similar) != len(want) {
		t.Fatalf("expected %d similar artworks, got %+v", len(want), similar)
	}
	for i, id := range want {
		if similar[i].ID != id {
			t.Fatalf("position %d: got %d want %d", i, similar[i].ID, id)
		}
	}
}
