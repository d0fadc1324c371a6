package gallery

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

// ListArtworks 返回全部作品，最新的在前。
func (s *Service) ListArtworks(ctx context.Context) ([]Artwork, error) {
	artworks, err := s.store.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range artworks {
		artworks[i].ImageURL = NormalizeImageURL(artworks[i].ImageURL)
	}
	return artworks, nil
}

// GetArtwork 返回单个作品。
func (s *Service) GetArtwork(ctx context.Context, id int64) (*Artwork, error) {
	artwork, err := s.store.GetArtwork(ctx, id)
	if err != nil {
		return nil, err
	}
	artwork.ImageURL = NormalizeImageURL(artwork.ImageURL)
	return artwork, nil
}

// CreateArtwork 创建作品。艺术家创建时，作者名与作者 id 取自令牌。
func (s *Service) CreateArtwork(ctx context.Context, subject *auth.Subject, in ArtworkInput) (*Artwork, error) {
	if err := auth.CanCreateArtwork(subject); err != nil {
		return nil, err
	}
	if err := validateArtwork(&in); err != nil {
		return nil, err
	}
	artwork := &Artwork{
		Title:       strings.TrimSpace(in.Title),
		Artist:      strings.TrimSpace(in.Artist),
		ArtistID:    in.ArtistID,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    storedImage(in.ImageURL),
		Dimensions:  in.Dimensions,
		Medium:      in.Medium,
		Year:        in.Year,
		Status:      in.Status,
		CreatedAt:   s.now().UTC(),
	}
	if artwork.Status == "" {
		artwork.Status = ArtworkAvailable
	}
	if subject.IsArtist() {
		id := subject.ID
		artwork.ArtistID = &id
		artwork.Artist = subject.Name
	}
	if artwork.Artist == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "artist is required")
	}
	if err := s.store.CreateArtwork(ctx, artwork); err != nil {
		return nil, err
	}
	s.audit.Info("artwork_created",
		slog.Int64("artwork_id", artwork.ID),
		slog.String("subject", subject.String()),
	)
	return s.GetArtwork(ctx, artwork.ID)
}

// UpdateArtwork 替换作品内容，仅管理员与作品所属艺术家可操作。
// 艺术家不能转移作品归属。
func (s *Service) UpdateArtwork(ctx context.Context, subject *auth.Subject, id int64, in ArtworkInput) (*Artwork, error) {
	if err := auth.CanCreateArtwork(subject); err != nil {
		return nil, auth.CanManageArtwork(subject, nil, auth.ActionEdit)
	}
	current, err := s.store.GetArtwork(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanManageArtwork(subject, current.ArtistID, auth.ActionEdit); err != nil {
		return nil, err
	}
	if err := validateArtwork(&in); err != nil {
		return nil, err
	}
	updated := *current
	updated.Title = strings.TrimSpace(in.Title)
	updated.Description = in.Description
	updated.Price = in.Price
	updated.Dimensions = in.Dimensions
	updated.Medium = in.Medium
	updated.Year = in.Year
	if in.Status != "" {
		updated.Status = in.Status
	}
	if in.ImageURL != "" {
		updated.ImageURL = storedImage(in.ImageURL)
	}
	if subject.IsAdmin() {
		if artist := strings.TrimSpace(in.Artist); artist != "" {
			updated.Artist = artist
		}
		if in.ArtistID != nil {
			updated.ArtistID = in.ArtistID
		}
	}
	if err := s.store.UpdateArtwork(ctx, &updated); err != nil {
		return nil, err
	}
	s.audit.Info("artwork_updated",
		slog.Int64("artwork_id", id),
		slog.String("subject", subject.String()),
	)
	return s.GetArtwork(ctx, id)
}

// DeleteArtwork 删除作品，仅管理员与作品所属艺术家可操作。
func (s *Service) DeleteArtwork(ctx context.Context, subject *auth.Subject, id int64) error {
	if err := auth.CanCreateArtwork(subject); err != nil {
		return auth.CanManageArtwork(subject, nil, auth.ActionDelete)
	}
	current, err := s.store.GetArtwork(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanManageArtwork(subject, current.ArtistID, auth.ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteArtwork(ctx, id); err != nil {
		return err
	}
	s.audit.Info("artwork_deleted",
		slog.Int64("artwork_id", id),
		slog.String("subject", subject.String()),
	)
	return nil
}

// ListArtistArtworks 返回当前艺术家的作品。
func (s *Service) ListArtistArtworks(ctx context.Context, subject *auth.Subject) ([]Artwork, error) {
	if err := auth.RequireArtist(subject); err != nil {
		return nil, err
	}
	all, err := s.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]Artwork, 0)
	for _, artwork := range all {
		if artwork.ArtistID != nil && *artwork.ArtistID == subject.ID {
			owned = append(owned, artwork)
		}
	}
	return owned, nil
}

const defaultSimilarLimit = 4

// SimilarArtworks 返回与指定作品相近的在售作品：同一作者、同一材质，
// 或价格相差不超过一半。结果按创建时间倒序。
func (s *Service) SimilarArtworks(ctx context.Context, id int64, limit int) ([]Artwork, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	current, err := s.store.GetArtwork(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}
	tolerance := current.Price.Mul(decimal.NewFromFloat(0.5))
	similar := make([]Artwork, 0, limit)
	for _, candidate := range all {
		if candidate.ID == current.ID || candidate.Status != ArtworkAvailable {
			continue
		}
		sameArtist := candidate.Artist == current.Artist
		sameMedium := candidate.Medium != "" && candidate.Medium == current.Medium
		closePrice := candidate.Price.Sub(current.Price).Abs().LessThan(tolerance)
		if sameArtist || sameMedium || closePrice {
			similar = append(similar, candidate)
		}
	}
	sortNewestFirst(similar)
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

func validateArtwork(in *ArtworkInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return xerrors.New(xerrors.CodeInvalidArgument, "price must not be negative")
	}
	return nil
}

// storedImage keeps references as given, except inline payloads which are
// replaced by the placeholder.
func storedImage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && isInlineImage(raw) {
		return placeholderImage
	}
	return raw
}

func sortNewestFirst(artworks []Artwork) {
	sort.SliceStable(artworks, func(i, j int) bool {
		if !artworks[i].CreatedAt.Equal(artworks[j].CreatedAt) {
			return artworks[i].CreatedAt.After(artworks[j].CreatedAt)
		}
		return artworks[i].ID > artworks[j].ID
	})
}
