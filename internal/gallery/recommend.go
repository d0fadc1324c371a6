package gallery

import (
	"context"
	"sort"
	"strings"

	"AfriArt-Gallery/internal/auth"
)

const defaultRecommendationLimit = 6

// Score weights for recommendations.
const (
	favouriteArtistScore = 100
	favouriteArtistStep  = 20
	preferredMediumScore = 40
	preferredMediumStep  = 10
	priceRangeScore      = 30
	similarArtistScore   = 15
)

type priceRange struct {
	min, max float64
}

// preferences summarises a customer's purchase history.
type preferences struct {
	artists   []string
	mediums   []string
	ranges    []priceRange
	purchased map[int64]struct{}
}

// Recommend 根据用户的购买记录为其推荐在售作品。没有购买记录时返回空列表。
// 同分作品按创建时间倒序排列，结果是确定的。
func (s *Service) Recommend(ctx context.Context, subject *auth.Subject, userID int64, limit int) ([]Artwork, error) {
	if err := auth.CanViewUserResources(subject, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}
	orders, err := s.store.ListArtworkOrders(ctx, OrderFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	prefs := analysePurchases(orders)
	if prefs == nil {
		return []Artwork{}, nil
	}
	artworks, err := s.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		artwork Artwork
		score   int
	}
	candidates := make([]scored, 0, len(artworks))
	for _, artwork := range artworks {
		if artwork.Status != ArtworkAvailable {
			continue
		}
		if _, bought := prefs.purchased[artwork.ID]; bought {
			continue
		}
		candidates = append(candidates, scored{artwork: artwork, score: prefs.score(artwork)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.artwork.CreatedAt.Equal(b.artwork.CreatedAt) {
			return a.artwork.CreatedAt.After(b.artwork.CreatedAt)
		}
		return a.artwork.ID > b.artwork.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Artwork, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.artwork)
	}
	return out, nil
}

// analysePurchases returns nil when the history holds no purchase.
// Cancelled orders do not count.
func analysePurchases(orders []ArtworkOrder) *preferences {
	artistCount := make(map[string]int)
	mediumCount := make(map[string]int)
	var artistOrder, mediumOrder []string
	var prices []float64
	purchased := make(map[int64]struct{})

	for _, order := range orders {
		if order.Status == OrderCancelled {
			continue
		}
		purchased[order.ArtworkID] = struct{}{}
		if _, seen := artistCount[order.Artist]; !seen {
			artistOrder = append(artistOrder, order.Artist)
		}
		artistCount[order.Artist]++
		if order.Medium != "" {
			if _, seen := mediumCount[order.Medium]; !seen {
				mediumOrder = append(mediumOrder, order.Medium)
			}
			mediumCount[order.Medium]++
		}
		prices = append(prices, order.TotalAmount.InexactFloat64())
	}
	if len(purchased) == 0 {
		return nil
	}
	sort.SliceStable(artistOrder, func(i, j int) bool { return artistCount[artistOrder[i]] > artistCount[artistOrder[j]] })
	sort.SliceStable(mediumOrder, func(i, j int) bool { return mediumCount[mediumOrder[i]] > mediumCount[mediumOrder[j]] })

	total, lo, hi := 0.0, prices[0], prices[0]
	for _, p := range prices {
		total += p
		lo = min(lo, p)
		hi = max(hi, p)
	}
	avg := total / float64(len(prices))
	return &preferences{
		artists: artistOrder,
		mediums: mediumOrder,
		ranges: []priceRange{
			{min: max(0, avg*0.5), max: avg * 2},
			{min: lo * 0.8, max: hi * 1.2},
		},
		purchased: purchased,
	}
}

func (p *preferences) score(artwork Artwork) int {
	score := 0
	for rank, artist := range p.artists {
		if artist == artwork.Artist {
			score += favouriteArtistScore - rank*favouriteArtistStep
			break
		}
	}
	for rank, medium := range p.mediums {
		if medium == artwork.Medium {
			score += preferredMediumScore - rank*preferredMediumStep
			break
		}
	}
	price := artwork.Price.InexactFloat64()
	for _, r := range p.ranges {
		if price >= r.min && price <= r.max {
			score += priceRangeScore
			break
		}
	}
	name := strings.ToLower(artwork.Artist)
	for _, artist := range p.artists {
		if artist == artwork.Artist {
			continue
		}
		fields := strings.Fields(strings.ToLower(artist))
		if len(fields) > 0 && strings.Contains(name, fields[0]) {
			score += similarArtistScore
			break
		}
	}
	return score
}
