package catalog

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/pkg/logger"
)

// Seed 是种子目录文件的内容。
type Seed struct {
	Admins      []AccountSeed    `yaml:"admins"`
	Artists     []AccountSeed    `yaml:"artists"`
	Artworks    []ArtworkSeed    `yaml:"artworks"`
	Exhibitions []ExhibitionSeed `yaml:"exhibitions"`
}

// AccountSeed 描述一个管理员或艺术家账号。
type AccountSeed struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Phone    string `yaml:"phone"`
	Bio      string `yaml:"bio"`
}

// ArtworkSeed 描述一件作品。ArtistEmail 指向 artists 中的账号，
// 为空时作品只记录作者名。
type ArtworkSeed struct {
	Title       string `yaml:"title"`
	Artist      string `yaml:"artist"`
	ArtistEmail string `yaml:"artist_email"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	ImageURL    string `yaml:"image_url"`
	Dimensions  string `yaml:"dimensions"`
	Medium      string `yaml:"medium"`
	Year        int    `yaml:"year"`
}

// ExhibitionSeed 描述一场展览，日期格式为 2006-01-02。
type ExhibitionSeed struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	TicketPrice string `yaml:"ticket_price"`
	ImageURL    string `yaml:"image_url"`
	TotalSlots  int    `yaml:"total_slots"`
}

// Report 汇总一次导入的结果，已存在的条目计入 Skipped。
type Report struct {
	Admins      int
	Artists     int
	Artworks    int
	Exhibitions int
	Skipped     int
}

// Load 从 YAML 文件读取种子目录，未知字段视为错误。
func Load(path string) (*Seed, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("种子文件路径不能为空")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析种子文件路径失败: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析种子目录内容。
func Parse(data []byte) (*Seed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	if len(seed.Admins) == 0 && (len(seed.Artworks) > 0 || len(seed.Exhibitions) > 0) {
		return nil, fmt.Errorf("种子文件需要至少一个管理员来创建作品与展览")
	}
	return &seed, nil
}

// Accounts 是导入账号所需的认证操作，由 auth.Service 实现。
type Accounts interface {
	CreateAdmin(ctx context.Context, name, email, password string) (*auth.Account, error)
	Register(ctx context.Context, role auth.Role, reg auth.Registration) (*auth.Session, error)
	Login(ctx context.Context, role auth.Role, email, password string) (*auth.Session, error)
}

// Gallery 是导入目录所需的画廊操作，由 gallery.Service 实现。
type Gallery interface {
	ListArtworks(ctx context.Context) ([]gallery.Artwork, error)
	CreateArtwork(ctx context.Context, subject *auth.Subject, in gallery.ArtworkInput) (*gallery.Artwork, error)
	ListExhibitions(ctx context.Context) ([]gallery.Exhibition, error)
	CreateExhibition(ctx context.Context, subject *auth.Subject, in gallery.ExhibitionInput) (*gallery.Exhibition, error)
}

// Apply 导入种子目录。重复执行是安全的：已注册的账号通过登录取回 id，
// 同名作品与展览会被跳过。
func (s *Seed) Apply(ctx context.Context, accounts Accounts, catalog Gallery) (Report, error) {
	log := logger.Named("catalog")
	var report Report

	var admin *auth.Subject
	for _, seed := range s.Admins {
		subject, created, err := ensureAdmin(ctx, accounts, seed)
		if err != nil {
			return report, fmt.Errorf("导入管理员 %s 失败: %w", seed.Email, err)
		}
		if created {
			report.Admins++
		} else {
			report.Skipped++
		}
		if admin == nil {
			admin = subject
		}
	}

	artists := make(map[string]*auth.Subject, len(s.Artists))
	for _, seed := range s.Artists {
		subject, created, err := ensureArtist(ctx, accounts, seed)
		if err != nil {
			return report, fmt.Errorf("导入艺术家 %s 失败: %w", seed.Email, err)
		}
		if created {
			report.Artists++
		} else {
			report.Skipped++
		}
		artists[strings.ToLower(strings.TrimSpace(seed.Email))] = subject
	}

	if len(s.Artworks) > 0 {
		existing, err := catalog.ListArtworks(ctx)
		if err != nil {
			return report, err
		}
		seen := make(map[string]bool, len(existing))
		for _, artwork := range existing {
			seen[artworkKey(artwork.Title, artwork.Artist)] = true
		}
		for _, seed := range s.Artworks {
			in, err := artworkInput(seed, artists)
			if err != nil {
				return report, err
			}
			key := artworkKey(in.Title, in.Artist)
			if seen[key] {
				report.Skipped++
				continue
			}
			if _, err := catalog.CreateArtwork(ctx, admin, in); err != nil {
				return report, fmt.Errorf("导入作品 %q 失败: %w", seed.Title, err)
			}
			seen[key] = true
			report.Artworks++
		}
	}

	if len(s.Exhibitions) > 0 {
		existing, err := catalog.ListExhibitions(ctx)
		if err != nil {
			return report, err
		}
		seen := make(map[string]bool, len(existing))
		for _, exhibition := range existing {
			seen[strings.ToLower(exhibition.Title)] = true
		}
		for _, seed := range s.Exhibitions {
			in, err := exhibitionInput(seed)
			if err != nil {
				return report, err
			}
			if seen[strings.ToLower(in.Title)] {
				report.Skipped++
				continue
			}
			if _, err := catalog.CreateExhibition(ctx, admin, in); err != nil {
				return report, fmt.Errorf("导入展览 %q 失败: %w", seed.Title, err)
			}
			seen[strings.ToLower(in.Title)] = true
			report.Exhibitions++
		}
	}

	log.Info("种子目录导入完成",
		slog.Int("admins", report.Admins),
		slog.Int("artists", report.Artists),
		slog.Int("artworks", report.Artworks),
		slog.Int("exhibitions", report.Exhibitions),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

func ensureAdmin(ctx context.Context, accounts Accounts, seed AccountSeed) (*auth.Subject, bool, error) {
	account, err := accounts.CreateAdmin(ctx, seed.Name, seed.Email, seed.Password)
	if err == nil {
		return &auth.Subject{ID: account.ID, Name: account.Name, Role: auth.RoleAdmin}, true, nil
	}
	if xerrors.CodeOf(err) != xerrors.CodeConflict {
		return nil, false, err
	}
	session, err := accounts.Login(ctx, auth.RoleAdmin, seed.Email, seed.Password)
	if err != nil {
		return nil, false, err
	}
	return &auth.Subject{ID: session.AccountID, Name: session.Name, Role: auth.RoleAdmin}, false, nil
}

func ensureArtist(ctx context.Context, accounts Accounts, seed AccountSeed) (*auth.Subject, bool, error) {
	session, err := accounts.Register(ctx, auth.RoleArtist, auth.Registration{
		Name:     seed.Name,
		Email:    seed.Email,
		Password: seed.Password,
		Phone:    seed.Phone,
		Bio:      seed.Bio,
	})
	created := err == nil
	if err != nil {
		if !stdErrors.Is(err, auth.ErrEmailTaken) {
			return nil, false, err
		}
		if session, err = accounts.Login(ctx, auth.RoleArtist, seed.Email, seed.Password); err != nil {
			return nil, false, err
		}
	}
	return &auth.Subject{ID: session.AccountID, Name: session.Name, Role: auth.RoleArtist}, created, nil
}

func artworkInput(seed ArtworkSeed, artists map[string]*auth.Subject) (gallery.ArtworkInput, error) {
	price, err := parseAmount(seed.Price)
	if err != nil {
		return gallery.ArtworkInput{}, fmt.Errorf("作品 %q 的价格无效: %w", seed.Title, err)
	}
	in := gallery.ArtworkInput{
		Title:       strings.TrimSpace(seed.Title),
		Artist:      strings.TrimSpace(seed.Artist),
		Description: seed.Description,
		Price:       price,
		ImageURL:    seed.ImageURL,
		Dimensions:  seed.Dimensions,
		Medium:      seed.Medium,
		Year:        seed.Year,
	}
	if email := strings.ToLower(strings.TrimSpace(seed.ArtistEmail)); email != "" {
		artist, ok := artists[email]
		if !ok {
			return in, fmt.Errorf("作品 %q 引用了未知的艺术家 %s", seed.Title, seed.ArtistEmail)
		}
		id := artist.ID
		in.ArtistID = &id
		if in.Artist == "" {
			in.Artist = artist.Name
		}
	}
	return in, nil
}

func exhibitionInput(seed ExhibitionSeed) (gallery.ExhibitionInput, error) {
	start, err := gallery.ParseDate(seed.StartDate)
	if err != nil {
		return gallery.ExhibitionInput{}, fmt.Errorf("展览 %q: %w", seed.Title, err)
	}
	end, err := gallery.ParseDate(seed.EndDate)
	if err != nil {
		return gallery.ExhibitionInput{}, fmt.Errorf("展览 %q: %w", seed.Title, err)
	}
	price, err := parseAmount(seed.TicketPrice)
	if err != nil {
		return gallery.ExhibitionInput{}, fmt.Errorf("展览 %q 的票价无效: %w", seed.Title, err)
	}
	return gallery.ExhibitionInput{
		Title:       strings.TrimSpace(seed.Title),
		Description: seed.Description,
		Location:    seed.Location,
		StartDate:   start,
		EndDate:     end,
		TicketPrice: price,
		ImageURL:    seed.ImageURL,
		TotalSlots:  seed.TotalSlots,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func artworkKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
}
