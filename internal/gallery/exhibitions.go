package gallery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"AfriArt-Gallery/internal/auth"
	xerrors "AfriArt-Gallery/internal/errors"
)

// ListExhibitions 返回全部展览，状态按当前时间计算。
func (s *Service) ListExhibitions(ctx context.Context) ([]Exhibition, error) {
	exhibitions, err := s.store.ListExhibitions(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range exhibitions {
		exhibitions[i].Status = StatusAt(exhibitions[i].StartDate, exhibitions[i].EndDate, now)
		exhibitions[i].ImageURL = NormalizeImageURL(exhibitions[i].ImageURL)
	}
	return exhibitions, nil
}

// GetExhibition 返回单个展览。
func (s *Service) GetExhibition(ctx context.Context, id int64) (*Exhibition, error) {
	exhibition, err := s.store.GetExhibition(ctx, id)
	if err != nil {
		return nil, err
	}
	exhibition.Status = StatusAt(exhibition.StartDate, exhibition.EndDate, s.now())
	exhibition.ImageURL = NormalizeImageURL(exhibition.ImageURL)
	return exhibition, nil
}

// CreateExhibition 创建展览，仅管理员可操作。
func (s *Service) CreateExhibition(ctx context.Context, subject *auth.Subject, in ExhibitionInput) (*Exhibition, error) {
	if err := auth.CanManageExhibition(subject); err != nil {
		return nil, err
	}
	if err := validateExhibition(&in); err != nil {
		return nil, err
	}
	available := in.TotalSlots
	if in.AvailableSlots != nil {
		available = *in.AvailableSlots
	}
	if available > in.TotalSlots {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "availableSlots cannot exceed totalSlots")
	}
	exhibition := &Exhibition{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Location:       in.Location,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		TicketPrice:    in.TicketPrice,
		ImageURL:       storedImage(in.ImageURL),
		TotalSlots:     in.TotalSlots,
		AvailableSlots: available,
		Status:         StatusAt(in.StartDate, in.EndDate, s.now()),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateExhibition(ctx, exhibition); err != nil {
		return nil, err
	}
	s.audit.Info("exhibition_created", slog.Int64("exhibition_id", exhibition.ID), slog.String("subject", subject.String()))
	return s.GetExhibition(ctx, exhibition.ID)
}

// UpdateExhibition 替换展览内容。未给出 availableSlots 时，余量随总量调整，
// 已售出的展位保持不变。
func (s *Service) UpdateExhibition(ctx context.Context, subject *auth.Subject, id int64, in ExhibitionInput) (*Exhibition, error) {
	if err := auth.CanManageExhibition(subject); err != nil {
		return nil, err
	}
	if err := validateExhibition(&in); err != nil {
		return nil, err
	}
	err := s.store.UpdateExhibition(ctx, id, func(current *Exhibition) error {
		booked := current.TotalSlots - current.AvailableSlots
		available := in.TotalSlots - booked
		if in.AvailableSlots != nil {
			available = *in.AvailableSlots
		}
		if available < 0 {
			return xerrors.New(xerrors.CodeInvalidArgument, "totalSlots cannot be lower than the slots already booked")
		}
		if available > in.TotalSlots {
			return xerrors.New(xerrors.CodeInvalidArgument, "availableSlots cannot exceed totalSlots")
		}
		current.Title = strings.TrimSpace(in.Title)
		current.Description = in.Description
		current.Location = in.Location
		current.StartDate = in.StartDate
		current.EndDate = in.EndDate
		current.TicketPrice = in.TicketPrice
		if in.ImageURL != "" {
			current.ImageURL = storedImage(in.ImageURL)
		}
		current.TotalSlots = in.TotalSlots
		current.AvailableSlots = available
		current.Status = StatusAt(in.StartDate, in.EndDate, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Info("exhibition_updated", slog.Int64("exhibition_id", id), slog.String("subject", subject.String()))
	return s.GetExhibition(ctx, id)
}

// DeleteExhibition 删除展览，仅管理员可操作。
func (s *Service) DeleteExhibition(ctx context.Context, subject *auth.Subject, id int64) error {
	if err := auth.CanManageExhibition(subject); err != nil {
		return err
	}
	if err := s.store.DeleteExhibition(ctx, id); err != nil {
		return err
	}
	s.audit.Info("exhibition_deleted", slog.Int64("exhibition_id", id), slog.String("subject", subject.String()))
	return nil
}

// RefreshStatuses 按给定时间重算所有展览的状态，返回发生变化的数量。
func (s *Service) RefreshStatuses(ctx context.Context, now time.Time) (int, error) {
	exhibitions, err := s.store.ListExhibitions(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, exhibition := range exhibitions {
		status := StatusAt(exhibition.StartDate, exhibition.EndDate, now)
		if status == exhibition.Status {
			continue
		}
		if err := s.store.SetExhibitionStatus(ctx, exhibition.ID, status); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		s.log.Info("展览状态已刷新", slog.Int("changed", changed))
	}
	return changed, nil
}

// StatusAt derives an exhibition status. The end date is inclusive.
func StatusAt(start, end Date, now time.Time) ExhibitionStatus {
	today := NewDate(now)
	switch {
	case !start.IsZero() && today.Before(start.Time):
		return ExhibitionUpcoming
	case !end.IsZero() && today.After(end.Time):
		return ExhibitionPast
	default:
		return ExhibitionOngoing
	}
}

func validateExhibition(in *ExhibitionInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	if in.TicketPrice.IsNegative() {
		return xerrors.New(xerrors.CodeInvalidArgument, "ticketPrice must not be negative")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate.Time) {
		return xerrors.New(xerrors.CodeInvalidArgument, "endDate must not be before startDate")
	}
	return nil
}
