package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"AfriArt-Gallery/internal/gallery"
)

// GalleryStore 实现 gallery.Store。
type GalleryStore struct {
	db *sql.DB
}

// NewGalleryStore 基于已建立的连接池创建 GalleryStore。
func NewGalleryStore(db *sql.DB) *GalleryStore {
	return &GalleryStore{db: db}
}

const artworkColumns = `id, title, artist, artist_id, COALESCE(description, ''), price, image_url,
        dimensions, medium, year, status, created_at`

func scanArtwork(row rowScanner) (*gallery.Artwork, error) {
	var (
		a        gallery.Artwork
		artistID sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Artist, &artistID, &a.Description, &a.Price, &a.ImageURL,
		&a.Dimensions, &a.Medium, &a.Year, &a.Status, &a.CreatedAt); err != nil {
		return nil, err
	}
	if artistID.Valid {
		id := artistID.Int64
		a.ArtistID = &id
	}
	return &a, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// ListArtworks 实现 gallery.ArtworkStore。
func (s *GalleryStore) ListArtworks(ctx context.Context) ([]gallery.Artwork, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+artworkColumns+` FROM artworks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageError(err, "查询作品失败")
	}
	defer rows.Close()

	out := make([]gallery.Artwork, 0)
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, storageError(err, "读取作品失败")
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历作品失败")
	}
	return out, nil
}

// GetArtwork 实现 gallery.ArtworkStore。
func (s *GalleryStore) GetArtwork(ctx context.Context, id int64) (*gallery.Artwork, error) {
	a, err := scanArtwork(s.db.QueryRowContext(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gallery.ErrArtworkNotFound
		}
		return nil, storageError(err, "读取作品失败")
	}
	return a, nil
}

// CreateArtwork 实现 gallery.ArtworkStore。
func (s *GalleryStore) CreateArtwork(ctx context.Context, a *gallery.Artwork) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO artworks
        (title, artist, artist_id, description, price, image_url, dimensions, medium, year, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Artist, nullableID(a.ArtistID), a.Description, a.Price, a.ImageURL,
		a.Dimensions, a.Medium, a.Year, a.Status, a.CreatedAt)
	if err != nil {
		return storageError(err, "写入作品失败")
	}
	return assignID(res, &a.ID)
}

// UpdateArtwork 实现 gallery.ArtworkStore。
func (s *GalleryStore) UpdateArtwork(ctx context.Context, a *gallery.Artwork) error {
	res, err := s.db.ExecContext(ctx, `UPDATE artworks SET
        title = ?, artist = ?, artist_id = ?, description = ?, price = ?, image_url = ?,
        dimensions = ?, medium = ?, year = ?, status = ?
        WHERE id = ?`,
		a.Title, a.Artist, nullableID(a.ArtistID), a.Description, a.Price, a.ImageURL,
		a.Dimensions, a.Medium, a.Year, a.Status, a.ID)
	if err != nil {
		return storageError(err, "更新作品失败")
	}
	return expectRow(res, gallery.ErrArtworkNotFound)
}

// DeleteArtwork 实现 gallery.ArtworkStore。
func (s *GalleryStore) DeleteArtwork(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artworks WHERE id = ?`, id)
	if err != nil {
		return storageError(err, "删除作品失败")
	}
	return expectRow(res, gallery.ErrArtworkNotFound)
}

const exhibitionColumns = `id, title, COALESCE(description, ''), location, start_date, end_date, ticket_price,
        image_url, total_slots, available_slots, status, created_at`

func scanExhibition(row rowScanner) (*gallery.Exhibition, error) {
	var e gallery.Exhibition
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartDate.Time, &e.EndDate.Time,
		&e.TicketPrice, &e.ImageURL, &e.TotalSlots, &e.AvailableSlots, &e.Status, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.StartDate = gallery.NewDate(e.StartDate.Time)
	e.EndDate = gallery.NewDate(e.EndDate.Time)
	return &e, nil
}

// ListExhibitions 实现 gallery.ExhibitionStore。
func (s *GalleryStore) ListExhibitions(ctx context.Context) ([]gallery.Exhibition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions ORDER BY start_date, id`)
	if err != nil {
		return nil, storageError(err, "查询展览失败")
	}
	defer rows.Close()

	out := make([]gallery.Exhibition, 0)
	for rows.Next() {
		e, err := scanExhibition(rows)
		if err != nil {
			return nil, storageError(err, "读取展览失败")
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历展览失败")
	}
	return out, nil
}

// GetExhibition 实现 gallery.ExhibitionStore。
func (s *GalleryStore) GetExhibition(ctx context.Context, id int64) (*gallery.Exhibition, error) {
	e, err := scanExhibition(s.db.QueryRowContext(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gallery.ErrExhibitionNotFound
		}
		return nil, storageError(err, "读取展览失败")
	}
	return e, nil
}

// CreateExhibition 实现 gallery.ExhibitionStore。
func (s *GalleryStore) CreateExhibition(ctx context.Context, e *gallery.Exhibition) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO exhibitions
        (title, description, location, start_date, end_date, ticket_price, image_url,
         total_slots, available_slots, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.Location, e.StartDate.String(), e.EndDate.String(), e.TicketPrice, e.ImageURL,
		e.TotalSlots, e.AvailableSlots, e.Status, e.CreatedAt)
	if err != nil {
		return storageError(err, "写入展览失败")
	}
	return assignID(res, &e.ID)
}

// UpdateExhibition 实现 gallery.ExhibitionStore。读取与写回在同一事务内完成，
// 行锁挡住并发的预订与展位归还。
func (s *GalleryStore) UpdateExhibition(ctx context.Context, id int64, apply func(current *gallery.Exhibition) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		e, err := scanExhibition(tx.QueryRowContext(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = ? FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return gallery.ErrExhibitionNotFound
			}
			return storageError(err, "锁定展览失败")
		}
		if err := apply(e); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE exhibitions SET
            title = ?, description = ?, location = ?, start_date = ?, end_date = ?, ticket_price = ?,
            image_url = ?, total_slots = ?, available_slots = ?, status = ?
            WHERE id = ?`,
			e.Title, e.Description, e.Location, e.StartDate.String(), e.EndDate.String(), e.TicketPrice,
			e.ImageURL, e.TotalSlots, e.AvailableSlots, e.Status, id); err != nil {
			return storageError(err, "更新展览失败")
		}
		return nil
	})
}

// DeleteExhibition 实现 gallery.ExhibitionStore。
func (s *GalleryStore) DeleteExhibition(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exhibitions WHERE id = ?`, id)
	if err != nil {
		return storageError(err, "删除展览失败")
	}
	return expectRow(res, gallery.ErrExhibitionNotFound)
}

// SetExhibitionStatus 实现 gallery.ExhibitionStore。
func (s *GalleryStore) SetExhibitionStatus(ctx context.Context, id int64, status gallery.ExhibitionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exhibitions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return storageError(err, "更新展览状态失败")
	}
	return expectRow(res, gallery.ErrExhibitionNotFound)
}

// CreateMessage 实现 gallery.MessageStore。
func (s *GalleryStore) CreateMessage(ctx context.Context, m *gallery.Message) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO contact_messages
        (name, email, phone, message, source, status, date_sent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Email, m.Phone, m.Message, m.Source, m.Status, m.CreatedAt)
	if err != nil {
		return storageError(err, "写入留言失败")
	}
	return assignID(res, &m.ID)
}

// ListMessages 实现 gallery.MessageStore。
func (s *GalleryStore) ListMessages(ctx context.Context) ([]gallery.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone, message, source, status, date_sent
        FROM contact_messages ORDER BY date_sent DESC, id DESC`)
	if err != nil {
		return nil, storageError(err, "查询留言失败")
	}
	defer rows.Close()

	out := make([]gallery.Message, 0)
	for rows.Next() {
		var m gallery.Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.Source, &m.Status, &m.CreatedAt); err != nil {
			return nil, storageError(err, "读取留言失败")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历留言失败")
	}
	return out, nil
}

// UpdateMessageStatus 实现 gallery.MessageStore。
func (s *GalleryStore) UpdateMessageStatus(ctx context.Context, id int64, status gallery.MessageStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contact_messages SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return storageError(err, "更新留言状态失败")
	}
	return expectRow(res, gallery.ErrMessageNotFound)
}

// 订单行上的作品与用户信息取自关联表，作品被删除后仍能读出订单本身。
const orderSelect = `SELECT o.id, o.user_id, COALESCE(u.name, ''), o.artwork_id, COALESCE(a.title, ''),
        COALESCE(a.artist, ''), a.artist_id, COALESCE(a.medium, ''), o.total_amount, o.delivery_address,
        o.phone, o.status, o.payment_status, o.order_date
        FROM artwork_orders o
        LEFT JOIN artworks a ON a.id = o.artwork_id
        LEFT JOIN users u ON u.id = o.user_id`

func scanOrder(row rowScanner) (*gallery.ArtworkOrder, error) {
	var (
		o        gallery.ArtworkOrder
		artistID sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.UserName, &o.ArtworkID, &o.ArtworkTitle, &o.Artist, &artistID,
		&o.Medium, &o.TotalAmount, &o.DeliveryAddress, &o.Phone, &o.Status, &o.PaymentStatus, &o.OrderDate); err != nil {
		return nil, err
	}
	if artistID.Valid {
		id := artistID.Int64
		o.ArtistID = &id
	}
	return &o, nil
}

// CreateArtworkOrder 实现 gallery.OrderStore。
func (s *GalleryStore) CreateArtworkOrder(ctx context.Context, o *gallery.ArtworkOrder) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO artwork_orders
        (user_id, artwork_id, total_amount, delivery_address, phone, status, payment_status, order_date)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID, o.ArtworkID, o.TotalAmount, o.DeliveryAddress, o.Phone, o.Status, o.PaymentStatus, o.OrderDate)
	if err != nil {
		return storageError(err, "写入订单失败")
	}
	return assignID(res, &o.ID)
}

// GetArtworkOrder 实现 gallery.OrderStore。
func (s *GalleryStore) GetArtworkOrder(ctx context.Context, id int64) (*gallery.ArtworkOrder, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gallery.ErrOrderNotFound
		}
		return nil, storageError(err, "读取订单失败")
	}
	return o, nil
}

// ListArtworkOrders 实现 gallery.OrderStore，结果按下单时间倒序。
func (s *GalleryStore) ListArtworkOrders(ctx context.Context, filter gallery.OrderFilter) ([]gallery.ArtworkOrder, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		where = append(where, "o.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ArtistID != 0 {
		where = append(where, "a.artist_id = ?")
		args = append(args, filter.ArtistID)
	}
	query := orderSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.order_date DESC, o.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "查询订单失败")
	}
	defer rows.Close()

	out := make([]gallery.ArtworkOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageError(err, "读取订单失败")
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历订单失败")
	}
	return out, nil
}

// SetArtworkOrderPayment 实现 gallery.OrderStore。付款完成时在同一事务内把作品标记为已售，
// 并作废同一作品上其余待付款的订单。
func (s *GalleryStore) SetArtworkOrderPayment(ctx context.Context, id int64, status gallery.PaymentStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			artworkID int64
			current   gallery.PaymentStatus
		)
		err := tx.QueryRowContext(ctx, `SELECT artwork_id, payment_status FROM artwork_orders WHERE id = ? FOR UPDATE`, id).
			Scan(&artworkID, &current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return gallery.ErrOrderNotFound
			}
			return storageError(err, "锁定订单失败")
		}
		apply, err := gallery.CheckPaymentTransition(current, status)
		if !apply {
			return err
		}

		switch status {
		case gallery.PaymentCompleted:
			_, err = tx.ExecContext(ctx, `UPDATE artwork_orders SET payment_status = ?, status = ? WHERE id = ?`,
				status, gallery.OrderCompleted, id)
			if err == nil {
				_, err = tx.ExecContext(ctx, `UPDATE artworks SET status = ? WHERE id = ?`, gallery.ArtworkSold, artworkID)
			}
			if err == nil {
				_, err = tx.ExecContext(ctx, `UPDATE artwork_orders SET payment_status = ?, status = ?
                    WHERE artwork_id = ? AND id <> ? AND payment_status = ?`,
					gallery.PaymentFailed, gallery.OrderCancelled, artworkID, id, gallery.PaymentPending)
			}
		case gallery.PaymentFailed:
			_, err = tx.ExecContext(ctx, `UPDATE artwork_orders SET payment_status = ?, status = ? WHERE id = ?`,
				status, gallery.OrderCancelled, id)
		default:
			_, err = tx.ExecContext(ctx, `UPDATE artwork_orders SET payment_status = ? WHERE id = ?`, status, id)
		}
		if err != nil {
			return storageError(err, "更新订单付款状态失败")
		}
		return nil
	})
}

// CreateBooking 实现 gallery.OrderStore。扣减展位使用带条件的 UPDATE，
// 并发预订不会超卖。
func (s *GalleryStore) CreateBooking(ctx context.Context, b *gallery.Booking) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE exhibitions SET available_slots = available_slots - ?
            WHERE id = ? AND available_slots >= ?`, b.Slots, b.ExhibitionID, b.Slots)
		if err != nil {
			return storageError(err, "预留展位失败")
		}
		if n, err := res.RowsAffected(); err != nil {
			return storageError(err, "读取影响行数失败")
		} else if n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM exhibitions WHERE id = ?`, b.ExhibitionID).Scan(&one)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return gallery.ErrExhibitionNotFound
			case err != nil:
				return storageError(err, "读取展览失败")
			}
			return gallery.ErrInsufficientSlots
		}

		res, err = tx.ExecContext(ctx, `INSERT INTO exhibition_bookings
            (user_id, exhibition_id, booking_date, ticket_code, slots, phone, status, total_amount, payment_status)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.UserID, b.ExhibitionID, b.BookingDate, b.TicketCode, b.Slots, b.Phone, b.Status, b.TotalAmount, b.PaymentStatus)
		if err != nil {
			return storageError(err, "写入预订失败")
		}
		return assignID(res, &b.ID)
	})
}

const bookingSelect = `SELECT b.id, b.user_id, COALESCE(u.name, ''), b.exhibition_id, COALESCE(e.title, ''),
        COALESCE(e.image_url, ''), b.booking_date, b.ticket_code, b.slots, b.phone, b.status,
        b.total_amount, b.payment_status
        FROM exhibition_bookings b
        LEFT JOIN exhibitions e ON e.id = b.exhibition_id
        LEFT JOIN users u ON u.id = b.user_id`

func scanBooking(row rowScanner) (*gallery.Booking, error) {
	var b gallery.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.UserName, &b.ExhibitionID, &b.ExhibitionTitle, &b.ExhibitionImageURL,
		&b.BookingDate, &b.TicketCode, &b.Slots, &b.Phone, &b.Status, &b.TotalAmount, &b.PaymentStatus); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooking 实现 gallery.OrderStore。
func (s *GalleryStore) GetBooking(ctx context.Context, id int64) (*gallery.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gallery.ErrBookingNotFound
		}
		return nil, storageError(err, "读取预订失败")
	}
	return b, nil
}

// ListBookings 实现 gallery.OrderStore，结果按预订时间倒序。
func (s *GalleryStore) ListBookings(ctx context.Context, filter gallery.OrderFilter) ([]gallery.Booking, error) {
	query := bookingSelect
	var args []any
	if filter.UserID != 0 {
		query += " WHERE b.user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY b.booking_date DESC, b.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "查询预订失败")
	}
	defer rows.Close()

	out := make([]gallery.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, storageError(err, "读取预订失败")
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历预订失败")
	}
	return out, nil
}

// SetBookingPayment 实现 gallery.OrderStore。付款失败时作废门票并归还展位，只归还一次；
// 已作废的门票不再接受成功结果。
func (s *GalleryStore) SetBookingPayment(ctx context.Context, id int64, status gallery.PaymentStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			exhibitionID int64
			slots        int
			ticket       gallery.TicketStatus
			current      gallery.PaymentStatus
		)
		err := tx.QueryRowContext(ctx, `SELECT exhibition_id, slots, status, payment_status
            FROM exhibition_bookings WHERE id = ? FOR UPDATE`, id).
			Scan(&exhibitionID, &slots, &ticket, &current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return gallery.ErrBookingNotFound
			}
			return storageError(err, "锁定预订失败")
		}
		apply, err := gallery.CheckPaymentTransition(current, status)
		if !apply {
			return err
		}
		if status == gallery.PaymentCompleted && ticket == gallery.TicketCancelled {
			return gallery.ErrSettlementConflict
		}

		if status == gallery.PaymentFailed && ticket != gallery.TicketCancelled {
			if _, err := tx.ExecContext(ctx, `UPDATE exhibition_bookings SET payment_status = ?, status = ? WHERE id = ?`,
				status, gallery.TicketCancelled, id); err != nil {
				return storageError(err, "作废门票失败")
			}
			if _, err := tx.ExecContext(ctx, `UPDATE exhibitions SET available_slots = LEAST(total_slots, available_slots + ?) WHERE id = ?`,
				slots, exhibitionID); err != nil {
				return storageError(err, "归还展位失败")
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE exhibition_bookings SET payment_status = ? WHERE id = ?`, status, id); err != nil {
			return storageError(err, "更新预订付款状态失败")
		}
		return nil
	})
}

// inTx 在事务中执行 fn，fn 返回错误时回滚。
func (s *GalleryStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withTx(ctx, s.db, fn)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err, "开启事务失败")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageError(err, "提交事务失败")
	}
	return nil
}

func assignID(res sql.Result, dst *int64) error {
	id, err := res.LastInsertId()
	if err != nil {
		return storageError(err, "读取自增 id 失败")
	}
	*dst = id
	return nil
}
