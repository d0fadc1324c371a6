package afriart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Account types accepted by the login endpoints.
const (
	RoleUser   = "user"
	RoleArtist = "artist"
	RoleAdmin  = "admin"
)

// ErrNoToken is returned by calls that need a session before Login was called.
var ErrNoToken = errors.New("afriart: access token is not set")

// Client wraps the HTTP interactions with the AfriArt gallery API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
	accountID   int64
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	AccountID int64
	Name      string
	Role      string
}

// Registration is the payload for /register and /register-artist.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// Artwork mirrors the catalog representation of an artwork.
type Artwork struct {
	ID          int64           `json:"id,string"`
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	ArtistID    *int64          `json:"artist_id,omitempty"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Dimensions  string          `json:"dimensions,omitempty"`
	Medium      string          `json:"medium,omitempty"`
	Year        int             `json:"year,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ArtworkInput creates or replaces an artwork. Artists always publish under
// their own name.
type ArtworkInput struct {
	Title       string          `json:"title"`
	Artist      string          `json:"artist,omitempty"`
	ArtistID    *int64          `json:"artist_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Dimensions  string          `json:"dimensions,omitempty"`
	Medium      string          `json:"medium,omitempty"`
	Year        int             `json:"year,omitempty"`
	Status      string          `json:"status,omitempty"`
}

// Exhibition mirrors the catalog representation of an exhibition. Dates are
// calendar days formatted as 2006-01-02.
type Exhibition struct {
	ID             int64           `json:"id,string"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Location       string          `json:"location"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	TicketPrice    decimal.Decimal `json:"ticketPrice"`
	ImageURL       string          `json:"imageUrl"`
	TotalSlots     int             `json:"totalSlots"`
	AvailableSlots int             `json:"availableSlots"`
	Status         string          `json:"status"`
}

// ArtworkOrder is a customer order for a single artwork.
type ArtworkOrder struct {
	ID              int64           `json:"id,string"`
	UserID          int64           `json:"user_id"`
	ArtworkID       int64           `json:"artwork_id,string"`
	ArtworkTitle    string          `json:"artwork_title"`
	Artist          string          `json:"artist"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	OrderDate       time.Time       `json:"order_date"`
}

// Booking is an exhibition booking; it doubles as the ticket.
type Booking struct {
	ID              int64           `json:"id,string"`
	UserID          int64           `json:"user_id"`
	ExhibitionID    int64           `json:"exhibition_id,string"`
	ExhibitionTitle string          `json:"exhibition_title"`
	TicketCode      string          `json:"ticket_code"`
	Slots           int             `json:"slots"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentStatus   string          `json:"payment_status"`
	BookingDate     time.Time       `json:"booking_date"`
}

// Orders groups a customer's artwork orders and bookings.
type Orders struct {
	Orders   []ArtworkOrder `json:"orders"`
	Bookings []Booking      `json:"bookings"`
}

// Payment is the M-Pesa STK push request.
type Payment struct {
	PhoneNumber string          `json:"phoneNumber"`
	Amount      decimal.Decimal `json:"amount"`
	OrderType   string          `json:"orderType"`
	OrderID     int64           `json:"orderId"`
	UserID      int64           `json:"userId,omitempty"`
}

// PaymentStarted identifies a pending STK push.
type PaymentStarted struct {
	CheckoutRequestID   string `json:"checkoutRequestId"`
	MerchantRequestID   string `json:"merchantRequestId"`
	ResponseDescription string `json:"responseDescription"`
	CustomerMessage     string `json:"customerMessage"`
}

// PaymentStatus is the current state of an STK push.
type PaymentStatus struct {
	CheckoutRequestID string          `json:"checkoutRequestId"`
	Status            string          `json:"status"`
	ResultCode        *int            `json:"resultCode,omitempty"`
	ResultDesc        string          `json:"resultDesc,omitempty"`
	ReceiptNumber     string          `json:"receiptNumber,omitempty"`
	OrderType         string          `json:"orderType"`
	OrderID           int64           `json:"orderId"`
	Amount            decimal.Decimal `json:"amount"`
}

// Pending reports whether the payment is still waiting for the customer.
func (s PaymentStatus) Pending() bool { return s.Status == "pending" }

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("afriart api error (%d): %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// NewClient instantiates a client for the gallery API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Login authenticates an account of the given role and stores the token for
// subsequent calls.
func (c *Client) Login(ctx context.Context, role, email, password string) (Session, error) {
	endpoint := "/login"
	switch role {
	case RoleUser, "":
		role = RoleUser
	case RoleArtist:
		endpoint = "/artist-login"
	case RoleAdmin:
		endpoint = "/admin-login"
	default:
		return Session{}, fmt.Errorf("afriart: unknown role %q", role)
	}
	creds := map[string]string{"email": email, "password": password}
	return c.startSession(ctx, endpoint, role, creds)
}

// Register creates a customer account, or an artist account when artist is
// true, and stores the issued token.
func (c *Client) Register(ctx context.Context, reg Registration, artist bool) (Session, error) {
	if artist {
		return c.startSession(ctx, "/register-artist", RoleArtist, reg)
	}
	return c.startSession(ctx, "/register", RoleUser, reg)
}

func (c *Client) startSession(ctx context.Context, endpoint, role string, payload any) (Session, error) {
	var raw map[string]json.RawMessage
	if err := c.send(ctx, http.MethodPost, endpoint, payload, &raw, false); err != nil {
		return Session{}, err
	}
	session := Session{Role: role}
	if err := json.Unmarshal(raw["token"], &session.Token); err != nil || session.Token == "" {
		return Session{}, errors.New("afriart: response carries no token")
	}
	_ = json.Unmarshal(raw["name"], &session.Name)
	_ = json.Unmarshal(raw[role+"_id"], &session.AccountID)

	c.mu.Lock()
	c.accessToken = session.Token
	c.accountID = session.AccountID
	c.mu.Unlock()
	return session, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken overrides the stored token, e.g. one persisted by a caller.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
	c.accountID = 0
}

// ListArtworks returns the public catalog.
func (c *Client) ListArtworks(ctx context.Context) ([]Artwork, error) {
	var out []Artwork
	err := c.send(ctx, http.MethodGet, "/artworks", nil, &out, false)
	return out, err
}

// GetArtwork fetches a single artwork.
func (c *Client) GetArtwork(ctx context.Context, id int64) (Artwork, error) {
	var out Artwork
	err := c.send(ctx, http.MethodGet, "/artworks/"+strconv.FormatInt(id, 10), nil, &out, false)
	return out, err
}

// SimilarArtworks returns artworks similar to id.
func (c *Client) SimilarArtworks(ctx context.Context, id int64, limit int) ([]Artwork, error) {
	endpoint := "/artworks/" + strconv.FormatInt(id, 10) + "/similar"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var out []Artwork
	err := c.send(ctx, http.MethodGet, endpoint, nil, &out, false)
	return out, err
}

// CreateArtwork publishes an artwork as the logged in artist or admin.
func (c *Client) CreateArtwork(ctx context.Context, in ArtworkInput) (Artwork, error) {
	var out Artwork
	err := c.send(ctx, http.MethodPost, "/artworks", in, &out, true)
	return out, err
}

// UpdateArtwork replaces an artwork.
func (c *Client) UpdateArtwork(ctx context.Context, id int64, in ArtworkInput) (Artwork, error) {
	var out Artwork
	err := c.send(ctx, http.MethodPut, "/artworks/"+strconv.FormatInt(id, 10), in, &out, true)
	return out, err
}

// DeleteArtwork removes an artwork.
func (c *Client) DeleteArtwork(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, "/artworks/"+strconv.FormatInt(id, 10), nil, nil, true)
}

// MyArtworks lists the logged in artist's artworks.
func (c *Client) MyArtworks(ctx context.Context) ([]Artwork, error) {
	var out []Artwork
	err := c.send(ctx, http.MethodGet, "/artist/artworks", nil, &out, true)
	return out, err
}

// ListExhibitions returns all exhibitions.
func (c *Client) ListExhibitions(ctx context.Context) ([]Exhibition, error) {
	var out []Exhibition
	err := c.send(ctx, http.MethodGet, "/exhibitions", nil, &out, false)
	return out, err
}

// GetExhibition fetches a single exhibition.
func (c *Client) GetExhibition(ctx context.Context, id int64) (Exhibition, error) {
	var out Exhibition
	err := c.send(ctx, http.MethodGet, "/exhibitions/"+strconv.FormatInt(id, 10), nil, &out, false)
	return out, err
}

// OrderArtwork places an order for an artwork.
func (c *Client) OrderArtwork(ctx context.Context, artworkID int64, deliveryAddress, phone string) (ArtworkOrder, error) {
	payload := map[string]any{
		"artworkId":       artworkID,
		"deliveryAddress": deliveryAddress,
		"phone":           phone,
	}
	var out ArtworkOrder
	err := c.send(ctx, http.MethodPost, "/orders/artwork", payload, &out, true)
	return out, err
}

// BookExhibition reserves slots at an exhibition.
func (c *Client) BookExhibition(ctx context.Context, exhibitionID int64, slots int, phone string) (Booking, error) {
	payload := map[string]any{
		"exhibitionId": exhibitionID,
		"slots":        slots,
		"phone":        phone,
	}
	var out Booking
	err := c.send(ctx, http.MethodPost, "/orders/exhibition", payload, &out, true)
	return out, err
}

// MyOrders lists the orders and bookings of the logged in customer.
func (c *Client) MyOrders(ctx context.Context) (Orders, error) {
	c.mu.RLock()
	id := c.accountID
	c.mu.RUnlock()
	if id == 0 {
		return Orders{}, errors.New("afriart: account id unknown, use UserOrders")
	}
	return c.UserOrders(ctx, id)
}

// UserOrders lists the orders and bookings of a customer.
func (c *Client) UserOrders(ctx context.Context, userID int64) (Orders, error) {
	var out Orders
	err := c.send(ctx, http.MethodGet, "/orders/user/"+strconv.FormatInt(userID, 10), nil, &out, true)
	return out, err
}

// Pay starts an M-Pesa STK push for an order or booking.
func (c *Client) Pay(ctx context.Context, p Payment) (PaymentStarted, error) {
	var out PaymentStarted
	err := c.send(ctx, http.MethodPost, "/mpesa/stk-push", p, &out, true)
	return out, err
}

// PaymentStatus fetches the state of an STK push.
func (c *Client) PaymentStatus(ctx context.Context, checkoutRequestID string) (PaymentStatus, error) {
	var out PaymentStatus
	endpoint := "/mpesa/status/" + url.PathEscape(checkoutRequestID)
	err := c.send(ctx, http.MethodGet, endpoint, nil, &out, true)
	return out, err
}

// WaitForPayment polls the payment status every interval until it leaves
// pending or ctx is done.
func (c *Client) WaitForPayment(ctx context.Context, checkoutRequestID string, interval time.Duration) (PaymentStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.PaymentStatus(ctx, checkoutRequestID)
		if err != nil || !status.Pending() {
			return status, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload, out any, withAuth bool) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, endpoint, body, withAuth)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, withAuth bool) (*http.Request, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, rel.Path)
	u.RawPath = ""
	u.RawQuery = rel.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if withAuth {
		token := c.AccessToken()
		if token == "" {
			return nil, ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
