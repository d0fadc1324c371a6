package auth

import "strconv"

// The checks below are the single place where route-level authorization is
// decided. Every handler and domain service goes through them.

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated(subject *Subject) error {
	if subject == nil {
		return ErrMissingToken
	}
	return nil
}

// RequireAdmin allows admins only.
func RequireAdmin(subject *Subject) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if !subject.IsAdmin() {
		return PermissionDenied("Unauthorized access: Admin privileges required")
	}
	return nil
}

// RequireArtist allows artists only.
func RequireArtist(subject *Subject) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if !subject.IsArtist() {
		return PermissionDenied("Unauthorized access: Artist privileges required")
	}
	return nil
}

// CanCreateArtwork allows admins and artists.
func CanCreateArtwork(subject *Subject) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if !subject.IsAdmin() && !subject.IsArtist() {
		return PermissionDenied("Unauthorized access: Admin or artist privileges required")
	}
	return nil
}

// ArtworkAction names the write being attempted, for the denial message.
type ArtworkAction string

const (
	ActionEdit   ArtworkAction = "edit"
	ActionDelete ArtworkAction = "delete"
)

// CanManageArtwork allows admins, and the artist whose id matches the
// artwork's owner. Ids are compared in their decimal string form, the way
// they travel in the token. Regular users are always denied.
func CanManageArtwork(subject *Subject, ownerArtistID *int64, action ArtworkAction) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if subject.IsAdmin() {
		return nil
	}
	if !subject.IsArtist() {
		return PermissionDenied("Unauthorized access: Not authorized")
	}
	if ownerArtistID == nil || strconv.FormatInt(*ownerArtistID, 10) != subject.IDString() {
		return PermissionDenied("Unauthorized access: You can only " + string(action) + " your own artworks")
	}
	return nil
}

// CanManageExhibition allows admins only.
func CanManageExhibition(subject *Subject) error { return RequireAdmin(subject) }

// CanManageMessages allows admins only.
func CanManageMessages(subject *Subject) error { return RequireAdmin(subject) }

// CanListAllOrders allows admins only.
func CanListAllOrders(subject *Subject) error { return RequireAdmin(subject) }

// CanListAllTickets allows admins only.
func CanListAllTickets(subject *Subject) error { return RequireAdmin(subject) }

// CanListArtists allows admins only.
func CanListArtists(subject *Subject) error { return RequireAdmin(subject) }

// CanViewUserResources allows admins, and the user whose resources they are.
func CanViewUserResources(subject *Subject, userID int64) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if subject.IsAdmin() {
		return nil
	}
	if subject.IsUser() && subject.ID == userID {
		return nil
	}
	return PermissionDenied("Unauthorized access: You can only view your own records")
}

// CanViewBooking allows admins and the user who made the booking.
func CanViewBooking(subject *Subject, bookingUserID int64) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if subject.IsAdmin() || (subject.IsUser() && subject.ID == bookingUserID) {
		return nil
	}
	return PermissionDenied("Unauthorized access: You can only view your own tickets")
}

// CanPlaceOrder allows regular users only.
func CanPlaceOrder(subject *Subject) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if !subject.IsUser() {
		return PermissionDenied("Unauthorized access: Only customers can place orders")
	}
	return nil
}

// CanPayFor allows the user who owns the order, and admins.
func CanPayFor(subject *Subject, orderUserID int64) error {
	if err := RequireAuthenticated(subject); err != nil {
		return err
	}
	if subject.IsAdmin() || (subject.IsUser() && subject.ID == orderUserID) {
		return nil
	}
	return PermissionDenied("Unauthorized access: You can only pay for your own orders")
}
