package api

import (
	"net/http"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/gallery"
)

func (s *Server) handlePlaceArtworkOrder(w http.ResponseWriter, r *http.Request) {
	var in gallery.ArtworkOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.gallery.PlaceArtworkOrder(r.Context(), auth.SubjectFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleBookExhibition(w http.ResponseWriter, r *http.Request) {
	var in gallery.BookingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := s.gallery.BookExhibition(r.Context(), auth.SubjectFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.gallery.ListOrders(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := s.gallery.ListUserOrders(r.Context(), auth.SubjectFromContext(r.Context()), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleArtistOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.gallery.ListArtistOrders(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.gallery.ListTickets(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGenerateTicket(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "bookingId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ticket, err := s.gallery.GenerateTicket(r.Context(), auth.SubjectFromContext(r.Context()), bookingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleUserTickets(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tickets, err := s.gallery.ListUserTickets(r.Context(), auth.SubjectFromContext(r.Context()), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	artworks, err := s.gallery.Recommend(r.Context(), auth.SubjectFromContext(r.Context()), userID, queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artworks)
}
