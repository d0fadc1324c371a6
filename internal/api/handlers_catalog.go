package api

import (
	"net/http"
	"strconv"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/gallery"
)

func (s *Server) handleListArtworks(w http.ResponseWriter, r *http.Request) {
	artworks, err := s.gallery.ListArtworks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artworks)
}

func (s *Server) handleGetArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	artwork, err := s.gallery.GetArtwork(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artwork)
}

func (s *Server) handleSimilarArtworks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	artworks, err := s.gallery.SimilarArtworks(r.Context(), id, queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artworks)
}

func (s *Server) handleCreateArtwork(w http.ResponseWriter, r *http.Request) {
	var in gallery.ArtworkInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	artwork, err := s.gallery.CreateArtwork(r.Context(), auth.SubjectFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, artwork)
}

func (s *Server) handleUpdateArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in gallery.ArtworkInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	artwork, err := s.gallery.UpdateArtwork(r.Context(), auth.SubjectFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artwork)
}

func (s *Server) handleDeleteArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.gallery.DeleteArtwork(r.Context(), auth.SubjectFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Artwork deleted successfully"))
}

func (s *Server) handleArtistArtworks(w http.ResponseWriter, r *http.Request) {
	artworks, err := s.gallery.ListArtistArtworks(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artworks)
}

func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.gallery.ListArtists(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artists)
}

func (s *Server) handleListExhibitions(w http.ResponseWriter, r *http.Request) {
	exhibitions, err := s.gallery.ListExhibitions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exhibitions)
}

func (s *Server) handleGetExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	exhibition, err := s.gallery.GetExhibition(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exhibition)
}

func (s *Server) handleCreateExhibition(w http.ResponseWriter, r *http.Request) {
	var in gallery.ExhibitionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	exhibition, err := s.gallery.CreateExhibition(r.Context(), auth.SubjectFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exhibition)
}

func (s *Server) handleUpdateExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in gallery.ExhibitionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	exhibition, err := s.gallery.UpdateExhibition(r.Context(), auth.SubjectFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exhibition)
}

func (s *Server) handleDeleteExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.gallery.DeleteExhibition(r.Context(), auth.SubjectFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Exhibition deleted successfully"))
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var in gallery.MessageInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := s.gallery.SubmitMessage(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Message sent successfully", "id": strconv.FormatInt(msg.ID, 10)})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.gallery.ListMessages(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.gallery.UpdateMessageStatus(r.Context(), auth.SubjectFromContext(r.Context()), id, body.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Message status updated successfully"))
}
