package devapi

import (
	"net/http"
)

func (s *Server) handleAudios(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, nonNil(s.st.audios))
}

func (s *Server) audio(id int) *audio {
	for _, a := range s.st.audios {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ownStream returns the caller's stream with id. Callers hold s.mu.
func (s *Server) ownStream(r *http.Request, id int) *stream {
	uid := userIDFromContext(r.Context())
	for _, st := range s.st.streams {
		if st.ID == id && st.UserID == uid {
			return st
		}
	}
	return nil
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AudioID int `json:"audio_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.audio(req.AudioID)
	if a == nil {
		respondDetail(w, http.StatusNotFound, "Audio not found")
		return
	}
	st := &stream{
		ID: s.st.id(), UserID: userIDFromContext(r.Context()), AudioID: a.ID,
		CreatedAt: ts(s.now()), Audio: a,
	}
	s.st.streams = append(s.st.streams, st)
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		DurationListened int `json:"duration_listened"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ownStream(r, id)
	if st == nil {
		respondDetail(w, http.StatusNotFound, "Stream not found")
		return
	}
	if req.DurationListened > st.DurationListened {
		st.DurationListened = req.DurationListened
	}
	if st.Audio != nil && st.DurationListened >= st.Audio.DurationSeconds {
		st.Completed = true
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleClaimStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ownStream(r, id)
	switch {
	case st == nil:
		respondDetail(w, http.StatusNotFound, "Stream not found")
		return
	case !st.Completed:
		respondDetail(w, http.StatusBadRequest, "Listen to the full track before claiming")
		return
	case st.Claimed:
		respondDetail(w, http.StatusBadRequest, "Stream reward already claimed")
		return
	}

	st.Claimed = true
	st.AmountEarned = st.Audio.Amount
	s.st.credit(s.currentUser(r), st.AmountEarned, "activity", "Stream reward: "+st.Audio.Title, s.now())
	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Reward added to your activity balance",
		"amount_earned": st.AmountEarned,
	})
}

func (s *Server) handleStreamHistory(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var mine []*stream
	for i := len(s.st.streams) - 1; i >= 0; i-- {
		if st := s.st.streams[i]; st.UserID == uid {
			mine = append(mine, st)
		}
	}
	lo, hi := page(len(mine), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(mine[lo:hi]))
}
