package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"guildstats/internal/tracker"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	limit := tracker.DefaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	overview, err := s.reader.Overview(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.reader.GameLeaderboard(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	totals, err := s.reader.GameTotalsByName(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	discordID := mux.Vars(r)["id"]
	totals, err := s.reader.UserTotalsByDiscordID(r.Context(), discordID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.store.GetGameServers(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, servers)
}

// handleAggregate triggers a drain cycle outside the regular schedule.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if err := s.aggregator.RunCycle(r.Context()); err != nil {
		s.log.Error("manual aggregation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
