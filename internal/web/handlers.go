package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/profile"
	"github.com/ROrodrigp/spotifire/internal/store"
)

// ProfileReader serves classified profiles to the API.
type ProfileReader interface {
	Latest(ctx context.Context, userID string) (profile.Profile, error)
	PersonaDistribution(ctx context.Context) (map[profile.Persona]int, error)
}

// VectorReader serves feature vectors to the API.
type VectorReader interface {
	Latest(ctx context.Context, userID string) (feature.Vector, error)
}

// Handlers holds HTTP handlers for the API.
type Handlers struct {
	profiles ProfileReader
	vectors  VectorReader
	log      *logrus.Logger
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(profiles ProfileReader, vectors VectorReader, log *logrus.Logger) *Handlers {
	return &Handlers{profiles: profiles, vectors: vectors, log: log}
}

type profileResponse struct {
	UserID          string             `json:"user_id"`
	Persona         string             `json:"persona"`
	PersonaName     string             `json:"persona_name"`
	Description     string             `json:"description"`
	Cluster         int                `json:"cluster"`
	ClusterDistance float64            `json:"cluster_distance"`
	ComputedAt      time.Time          `json:"computed_at"`
	Sparse          bool               `json:"sparse"`
	Features        map[string]float64 `json:"features,omitempty"`
}

type personaCount struct {
	Persona     string `json:"persona"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Users       int    `json:"users"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Profile returns a user's most recent persona assignment together with
// the feature vector it was classified from.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	prof, err := h.profiles.Latest(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no profile for user"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("loading profile")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	info := profile.Describe(prof.Persona)
	resp := profileResponse{
		UserID:          prof.UserID,
		Persona:         prof.Persona.String(),
		PersonaName:     info.Name,
		Description:     info.Description,
		Cluster:         prof.Cluster,
		ClusterDistance: prof.ClusterDistance,
		ComputedAt:      prof.ComputedAt,
		Sparse:          prof.Cluster < 0,
	}

	vec, err := h.vectors.Latest(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Profile without a vector should not happen, but the profile is
		// still worth returning.
	case err != nil:
		h.log.WithError(err).WithField("user_id", userID).Error("loading vector")
	default:
		resp.Features = make(map[string]float64, len(feature.Names()))
		for _, name := range feature.Names() {
			resp.Features[name] = vec.Value(name)
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Personas returns the user count per persona across latest profiles.
// Personas with zero users are included so clients see the full set.
func (h *Handlers) Personas(w http.ResponseWriter, r *http.Request) {
	dist, err := h.profiles.PersonaDistribution(r.Context())
	if err != nil {
		h.log.WithError(err).Error("loading persona distribution")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	counts := make([]personaCount, 0, len(profile.Personas()))
	for _, p := range profile.Personas() {
		info := profile.Describe(p)
		counts = append(counts, personaCount{
			Persona:     p.String(),
			Name:        info.Name,
			Description: info.Description,
			Users:       dist[p],
		})
	}
	h.writeJSON(w, http.StatusOK, counts)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Error("encoding response")
	}
}
