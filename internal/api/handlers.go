package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/pipeline"
)

// UnderservedResponse is the body of GET /underserved.
type UnderservedResponse struct {
	TotalCities     int                        `json:"total_cities"`
	Underserved     []model.UnderservedView    `json:"underserved"`
	Recommendations []model.RecommendationView `json:"recommendations"`
}

// current returns the active context or writes 503 when none is loaded.
func (s *Server) current(w http.ResponseWriter) *pipeline.AnalysisContext {
	ac := s.src.Current()
	if ac == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis data not loaded")
	}
	return ac
}

// result returns the memoised analysis of the active context.
func (s *Server) result(w http.ResponseWriter, r *http.Request) *model.Result {
	ac := s.current(w)
	if ac == nil {
		return nil
	}
	res, err := ac.Result(r.Context())
	if err != nil {
		s.log.Error("analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return res
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Underserved community analysis API. See /underserved, /recommendations, /search and /analyze.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ac := s.src.Current()
	if ac == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"communities": len(ac.Snapshot.Communities),
		"built_at":    ac.Snapshot.BuiltAt.Format(time.RFC3339),
	})
}

func (s *Server) handleFacilities(class model.FacilityClass) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ac := s.current(w)
		if ac == nil {
			return
		}

		facilities := ac.Snapshot.Facilities[class]
		fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(facilities))}
		for _, f := range facilities {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Location.Lon, f.Location.Lat}),
				Properties: map[string]any{"name": f.Name, "class": string(class)},
			})
		}
		w.Header().Set("Content-Type", "application/geo+json")
		writeJSON(w, http.StatusOK, fc)
	}
}

func (s *Server) handleUnderserved(w http.ResponseWriter, r *http.Request) {
	res := s.result(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, UnderservedResponse{
		TotalCities:     len(res.Records),
		Underserved:     model.UnderservedViews(res.Underserved()),
		Recommendations: model.RecommendationViews(res.Recommendations),
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	res := s.result(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, model.RecommendationViews(res.Recommendations))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("city_name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "city_name is required")
		return
	}
	ac := s.current(w)
	if ac == nil {
		return
	}

	res, ok, err := pipeline.Lookup(ac, name)
	if !ok {
		writeError(w, http.StatusNotFound, "City not found")
		return
	}
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.View())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}
	ac := s.current(w)
	if ac == nil {
		return
	}

	p := model.Pt(lat, lon)
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, "coordinate "+p.String()+" out of range")
		return
	}

	key := s.cache.Key(ac.Snapshot.BuiltAt.UnixNano(), p)
	if view, ok := s.cache.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, view)
		return
	}

	res, err := pipeline.Probe(ac, p)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	view := res.View()
	s.cache.Put(key, view)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// writeAnalysisError maps pipeline errors onto HTTP statuses.
func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	var invalid *model.InvalidGeometryError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	}
	s.log.Error("analysis failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}
