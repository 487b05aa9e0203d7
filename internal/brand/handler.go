package brand

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/models"
)

// URLValidator vets a scrape target before it is accepted.
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ProfileStore is the repository slice the REST handlers need.
type ProfileStore interface {
	Create(ctx context.Context, b *models.BrandProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BrandProfile, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.BrandProfile, error)
}

// StyleStore persists and lists style references.
type StyleStore interface {
	Create(ctx context.Context, s *models.StyleReference) error
	List(ctx context.Context) ([]*models.StyleReference, error)
}

// ScrapeEnqueuer hands a pending profile to the background scraper.
type ScrapeEnqueuer interface {
	ScrapeBrand(ctx context.Context, profileID uuid.UUID) error
}

// Handler serves the /api/v1/brands and /api/v1/styles endpoints.
type Handler struct {
	Guard    URLValidator
	Profiles ProfileStore
	Styles   StyleStore
	Jobs     ScrapeEnqueuer
	Logger   *slog.Logger
}

// --- POST /api/v1/brands ---

type createBrandRequest struct {
	SourceURL string `json:"source_url"`
}

// CreateBrand handles POST /api/v1/brands. The profile is stored pending
// and scraped in the background; 202 tells the caller to poll.
func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	var req createBrandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Guard.ValidateURL(req.SourceURL); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "source_url rejected: " + err.Error()})
		return
	}

	profile := &models.BrandProfile{
		ID:        uuid.New(),
		OwnerID:   user.ID,
		SourceURL: req.SourceURL,
		Status:    models.BrandStatusPending,
	}
	if err := h.Profiles.Create(r.Context(), profile); err != nil {
		h.Logger.Error("create brand profile", "error", err)
		http.Error(w, `{"error":"failed to create brand profile"}`, http.StatusInternalServerError)
		return
	}

	if err := h.Jobs.ScrapeBrand(r.Context(), profile.ID); err != nil {
		// The profile stays pending; a sweep or manual retry can pick it up.
		h.Logger.Warn("enqueue brand scrape", "profile_id", profile.ID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, profile)
}

// --- GET /api/v1/brands ---

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	list, err := h.Profiles.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list brand profiles", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.BrandProfile{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- GET /api/v1/brands/{id} ---

func (h *Handler) GetBrand(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid brand id"}`, http.StatusBadRequest)
		return
	}
	profile, err := h.Profiles.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"brand profile not found"}`, http.StatusNotFound)
		return
	}
	if profile.OwnerID != user.ID && user.Role != models.RoleAdmin {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// --- POST /api/v1/styles ---

type createStyleRequest struct {
	ImageURL string `json:"image_url"`
	Color    string `json:"color"`
}

// CreateStyle handles POST /api/v1/styles (admin). The dominant color comes
// in as RRGGBB and is bucketed into a family at write time.
func (h *Handler) CreateStyle(w http.ResponseWriter, r *http.Request) {
	var req createStyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		http.Error(w, `{"error":"image_url is required"}`, http.StatusBadRequest)
		return
	}
	cr, cg, cb, err := ParseHex(req.Color)
	if err != nil {
		http.Error(w, `{"error":"color must be RRGGBB"}`, http.StatusBadRequest)
		return
	}

	ref := &models.StyleReference{
		ID:          uuid.New(),
		ImageURL:    req.ImageURL,
		R:           cr,
		G:           cg,
		B:           cb,
		ColorFamily: ColorFamily(cr, cg, cb),
	}
	if err := h.Styles.Create(r.Context(), ref); err != nil {
		h.Logger.Error("create style reference", "error", err)
		http.Error(w, `{"error":"failed to create style reference"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// --- GET /api/v1/styles/match ---

// MatchStyles handles GET /api/v1/styles/match?color=RRGGBB&limit=n.
func (h *Handler) MatchStyles(w http.ResponseWriter, r *http.Request) {
	cr, cg, cb, err := ParseHex(r.URL.Query().Get("color"))
	if err != nil {
		http.Error(w, `{"error":"color must be RRGGBB"}`, http.StatusBadRequest)
		return
	}
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 50 {
			http.Error(w, `{"error":"limit must be 1-50"}`, http.StatusBadRequest)
			return
		}
	}

	refs, err := h.Styles.List(r.Context())
	if err != nil {
		h.Logger.Error("list style references", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	matches := Nearest(refs, cr, cg, cb, limit)
	if matches == nil {
		matches = []*models.StyleReference{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"color_family": ColorFamily(cr, cg, cb),
		"matches":      matches,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
