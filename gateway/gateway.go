// Package gateway serves GET /api/user/{userId}: it validates the id, reads
// the aggregate through the SWR cache and maps the cached outcome to an
// HTTP response.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Keksclan/swrgate/apierror"
	"github.com/Keksclan/swrgate/model"
	"github.com/Keksclan/swrgate/schema"
	"github.com/Keksclan/swrgate/swr"
	"github.com/Keksclan/swrgate/upstream"
)

// Fetcher loads the raw user and posts documents for an id.
type Fetcher interface {
	GetUserWithPosts(ctx context.Context, id int64) (upstream.UserPosts, error)
}

// Result is the cached outcome for one user id: either the validated
// aggregate or the validation failure details. Fetch failures are never
// cached.
type Result struct {
	Valid   bool                 `json:"valid"`
	Data    *model.UserWithPosts `json:"data,omitempty"`
	Details apierror.Details     `json:"details,omitempty"`
}

// Handler serves the user endpoint.
type Handler struct {
	cache    *swr.Cache[Result]
	users    Fetcher
	schema   *schema.Validator
	validate *validator.Validate
}

// NewHandler creates a Handler reading through c.
func NewHandler(c *swr.Cache[Result], users Fetcher, v *schema.Validator) *Handler {
	return &Handler{cache: c, users: users, schema: v, validate: newValidator()}
}

// CacheKey returns the cache key for a user id.
func CacheKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// Routes returns the router to mount under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(apierror.NotFound)
	r.MethodNotAllowed(apierror.NotFound)
	r.Get("/user/{userId}", h.getUser)
	r.Get("/user/", h.getUser)
	r.Get("/user", h.getUser)
	return r
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.parseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		apierror.Write(w, err)
		return
	}

	res, err := h.cache.Get(r.Context(), CacheKey(id), func(ctx context.Context) (Result, error) {
		return h.load(ctx, id)
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", id).Msg("fetch user with posts failed")
		apierror.Write(w, apierror.Wrap(apierror.CodeInternal, err, "Failed to fetch user data"))
		return
	}
	if !res.Valid {
		apierror.Write(w, apierror.New(apierror.CodeUpstreamInvalidResponse, "Failed to validate user data").
			WithDetails(res.Details))
		return
	}
	apierror.WriteJSON(w, http.StatusOK, res.Data)
}

// load fetches both documents and validates the combined aggregate.
func (h *Handler) load(ctx context.Context, id int64) (Result, error) {
	raw, err := h.users.GetUserWithPosts(ctx, id)
	if err != nil {
		return Result{}, err
	}

	doc, err := json.Marshal(struct {
		User  json.RawMessage `json:"user"`
		Posts json.RawMessage `json:"posts"`
	}{raw.User, raw.Posts})
	if err != nil {
		return Result{}, fmt.Errorf("gateway: combine documents: %w", err)
	}

	verdict, err := h.schema.Validate(doc)
	if err != nil {
		return Result{}, err
	}
	if !verdict.Valid {
		return Result{Valid: false, Details: verdict.Details}, nil
	}

	var data model.UserWithPosts
	if err := json.Unmarshal(doc, &data); err != nil {
		return Result{}, fmt.Errorf("gateway: decode aggregate: %w", err)
	}
	return Result{Valid: true, Data: &data}, nil
}
