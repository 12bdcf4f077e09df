package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/filter"
	"github.com/knoguchi/dinerag/internal/service"
)

const (
	maxBodyBytes = 64 << 10

	msgPlaceOrCuisine = "Please provide at least a 'place' or 'cuisine' to get a recommendation."
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// flexString accepts a JSON string, number or null. Form-driven clients send
// numeric fields either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("must be a string or a number")
	}
	*f = flexString(n.String())
	return nil
}

type recommendRequest struct {
	Place      string              `json:"place" validate:"max=200"`
	Cuisines   catalog.CuisineList `json:"cuisines" validate:"max=20,dive,max=100"`
	PriceRange string              `json:"price_range" validate:"omitempty,oneof=500 1500 99999"`
	MinRating  flexString          `json:"min_rating" validate:"max=10"`
	PriceMin   flexString          `json:"price_min" validate:"max=12"`
	PriceMax   flexString          `json:"price_max" validate:"max=12"`
	TopK       int                 `json:"top_k" validate:"gte=0"`
	Query      string              `json:"query" validate:"max=500"`
}

type recommendResponse struct {
	Success        bool             `json:"success"`
	RequestID      string           `json:"request_id"`
	Recommendation string           `json:"recommendation"`
	Fallback       bool             `json:"fallback"`
	Results        []service.Result `json:"results"`
	Context        string           `json:"context"`
	ContextUsed    []string         `json:"context_used"`
}

type filtersResponse struct {
	Success  bool     `json:"success"`
	Places   []string `json:"places"`
	Cuisines []string `json:"cuisines"`
	Prices   []int    `json:"prices"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type handlers struct {
	rec         Recommender
	logger      *slog.Logger
	defaultTopK int
	maxTopK     int
}

func (h *handlers) filters(w http.ResponseWriter, r *http.Request) {
	opts := h.rec.FilterOptions()
	writeJSON(w, http.StatusOK, filtersResponse{
		Success:  true,
		Places:   opts.Localities,
		Cuisines: opts.Cuisines,
		Prices:   opts.PricePoints,
	})
}

func (h *handlers) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if err := getValidator().Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	cuisines := catalog.NormalizeCuisines(req.Cuisines)
	place := strings.TrimSpace(req.Place)
	if place == "" && len(cuisines) == 0 {
		writeError(w, http.StatusBadRequest, msgPlaceOrCuisine)
		return
	}

	filters, err := filter.Parse(filter.Raw{
		Locality:  place,
		PriceBand: req.PriceRange,
		PriceMin:  string(req.PriceMin),
		PriceMax:  string(req.PriceMax),
		MinRating: string(req.MinRating),
		Cuisines:  cuisines,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}
	topK = min(topK, h.maxTopK)

	resp, err := h.rec.Recommend(r.Context(), service.Query{
		FreeText: req.Query,
		Filters:  filters,
		TopK:     topK,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	rec := h.rec.Generate(r.Context(), service.Preferences{
		Place:     place,
		Cuisines:  cuisines,
		PriceBand: req.PriceRange,
		MinRating: string(req.MinRating),
	}, resp)

	used := make([]string, len(resp.Results))
	for i, res := range resp.Results {
		used[i] = res.Name
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		Success:        true,
		RequestID:      resp.RequestID,
		Recommendation: rec.Text,
		Fallback:       rec.Fallback,
		Results:        resp.Results,
		Context:        resp.Context.Text,
		ContextUsed:    used,
	})
}

// writeEngineError maps the error taxonomy onto HTTP status codes.
func (h *handlers) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("recommend failed",
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		if status == http.StatusInternalServerError {
			msg = "Internal Server Error"
		}
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Retryable: apperr.IsRetryable(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrEmbeddingProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of: "+fe.Param())
		case "max":
			msgs = append(msgs, fe.Field()+" is too long (max "+fe.Param()+")")
		case "gte":
			msgs = append(msgs, fe.Field()+" must be >= "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
