package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/david/proposaland/internal/auth"
	"github.com/david/proposaland/internal/db"
	"github.com/david/proposaland/internal/ingest"
	"github.com/david/proposaland/internal/keywords"
	"github.com/david/proposaland/internal/models"
	"github.com/david/proposaland/internal/refs"
	"github.com/david/proposaland/internal/scoring"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxBatch = 5000

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type patternView struct {
	Family      refs.Family    `json:"family"`
	Description string         `json:"description"`
	Regex       string         `json:"regex"`
	Confidence  float64        `json:"base_confidence"`
	Normalize   refs.Normalize `json:"normalize,omitempty"`
}

func (s *Server) handlePatterns(c echo.Context) error {
	lib := s.Engine.Extractor().Library()
	views := []patternView{}
	for _, p := range lib.All() {
		views = append(views, patternView{
			Family:      p.Family(),
			Description: p.Description(),
			Regex:       p.Expr(),
			Confidence:  p.BaseConfidence(),
			Normalize:   p.Normalize(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"version":  lib.Version(),
		"patterns": views,
	})
}

type referencesRequest struct {
	Text          string   `json:"text"`
	Context       string   `json:"context"`
	MinConfidence *float64 `json:"min_confidence"`
}

func (s *Server) handleReferences(c echo.Context) error {
	var req referencesRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, http.StatusBadRequest, "text is required")
	}
	minConf := s.Engine.Config().ReferencePatterns.MinConfidence
	if req.MinConfidence != nil {
		minConf = *req.MinConfidence
	}
	if minConf < 0 || minConf > 1 {
		return errorJSON(c, http.StatusBadRequest, "min_confidence must be within [0, 1]")
	}

	text := ingest.HTMLToText(req.Text)
	res := s.Engine.Extractor().Analyze(text, req.Context)
	cands := []refs.Candidate{}
	for _, cand := range res.Candidates {
		if cand.Confidence >= minConf {
			cands = append(cands, cand)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"detected_family": res.Detected,
		"candidates":      cands,
		"skipped":         len(res.Skipped),
		"summary":         refs.FormatSummary(cands),
	})
}

type keywordsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleKeywords(c echo.Context) error {
	var req keywordsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	title := ingest.HTMLToText(req.Title)
	desc := ingest.HTMLToText(req.Description)
	if strings.TrimSpace(title+desc) == "" {
		return errorJSON(c, http.StatusBadRequest, "title or description is required")
	}

	kw := s.Engine.Keywords()
	text := title + " " + desc
	density := kw.Density(text)
	if density == nil {
		density = map[string]float64{}
	}
	assessment := kw.Assess(title, desc)
	snippets := make(map[string][]string, len(assessment.Keywords))
	for _, k := range assessment.Keywords {
		if found := keywords.Context(text, k, keywords.DefaultContextWidth); len(found) > 0 {
			snippets[k] = found
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"assessment": assessment,
		"density":    density,
		"context":    snippets,
	})
}

type classifyRequest struct {
	Opportunities []ingest.RawOpportunity `json:"opportunities"`
	Top           *int                    `json:"top"`
}

type classifyResponse struct {
	Ranked    []models.ScoredOpportunity `json:"ranked"`
	Outcomes  []scoring.Outcome          `json:"outcomes"`
	Summary   scoring.Summary            `json:"summary"`
	Persisted int                        `json:"persisted"`
}

func (s *Server) handleClassify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Opportunities) == 0 {
		return errorJSON(c, http.StatusBadRequest, "opportunities must not be empty")
	}
	if len(req.Opportunities) > maxBatch {
		return errorJSON(c, http.StatusRequestEntityTooLarge, "too many opportunities in one batch")
	}
	persist, _ := strconv.ParseBool(c.QueryParam("persist"))
	if persist && s.Store == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "persistence is not configured")
	}

	top := s.Engine.Config().Output.TopOpportunities
	if req.Top != nil {
		top = *req.Top
	}

	batch := s.Engine.EvaluateBatch(req.Opportunities)
	resp := classifyResponse{
		Ranked:   batch.Ranked,
		Outcomes: batch.Outcomes,
		Summary:  scoring.Summarize(batch, top),
	}
	if resp.Ranked == nil {
		resp.Ranked = []models.ScoredOpportunity{}
	}

	if persist && len(batch.Ranked) > 0 {
		if err := s.Store.SaveScored(c.Request().Context(), batch.Ranked); err != nil {
			s.logger.Error("persist scored batch", zap.Int("records", len(batch.Ranked)), zap.Error(err))
			return errorJSON(c, http.StatusInternalServerError, "Failed to persist results")
		}
		resp.Persisted = len(batch.Ranked)
	}

	sub, _ := auth.SubjectFromContext(c)
	s.logger.Info("batch classified",
		zap.String("subject", sub),
		zap.Int("records", resp.Summary.Total),
		zap.Int("kept", resp.Summary.Kept),
		zap.Bool("persisted", resp.Persisted > 0))
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	if s.Store == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "persistence is not configured")
	}

	limit, offset := 20, 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}
	var minScore float64
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil && v > 0 && v <= 1 {
		minScore = v
	}
	var deadlineDays int
	if v, err := strconv.Atoi(c.QueryParam("deadline_days")); err == nil && v > 0 {
		deadlineDays = v
	}
	var tiers []models.Priority
	for _, raw := range splitCSV(c.QueryParam("priority")) {
		p, ok := models.ParsePriority(raw)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "unknown priority "+strconv.Quote(raw))
		}
		tiers = append(tiers, p)
	}

	result, err := s.Store.ListScored(c.Request().Context(), db.ListParams{
		Query:        c.QueryParam("q"),
		Priority:     tiers,
		Organization: c.QueryParam("organization"),
		MinScore:     minScore,
		DeadlineDays: deadlineDays,
		SortBy:       c.QueryParam("sort"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.logger.Error("list opportunities", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	if s.Store == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "persistence is not configured")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid id")
	}
	opp, err := s.Store.GetScored(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		s.logger.Error("get opportunity", zap.Stringer("id", id), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleGetStats(c echo.Context) error {
	if s.Store == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "persistence is not configured")
	}
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		s.logger.Error("get stats", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, stats)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
