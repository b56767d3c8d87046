package httpserver

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	result, err := s.taskService.AssignOrRotateTask(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	result, err := s.taskService.ClaimTask(r.Context(), domain.ClaimRequest{
		UserID:    r.PathValue("userID"),
		AccountID: r.PathValue("accountID"),
		ArticleID: r.PathValue("articleID"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type completionBody struct {
	ArticleID     string          `json:"articleId"`
	Title         string          `json:"title"`
	TrackCategory int             `json:"trackCategory"`
	CallbackURL   string          `json:"callbackUrl"`
	Views         int64           `json:"views"`
	Likes         int64           `json:"likes"`
	Earnings      decimal.Decimal `json:"earnings"`
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var body completionBody
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.taskService.ReportCompletion(r.Context(), domain.CompletionRequest{
		UserID:        r.PathValue("userID"),
		AccountID:     r.PathValue("accountID"),
		ArticleID:     body.ArticleID,
		Title:         body.Title,
		TrackCategory: body.TrackCategory,
		CallbackURL:   body.CallbackURL,
		Metrics: domain.Metrics{
			Views:    body.Views,
			Likes:    body.Likes,
			Earnings: body.Earnings,
		},
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAssignAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.taskService.AssignAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListExpired(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ExpiredFilter{
		UserID:    q.Get("userId"),
		AccountID: q.Get("accountId"),
	}

	if v := q.Get("trackCategory"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "trackCategory must be a positive integer")
			return
		}
		filter.TrackCategory = n
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	report, err := s.taskService.ListExpiredClaimedTasks(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type sweepBody struct {
	Items []domain.SweepItem `json:"items"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var body sweepBody
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.taskService.SweepExpiredTasks(r.Context(), body.Items)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
