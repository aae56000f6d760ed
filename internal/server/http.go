package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/engine"
	"github.com/victornm/etrivia/internal/errors"
	"github.com/victornm/etrivia/internal/leaderboard"
)

// Handlers translate HTTP requests from chat workers into engine actions.
// Enqueueing is acknowledged with 202; game outcomes are delivered over
// pub/sub, not in the response.

type startGameRequest struct {
	ActionID     string   `json:"action_id"`
	Channel      string   `json:"channel"`
	UserID       string   `json:"user_id"`
	RequireType  string   `json:"require_type"`
	ExcludeTypes []string `json:"exclude_types"`
	ExcludeLocal bool     `json:"exclude_local"`
}

func (r startGameRequest) options(channelID string) domain.FetchOptions {
	opts := domain.FetchOptions{
		Channel:      r.Channel,
		ChannelID:    channelID,
		RequireType:  domain.QuestionType(r.RequireType),
		ExcludeLocal: r.ExcludeLocal,
	}
	for _, t := range r.ExcludeTypes {
		opts.ExcludeTypes = append(opts.ExcludeTypes, domain.QuestionType(t))
	}
	return opts
}

func (s *Server) startNormalGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, engine.StartNormalGame{
		ActionID: req.ActionID,
		UserID:   req.UserID,
		Options:  req.options(c.Param("channelID")),
	})
}

func (s *Server) startSuperGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, engine.StartSuperGame{
		ActionID: req.ActionID,
		Options:  req.options(c.Param("channelID")),
	})
}

func (s *Server) checkAnswer(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
		Answer string `json:"answer"`
		Super  bool   `json:"super"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channelID := c.Param("channelID")
	if req.Super {
		s.submit(c, engine.CheckSuperAnswer{
			ChannelID: channelID,
			UserID:    req.UserID,
			Answer:    req.Answer,
		})
		return
	}

	s.submit(c, engine.CheckAnswer{
		ChannelID: channelID,
		UserID:    req.UserID,
		Answer:    req.Answer,
	})
}

func (s *Server) clearSuperQueue(c *gin.Context) {
	s.submit(c, engine.ClearSuperQueue{ChannelID: c.Param("channelID")})
}

func (s *Server) submit(c *gin.Context, a engine.Action) {
	if err := s.service.engine.Submit(a); err != nil {
		e := errors.Convert(err)
		c.JSON(e.HTTPStatusCode(), e)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) getLeaderboard(c *gin.Context) {
	l, err := s.service.leaderboard.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		ChannelID: c.Param("channelID"),
	})
	if err != nil {
		e := errors.Convert(err)
		c.JSON(e.HTTPStatusCode(), e)
		return
	}
	c.JSON(http.StatusOK, l)
}

// listSessions is a read-only operator view of live games.
func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.service.store.GetAll()})
}

type banRequest struct {
	QuestionID string `json:"question_id"`
	Source     string `json:"source"`
	UserID     string `json:"user_id"`
}

func (s *Server) banQuestion(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.service.banned.Ban(c.Request.Context(), req.QuestionID, domain.Source(req.Source), req.UserID); err != nil {
		e := errors.Convert(err)
		c.JSON(e.HTTPStatusCode(), e)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unbanQuestion(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.service.banned.Unban(c.Request.Context(), req.QuestionID, domain.Source(req.Source)); err != nil {
		e := errors.Convert(err)
		c.JSON(e.HTTPStatusCode(), e)
		return
	}
	c.Status(http.StatusNoContent)
}
