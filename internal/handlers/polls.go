// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/votany/internal/middleware"
	"codeberg.org/oliverandrich/votany/internal/services/polls"
)

// CreatePollRequest is the body of POST /api/poll/create.
type CreatePollRequest struct {
	Issue    string   `json:"issue"`
	Keywords string   `json:"keywords"`
	Choices  []string `json:"choices"`
}

// VoteRequest is the body of PUT /api/poll/vote/:pollId.
type VoteRequest struct {
	Index *int `json:"index"`
}

// AddChoiceRequest is the body of PUT /api/poll/addchoice/:pollId.
type AddChoiceRequest struct {
	Choice string `json:"choice"`
}

type CreatePollResponse struct {
	Message string `json:"message"`
	PollID  string `json:"pollId"`
}

type PollResponse struct {
	Message string      `json:"message,omitempty"`
	Poll    *polls.View `json:"poll"`
}

type PollListResponse struct {
	Polls []polls.View `json:"polls"`
}

// CreatePoll needs RequireAuth.
func (h *Handlers) CreatePoll(c echo.Context) error {
	var req CreatePollRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	id, err := h.polls.Create(c.Request().Context(), polls.CreateParams{
		Author:   middleware.ScreenName(c),
		Issue:    req.Issue,
		Keywords: req.Keywords,
		Choices:  req.Choices,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CreatePollResponse{
		Message: "Your poll has been posted!",
		PollID:  id,
	})
}

func (h *Handlers) GetPoll(c echo.Context) error {
	view, err := h.polls.Get(c.Request().Context(), c.Param("pollId"), middleware.VoterIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PollResponse{Poll: view})
}

// RecentPolls lists the newest polls; ?limit= caps the count.
func (h *Handlers) RecentPolls(c echo.Context) error {
	list, err := h.polls.Recent(c.Request().Context(), queryInt(c, "limit"), middleware.VoterIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PollListResponse{Polls: list})
}

// SearchPolls runs ?q= against issues and keywords.
func (h *Handlers) SearchPolls(c echo.Context) error {
	list, err := h.polls.Search(c.Request().Context(), c.QueryParam("q"), queryInt(c, "limit"), middleware.VoterIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PollListResponse{Polls: list})
}

// Vote accepts anonymous voters, who are identified by address.
func (h *Handlers) Vote(c echo.Context) error {
	var req VoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Index == nil {
		return polls.ErrOutOfBounds
	}

	view, err := h.polls.Vote(c.Request().Context(), c.Param("pollId"), middleware.VoterIdentity(c), *req.Index)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PollResponse{Message: "Your vote has been cast!", Poll: view})
}

// AddChoice needs RequireAuth.
func (h *Handlers) AddChoice(c echo.Context) error {
	var req AddChoiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	view, message, err := h.polls.AddChoice(c.Request().Context(), c.Param("pollId"), middleware.ScreenName(c), req.Choice)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PollResponse{Message: message, Poll: view})
}

// DeletePoll needs RequireAuth.
func (h *Handlers) DeletePoll(c echo.Context) error {
	if err := h.polls.Delete(c.Request().Context(), c.Param("pollId"), middleware.ScreenName(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Your poll has been deleted."})
}

func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
