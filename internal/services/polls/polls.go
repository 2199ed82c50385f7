// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package polls loads polls, applies the voting engine and saves them back
// under optimistic concurrency control.
package polls

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"codeberg.org/oliverandrich/votany/internal/apperr"
	"codeberg.org/oliverandrich/votany/internal/metrics"
	"codeberg.org/oliverandrich/votany/internal/models"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/sse"
	"codeberg.org/oliverandrich/votany/internal/voting"
)

const (
	// MaxSaveAttempts bounds the reload-and-retry loop of a poll mutation.
	MaxSaveAttempts = 5
	// DefaultListLimit is used when a list request names no limit.
	DefaultListLimit = 20
	// MaxListLimit caps every list request.
	MaxListLimit = 100
)

var (
	ErrPollNotFound   = apperr.NotFound("Poll not found.")
	ErrUserNotFound   = apperr.NotFound("User not found.")
	ErrAuthorNotFound = apperr.NotFound("The poll's author is not a registered user.")
	ErrAuthorPending  = apperr.Unauthorized("You may not create polls until you verify your new account.")
	ErrNotAuthor      = apperr.Forbidden("You are not the author of this poll.")
	ErrBePartial      = apperr.Forbidden("You are the author of this poll. Be partial!")
	ErrAlreadyVoted   = apperr.Conflict("You already voted on this poll!")
	ErrOutOfBounds    = apperr.Validation("Choice index is out of bounds!")
	ErrNoChoice       = apperr.Validation("Please provide a choice.")
	ErrBusy           = apperr.Conflict("The poll changed while you were voting. Try again.")
	ErrSearchPolls    = apperr.New(http.StatusInternalServerError, "Error searching the poll database. Try again later.")
	ErrSavePoll       = apperr.New(http.StatusInternalServerError, "Error updating the poll database. Try again later.")
	ErrSearchUsers    = apperr.New(http.StatusInternalServerError, "Error searching user database. Try again later.")
)

// Store is the poll store.
type Store interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	SavePoll(ctx context.Context, poll *models.Poll) error
	DeletePoll(ctx context.Context, id string) error
	ListRecentPolls(ctx context.Context, limit int) ([]models.Poll, error)
	ListPollsByAuthor(ctx context.Context, author string) ([]models.Poll, error)
	SearchPolls(ctx context.Context, query string, limit int) ([]models.Poll, error)
}

// UserLookup resolves poll authors.
type UserLookup interface {
	GetUserByScreenName(ctx context.Context, screenName string) (*models.User, error)
}

// Publisher fans out tally updates. *sse.Hub implements it.
type Publisher interface {
	Publish(topic, message string)
}

type Service struct {
	polls     Store
	users     UserLookup
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(polls Store, users UserLookup, opts ...Option) *Service {
	s := &Service{
		polls: polls,
		users: users,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChoiceView is one choice as shown to clients. Voter lists stay private.
type ChoiceView struct {
	Body  string `json:"body"`
	Index int    `json:"index"`
	Votes int    `json:"votes"`
}

// View is a poll as shown to one viewer.
type View struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string       `json:"pollId"`
	Issue      string       `json:"issue"`
	Author     string       `json:"author"`
	Keywords   string       `json:"keywords"`
	PostDate   time.Time    `json:"postDate"`
	TotalVotes int          `json:"totalVotes"`
	Choices    []ChoiceView `json:"choices"`
	VotedFor   int          `json:"votedFor"`
}

// NewView renders poll for viewer. An empty viewer never has a vote.
func NewView(poll *models.Poll, viewer string) View {
	votedFor := voting.NoVote
	if viewer != "" {
		votedFor = voting.VoterVotedFor(poll, viewer)
	}
	return View{
		ID:         poll.ID,
		Issue:      poll.Issue,
		Author:     poll.Author,
		Keywords:   poll.Keywords,
		PostDate:   poll.PostDate,
		TotalVotes: poll.TotalVotes(),
		Choices: lo.Map(poll.Choices, func(c models.Choice, i int) ChoiceView {
			return ChoiceView{Index: i, Body: c.Body, Votes: c.Votes}
		}),
		VotedFor: votedFor,
	}
}

// Tally is the live update published after every successful vote.
type Tally struct {
	ID         string `json:"pollId"`
	Votes      []int  `json:"votes"`
	TotalVotes int    `json:"totalVotes"`
}

func newTally(poll *models.Poll) Tally {
	return Tally{
		ID:         poll.ID,
		TotalVotes: poll.TotalVotes(),
		Votes: lo.Map(poll.Choices, func(c models.Choice, _ int) int {
			return c.Votes
		}),
	}
}

// CreateParams holds a submitted poll.
type CreateParams struct {
	Author   string
	Issue    string
	Keywords string
	Choices  []string
}

// Create validates and stores a new poll by a verified author and returns
// its id.
func (s *Service) Create(ctx context.Context, p CreateParams) (string, error) {
	poll := voting.NewPoll(p.Author, p.Issue, p.Keywords, p.Choices, s.now())
	if errs := voting.Validate(poll); len(errs) > 0 {
		return "", apperr.Validation("The submitted poll does not pass validation.", errs...)
	}

	author, err := s.users.GetUserByScreenName(ctx, p.Author)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAuthorNotFound
		}
		return "", ErrSearchUsers.WithCause(err)
	}
	if !author.Verified {
		return "", ErrAuthorPending
	}

	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		return "", apperr.Internal("Error saving poll. Try again later.", err)
	}

	slog.Info("poll_created", "poll_id", poll.ID, "author", poll.Author, "choices", len(poll.Choices))
	s.metrics.PollCreated()
	return poll.ID, nil
}

// Get returns the poll with votedFor filled in for viewer.
func (s *Service) Get(ctx context.Context, id, viewer string) (*View, error) {
	poll, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewView(poll, viewer)
	return &view, nil
}

// Tally returns the current vote counts of a poll.
func (s *Service) Tally(ctx context.Context, id string) (*Tally, error) {
	poll, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tally := newTally(poll)
	return &tally, nil
}

// Vote casts voter's vote for the choice at index.
func (s *Service) Vote(ctx context.Context, id, voter string, index int) (*View, error) {
	poll, result, err := s.mutate(ctx, id, func(poll *models.Poll) voting.Result {
		return voting.CastVote(poll, voter, index)
	})
	if err == nil || result != voting.OK {
		s.metrics.Vote(result.String())
	}
	if err != nil {
		return nil, err
	}

	slog.Info("vote_cast", "poll_id", id, "voter", voter, "index", index)
	view := NewView(poll, voter)
	return &view, nil
}

// AddChoice appends a choice. A non-author's new choice carries their vote.
// The returned message tells the two cases apart.
func (s *Service) AddChoice(ctx context.Context, id, voter, body string) (*View, string, error) {
	poll, result, err := s.mutate(ctx, id, func(poll *models.Poll) voting.Result {
		return voting.AddChoice(poll, voter, body)
	})
	if err == nil || result != voting.OK {
		s.metrics.ChoiceAdded(result.String())
	}
	if err != nil {
		return nil, "", err
	}

	slog.Info("choice_added", "poll_id", id, "voter", voter, "choices", len(poll.Choices))
	message := "Your choice has been added, and your vote has been cast!"
	if poll.Author == voter {
		message = "Your poll has been updated!"
	}
	view := NewView(poll, voter)
	return &view, message, nil
}

// Delete removes a poll. Only its author may do so.
func (s *Service) Delete(ctx context.Context, id, screenName string) error {
	poll, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if poll.Author != screenName {
		return ErrNotAuthor
	}

	if err := s.polls.DeletePoll(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPollNotFound
		}
		return apperr.Internal("Error removing the poll from the database. Try again later.", err)
	}

	slog.Info("poll_deleted", "poll_id", id, "author", screenName)
	s.metrics.PollDeleted()
	return nil
}

// Recent lists the newest polls.
func (s *Service) Recent(ctx context.Context, limit int, viewer string) ([]View, error) {
	polls, err := s.polls.ListRecentPolls(ctx, clampLimit(limit))
	if err != nil {
		return nil, ErrSearchPolls.WithCause(err)
	}
	return views(polls, viewer), nil
}

// Search finds polls whose issue or keywords match any word of query.
func (s *Service) Search(ctx context.Context, query string, limit int, viewer string) ([]View, error) {
	polls, err := s.polls.SearchPolls(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, ErrSearchPolls.WithCause(err)
	}
	return views(polls, viewer), nil
}

// ByAuthor lists every poll of one author.
func (s *Service) ByAuthor(ctx context.Context, author, viewer string) ([]View, error) {
	polls, err := s.polls.ListPollsByAuthor(ctx, author)
	if err != nil {
		return nil, ErrSearchPolls.WithCause(err)
	}
	return views(polls, viewer), nil
}

// Profile is a user's public page.
type Profile struct {
	ScreenName   string    `json:"screenName"`
	RegisteredAt time.Time `json:"registrationDate"`
	Following    []string  `json:"following"`
	Polls        []View    `json:"polls"`
}

// Profile returns a verified user's profile with their polls.
func (s *Service) Profile(ctx context.Context, screenName, viewer string) (*Profile, error) {
	user, err := s.users.GetUserByScreenName(ctx, screenName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, ErrSearchUsers.WithCause(err)
	}
	if !user.Verified {
		return nil, ErrUserNotFound
	}

	polls, err := s.ByAuthor(ctx, user.ScreenName, viewer)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ScreenName:   user.ScreenName,
		RegisteredAt: user.RegisteredAt,
		Following:    lo.Ternary(user.Following == nil, []string{}, user.Following),
		Polls:        polls,
	}, nil
}

// mutate runs apply on a fresh copy of the poll and saves the result. A
// version conflict reloads and reapplies, up to MaxSaveAttempts times.
// Non-OK results are returned as errors without saving.
func (s *Service) mutate(ctx context.Context, id string, apply func(*models.Poll) voting.Result) (*models.Poll, voting.Result, error) {
	for attempt := 1; attempt <= MaxSaveAttempts; attempt++ {
		poll, err := s.load(ctx, id)
		if err != nil {
			return nil, voting.OK, err
		}

		if result := apply(poll); result != voting.OK {
			return nil, result, resultError(result)
		}

		err = s.polls.SavePoll(ctx, poll)
		switch {
		case err == nil:
			s.publish(poll)
			return poll, voting.OK, nil
		case errors.Is(err, repository.ErrConflict):
			s.metrics.SaveConflict()
			slog.Debug("poll_save_conflict", "poll_id", id, "attempt", attempt)
		case errors.Is(err, repository.ErrNotFound):
			return nil, voting.OK, ErrPollNotFound
		default:
			return nil, voting.OK, ErrSavePoll.WithCause(err)
		}

		if err := ctx.Err(); err != nil {
			return nil, voting.OK, ErrBusy.WithCause(err)
		}
	}

	slog.Warn("poll_save_gave_up", "poll_id", id, "attempts", MaxSaveAttempts)
	return nil, voting.OK, ErrBusy
}

func (s *Service) load(ctx context.Context, id string) (*models.Poll, error) {
	poll, err := s.polls.GetPoll(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, ErrSearchPolls.WithCause(err)
	}
	return poll, nil
}

func (s *Service) publish(poll *models.Poll) {
	if s.publisher == nil {
		return
	}
	event, err := sse.FormatJSONEvent("tally", newTally(poll))
	if err != nil {
		slog.Error("tally_encode_failed", "poll_id", poll.ID, "error", err)
		return
	}
	s.publisher.Publish(poll.ID, event)
}

func resultError(result voting.Result) error {
	switch result {
	case voting.Author:
		return ErrBePartial
	case voting.AlreadyVoted:
		return ErrAlreadyVoted
	case voting.OutOfBounds:
		return ErrOutOfBounds
	case voting.NoChoice:
		return ErrNoChoice
	default:
		return apperr.Internal("Unexpected voting result.", errors.New(result.String()))
	}
}

func views(polls []models.Poll, viewer string) []View {
	return lo.Map(polls, func(p models.Poll, _ int) View {
		return NewView(&p, viewer)
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
