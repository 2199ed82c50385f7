// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package voting holds the state transitions of a poll. The functions do no
// I/O; callers load a poll, apply one transition and persist it only when
// the result is OK.
package voting

import (
	"slices"
	"strings"
	"time"

	"codeberg.org/oliverandrich/votany/internal/models"
)

// NoVote is returned by VoterVotedFor when the voter has not picked a choice.
const NoVote = -1

// MinChoices is the number of choices every poll must carry.
const MinChoices = 2

// Result is the outcome of a poll transition.
type Result int

const (
	OK Result = iota
	Author
	AlreadyVoted
	OutOfBounds
	NoChoice
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Author:
		return "AUTHOR"
	case AlreadyVoted:
		return "ALREADY_VOTED"
	case OutOfBounds:
		return "OUT_OF_BOUNDS"
	case NoChoice:
		return "NO_CHOICE"
	default:
		return "UNKNOWN"
	}
}

// VoterVotedFor returns the index of the choice voter picked, or NoVote.
func VoterVotedFor(poll *models.Poll, voter string) int {
	for i, c := range poll.Choices {
		if slices.Contains(c.Voters, voter) {
			return i
		}
	}
	return NoVote
}

// CastVote records one vote of voter for the choice at index.
// The poll is left untouched unless the result is OK.
func CastVote(poll *models.Poll, voter string, index int) Result {
	if voter == poll.Author {
		return Author
	}
	if poll.HasVoter(voter) {
		return AlreadyVoted
	}
	if index < 0 || index >= len(poll.Choices) {
		return OutOfBounds
	}

	choice := &poll.Choices[index]
	choice.Votes++
	choice.Voters = append(choice.Voters, voter)
	poll.Voters = append(poll.Voters, voter)

	return OK
}

// AddChoice appends a new choice. The author may add choices without
// voting; anyone else spends their vote on the choice they add.
func AddChoice(poll *models.Poll, voter, body string) Result {
	isAuthor := voter == poll.Author
	if !isAuthor && poll.HasVoter(voter) {
		return AlreadyVoted
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return NoChoice
	}

	if isAuthor {
		poll.Choices = append(poll.Choices, models.Choice{Body: body, Voters: []string{}})
		return OK
	}

	poll.Choices = append(poll.Choices, models.Choice{Body: body, Votes: 1, Voters: []string{voter}})
	poll.Voters = append(poll.Voters, voter)

	return OK
}

// NewPoll builds an unsaved poll. Blank choices are dropped and the rest trimmed.
func NewPoll(author, issue, keywords string, choices []string, now time.Time) *models.Poll {
	poll := &models.Poll{
		Author:   author,
		Issue:    strings.TrimSpace(issue),
		Keywords: strings.Join(strings.Fields(keywords), " "),
		PostDate: now.UTC(),
		Choices:  make([]models.Choice, 0, len(choices)),
		Voters:   []string{},
	}
	for _, body := range choices {
		if body = strings.TrimSpace(body); body != "" {
			poll.Choices = append(poll.Choices, models.Choice{Body: body, Voters: []string{}})
		}
	}
	return poll
}

// Validate returns every reason the poll may not be posted.
func Validate(poll *models.Poll) []string {
	var errs []string
	if poll.Issue == "" {
		errs = append(errs, "Please enter an issue to vote on!")
	}
	if len(poll.Choices) < MinChoices {
		errs = append(errs, "Polls must have at least two choices.")
	}
	return errs
}
