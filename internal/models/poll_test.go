// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"

	"codeberg.org/oliverandrich/votany/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPoll_TotalVotes(t *testing.T) {
	poll := &models.Poll{Choices: []models.Choice{
		{Body: "A", Votes: 2, Voters: []string{"bob", "carol"}},
		{Body: "B", Votes: 1, Voters: []string{"dave"}},
		{Body: "C"},
	}}

	assert.Equal(t, 3, poll.TotalVotes())
	assert.Zero(t, (&models.Poll{}).TotalVotes())
}

func TestPoll_HasVoter(t *testing.T) {
	poll := &models.Poll{Voters: []string{"bob", "10.0.0.1"}}

	assert.True(t, poll.HasVoter("bob"))
	assert.True(t, poll.HasVoter("10.0.0.1"))
	assert.False(t, poll.HasVoter("alice"))
}

func TestPoll_Clone(t *testing.T) {
	poll := &models.Poll{
		ID:      "p1",
		Choices: []models.Choice{{Body: "A", Votes: 1, Voters: []string{"bob"}}},
		Voters:  []string{"bob"},
	}

	cp := poll.Clone()
	cp.Voters[0] = "eve"
	cp.Choices[0].Voters[0] = "eve"
	cp.Choices[0].Votes = 7

	assert.Equal(t, "bob", poll.Voters[0])
	assert.Equal(t, "bob", poll.Choices[0].Voters[0])
	assert.Equal(t, 1, poll.Choices[0].Votes)
	assert.Equal(t, "p1", cp.ID)
}
