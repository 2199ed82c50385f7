// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"slices"
	"time"
)

// Choice is one option of a poll. Votes always equals len(Voters).
type Choice struct {
	Body   string   `json:"body"`
	Voters []string `json:"voters"`
	Votes  int      `json:"votes"`
}

// Poll owns its choices. Voters holds every identity that voted anywhere
// in the poll. Version is bumped on every save.
type Poll struct { //nolint:govet // fieldalignment: readability over optimization
	ID       string
	Author   string
	Issue    string
	Keywords string
	PostDate time.Time
	Choices  []Choice
	Voters   []string
	Version  int64
}

// TotalVotes is the sum of all choice tallies.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, c := range p.Choices {
		total += c.Votes
	}
	return total
}

// HasVoter reports whether voter is in the poll-level voter set.
func (p *Poll) HasVoter(voter string) bool {
	return slices.Contains(p.Voters, voter)
}

// Clone returns a deep copy so callers can mutate without sharing slices.
func (p *Poll) Clone() *Poll {
	cp := *p
	cp.Voters = slices.Clone(p.Voters)
	cp.Choices = make([]Choice, len(p.Choices))
	for i, c := range p.Choices {
		c.Voters = slices.Clone(c.Voters)
		cp.Choices[i] = c
	}
	return &cp
}
