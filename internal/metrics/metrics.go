// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus collectors for votes, account events
// and background cleanup. A nil *Metrics records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "votany"

type Metrics struct {
	registry      *prometheus.Registry
	pollsCreated  prometheus.Counter
	pollsDeleted  prometheus.Counter
	votes         *prometheus.CounterVec
	choicesAdded  *prometheus.CounterVec
	saveConflicts prometheus.Counter
	accounts      *prometheus.CounterVec
	emails        *prometheus.CounterVec
	reaped        *prometheus.CounterVec
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		pollsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_created_total",
			Help: "Number of polls posted.",
		}),
		pollsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_deleted_total",
			Help: "Number of polls removed by their author.",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "votes_total",
			Help: "Vote attempts by result.",
		}, []string{"result"}),
		choicesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "choices_added_total",
			Help: "Add-choice attempts by result.",
		}, []string{"result"}),
		saveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_save_conflicts_total",
			Help: "Poll saves retried because another request changed the poll first.",
		}),
		accounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "account_events_total",
			Help: "Account lifecycle events.",
		}, []string{"event"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "emails_total",
			Help: "Emails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reaped_records_total",
			Help: "Expired records removed by the reaper.",
		}, []string{"table"}),
	}

	reg.MustRegister(m.pollsCreated, m.pollsDeleted, m.votes, m.choicesAdded,
		m.saveConflicts, m.accounts, m.emails, m.reaped)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) PollCreated() {
	if m != nil {
		m.pollsCreated.Inc()
	}
}

func (m *Metrics) PollDeleted() {
	if m != nil {
		m.pollsDeleted.Inc()
	}
}

func (m *Metrics) Vote(result string) {
	if m != nil {
		m.votes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ChoiceAdded(result string) {
	if m != nil {
		m.choicesAdded.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SaveConflict() {
	if m != nil {
		m.saveConflicts.Inc()
	}
}

// AccountEvent counts events such as "registered", "verified" or "password_changed".
func (m *Metrics) AccountEvent(event string) {
	if m != nil {
		m.accounts.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Email(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.emails.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Reaped(table string, n int64) {
	if m != nil && n > 0 {
		m.reaped.WithLabelValues(table).Add(float64(n))
	}
}
