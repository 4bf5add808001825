package reconcile

import (
	"strings"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/planner"
)

// Session is one round of plan proposal. Token identifies the round so a
// late response for an older round can be recognised and dropped.
type Session struct {
	Token    uint64
	Input    planner.RequestInput
	Request  planner.Request
	Raw      string
	Proposal []model.PlannedTask
}

// Originals returns the tasks the session asked to be planned.
func (s *Session) Originals() []model.Task {
	return append([]model.Task(nil), s.Input.Tasks...)
}

// Begin builds the request for in and opens a session for it.
func (r *Reconciler) Begin(in planner.RequestInput) (*Session, error) {
	req, err := planner.Build(in)
	if err != nil {
		return nil, err
	}
	return &Session{Token: r.tokens.Add(1), Input: in, Request: req}, nil
}

// Regenerate drops the current proposal, appends note to the accumulated
// notes and rebuilds the request for the same tasks. The stores are not
// touched.
func (r *Reconciler) Regenerate(prev *Session, note string) (*Session, error) {
	in := prev.Input
	in.Notes = append([]string(nil), prev.Input.Notes...)
	if note = strings.TrimSpace(note); note != "" {
		in.Notes = append(in.Notes, note)
	}
	next, err := r.Begin(in)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("plan regenerated", "previous_token", prev.Token, "token", next.Token, "notes", len(in.Notes))
	return next, nil
}

// Propose parses raw for the session's day and records the proposal.
func (s *Session) Propose(raw string) ([]model.PlannedTask, error) {
	s.Raw = raw
	entries, err := planner.Parse(raw, s.Request.Day)
	if err != nil {
		s.Proposal = nil
		return nil, err
	}
	s.Proposal = entries
	return entries, nil
}
