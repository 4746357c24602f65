// Package directory answers identity questions for the aid services: who is an
// active field agent for a disaster, who is a platform admin, and which ledger
// account receives an actor's aid. It also keeps per-agent activity counters.
package directory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

// Agent is a field agent's directory entry. An empty Disasters list means the
// agent may act in any disaster.
type Agent struct {
	ID                 id.ActorID      `json:"id"`
	Active             bool            `json:"active"`
	Disasters          []id.DisasterID `json:"disasters,omitempty"`
	RegistrationsCount uint32          `json:"registrations_count"`
	VerificationsCount uint32          `json:"verifications_count"`
	FlagsCount         uint32          `json:"flags_count"`
	LastActivityAt     *time.Time      `json:"last_activity_at,omitempty"`
}

func (a *Agent) coversDisaster(disaster id.DisasterID) bool {
	return len(a.Disasters) == 0 || slices.Contains(a.Disasters, disaster)
}

// InMemory is the directory used by the service. Counter updates register undo
// closures so they roll back with the surrounding transaction.
type InMemory struct {
	mu       sync.RWMutex
	agents   map[id.ActorID]*Agent
	admins   map[id.ActorID]bool
	accounts map[id.ActorID]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		agents:   make(map[id.ActorID]*Agent),
		admins:   make(map[id.ActorID]bool),
		accounts: make(map[id.ActorID]string),
	}
}

// AddFieldAgent registers or replaces an active agent.
func (d *InMemory) AddFieldAgent(agentID id.ActorID, disasters ...id.DisasterID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[agentID] = &Agent{ID: agentID, Active: true, Disasters: slices.Clone(disasters)}
}

// Deactivate marks an agent inactive. Their past approvals stand.
func (d *InMemory) Deactivate(agentID id.ActorID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[agentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.Active = false
	return nil
}

func (d *InMemory) AddAdmin(adminID id.ActorID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admins[adminID] = true
}

// SetAccount overrides the ledger account for an actor.
func (d *InMemory) SetAccount(actor id.ActorID, account string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[actor] = account
}

func (d *InMemory) IsActiveFieldAgent(_ context.Context, actor id.ActorID, disaster id.DisasterID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[actor]
	return ok && a.Active && a.coversDisaster(disaster), nil
}

func (d *InMemory) IsAdmin(_ context.Context, actor id.ActorID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[actor], nil
}

// AccountFor returns the actor's ledger account, defaulting to "acct:<actor>".
func (d *InMemory) AccountFor(_ context.Context, actor id.ActorID) (string, error) {
	if actor.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if acct, ok := d.accounts[actor]; ok {
		return acct, nil
	}
	return "acct:" + actor.String(), nil
}

func (d *InMemory) RecordRegistration(ctx context.Context, actor id.ActorID) error {
	return d.bump(ctx, actor, func(a *Agent) *uint32 { return &a.RegistrationsCount })
}

func (d *InMemory) RecordVerification(ctx context.Context, actor id.ActorID) error {
	return d.bump(ctx, actor, func(a *Agent) *uint32 { return &a.VerificationsCount })
}

func (d *InMemory) RecordFlag(ctx context.Context, actor id.ActorID) error {
	return d.bump(ctx, actor, func(a *Agent) *uint32 { return &a.FlagsCount })
}

func (d *InMemory) bump(ctx context.Context, actor id.ActorID, counter func(*Agent) *uint32) error {
	now := requestcontext.Now(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[actor]
	if !ok {
		return sentinel.ErrNotFound
	}
	c := counter(a)
	if *c == ^uint32(0) {
		return dErrors.New(dErrors.CodeArithmeticOverflow, "agent counter overflow")
	}
	prevActivity := a.LastActivityAt
	*c++
	a.LastActivityAt = &now

	tx.OnRollback(ctx, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		*counter(a)--
		a.LastActivityAt = prevActivity
	})
	return nil
}

// Agent returns a copy of an agent entry.
func (d *InMemory) Agent(_ context.Context, actor id.ActorID) (*Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[actor]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	cp.Disasters = slices.Clone(a.Disasters)
	return &cp, nil
}

// Seed loads agents and admins from config entries. Agent entries are
// "<uuid>" or "<uuid>@<disaster>[@<disaster>...]".
func (d *InMemory) Seed(agents, admins []string) error {
	for _, entry := range agents {
		parts := strings.Split(entry, "@")
		agentID, err := id.ParseActorID(parts[0])
		if err != nil {
			return err
		}
		var disasters []id.DisasterID
		for _, raw := range parts[1:] {
			disaster, err := id.ParseDisasterID(raw)
			if err != nil {
				return err
			}
			disasters = append(disasters, disaster)
		}
		d.AddFieldAgent(agentID, disasters...)
	}
	for _, entry := range admins {
		adminID, err := id.ParseActorID(entry)
		if err != nil {
			return err
		}
		d.AddAdmin(adminID)
	}
	return nil
}
