package activity

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/events"
)

// EventSink receives activity lifecycle events. *events.Publisher is the
// production implementation.
type EventSink interface {
	Publish(ctx context.Context, event events.Event)
}

// Registry owns the set of live-activity sessions. All access to the
// identifier→session mapping goes through the registry's lock, so registration,
// termination, and lookup are atomic with respect to each other.
type Registry struct {
	orchestrator *Orchestrator
	events       EventSink
	logger       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// RegistryConfig holds the collaborators for a Registry.
type RegistryConfig struct {
	Orchestrator *Orchestrator

	// Events receives lifecycle events (optional, may be nil).
	Events EventSink

	Logger zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		orchestrator: cfg.Orchestrator,
		events:       cfg.Events,
		logger:       cfg.Logger,
		sessions:     make(map[string]*Session),
	}
}

// Register starts a live-activity session. An existing session with the same
// identifier is terminated first, so re-registration replaces rather than
// duplicates. The new session is primed with one immediate synchronous refresh
// before its recurring timer starts, so the device sees content promptly.
func (r *Registry) Register(ctx context.Context, registration Registration) (*Session, error) {
	if err := registration.Validate(); err != nil {
		return nil, err
	}

	r.Terminate(ctx, registration.Identifier)

	r.logger.Info().
		Str("identifier", registration.Identifier).
		Str("push_token_suffix", registration.TokenSuffix()).
		Str("data_source", string(registration.DataSource)).
		Msg("scheduling timer for live activity")

	session := NewSession(registration)
	session.scheduler = NewScheduler(SlowChargeInterval, func(tickCtx context.Context) {
		r.runTick(tickCtx, session)
	})

	r.mu.Lock()
	r.sessions[registration.Identifier] = session
	r.mu.Unlock()

	r.publish(ctx, events.Event{
		Type:       events.TypeRegistered,
		Identifier: registration.Identifier,
		DataSource: string(registration.DataSource),
	})

	// Prime the activity. The session may terminate itself right here (hard
	// failure, or a charge that already finished); only survivors get a timer.
	r.runTick(ctx, session)

	if r.Lookup(registration.Identifier) == session {
		session.scheduler.Start()
	}

	return session, nil
}

// Terminate cancels a session's scheduler and removes it. Unknown identifiers
// are a logged no-op. Safe to call from within the session's own tick.
func (r *Registry) Terminate(ctx context.Context, identifier string) {
	r.mu.Lock()
	session, ok := r.sessions[identifier]
	if ok {
		delete(r.sessions, identifier)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug().Str("identifier", identifier).Msg("no activity found")
		return
	}

	r.stopAndPublish(ctx, identifier, session, "")
}

// terminateSession removes a session only while the identifier still maps to
// this exact session. A stale tick from a replaced session must not tear down
// the replacement that now owns the identifier.
func (r *Registry) terminateSession(ctx context.Context, identifier string, session *Session, reason string) {
	r.mu.Lock()
	current, ok := r.sessions[identifier]
	if !ok || current != session {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, identifier)
	r.mu.Unlock()

	r.stopAndPublish(ctx, identifier, session, reason)
}

// stopAndPublish runs after the session has been removed from the map.
// Stopping outside the lock cannot deadlock a tick that terminates its own
// session, and the scheduler never fires for an unregistered identifier.
func (r *Registry) stopAndPublish(ctx context.Context, identifier string, session *Session, reason string) {
	session.scheduler.Stop()

	r.publish(ctx, events.Event{
		Type:       events.TypeTerminated,
		Identifier: identifier,
		DataSource: string(session.Registration.DataSource),
		Reason:     reason,
	})
}

func (r *Registry) publish(ctx context.Context, event events.Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(ctx, event)
}

// Lookup returns the session for an identifier, or nil.
func (r *Registry) Lookup(identifier string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[identifier]
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown terminates every session, stopping all timers. Called when the
// process drains; clients re-register on reconnect.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	identifiers := make([]string, 0, len(r.sessions))
	for identifier := range r.sessions {
		identifiers = append(identifiers, identifier)
	}
	r.mu.Unlock()

	for _, identifier := range identifiers {
		r.Terminate(ctx, identifier)
	}
}

// runTick executes one refresh and applies the termination policy: completed
// charges and unrecoverable failures both end the session, and neither crashes
// the scheduler. Termination is keyed on this session, not just the identifier,
// so a tick that outlived a re-registration cannot remove its replacement.
func (r *Registry) runTick(ctx context.Context, session *Session) {
	identifier := session.Registration.Identifier

	// The session may have been replaced or dismissed between the timer firing
	// and this running.
	if r.Lookup(identifier) != session {
		return
	}

	err := r.orchestrator.Refresh(ctx, session)
	switch {
	case err == nil:
		r.publish(ctx, events.Event{
			Type:       events.TypeUpdated,
			Identifier: identifier,
			DataSource: string(session.Registration.DataSource),
		})

	case errors.Is(err, ErrSessionComplete):
		r.logger.Info().
			Str("identifier", identifier).
			Msg("charging completed, terminating live activity")
		r.terminateSession(ctx, identifier, session, "charging complete")

	default:
		r.logger.Error().
			Err(err).
			Str("identifier", identifier).
			Msg("failed to update live activity")
		r.terminateSession(ctx, identifier, session, err.Error())
	}
}
