package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukerupert/choresync/internal/alternation"
	"github.com/dukerupert/choresync/internal/household"
	"github.com/dukerupert/choresync/internal/localstore"
	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/remote"
	"github.com/dukerupert/choresync/internal/syncer"
)

var errNoServer = errors.New("no sync server configured: set server_url or pass --server")

// session is the opened local household for one command.
type session struct {
	store   *localstore.Store
	svc     *household.Service
	client  *remote.Client
	coord   *syncer.Coordinator
	logger  *slog.Logger
	offline bool
}

func (o *RootOptions) open() (*session, error) {
	store, err := localstore.Open(o.config.StorePath)
	if err != nil {
		return nil, err
	}
	s := &session{
		store:  store,
		svc:    household.New(store, alternation.Engine{}, o.config.HorizonDays, o.logger),
		logger: o.logger,
	}
	if o.config.ServerURL == "" {
		s.offline = true
		return s, nil
	}
	s.client = remote.NewClient(o.config.ServerURL, o.config.APIToken, nil)
	s.coord = syncer.New(s.client, store, o.logger)
	return s, nil
}

// openSeeded opens the session and creates the default members on first use.
func (o *RootOptions) openSeeded(ctx context.Context) (*session, error) {
	s, err := o.open()
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.SeedIfEmpty(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) requireServer() error {
	if s.offline {
		return errNoServer
	}
	return nil
}

// replicate is the second phase of a mutation. A failure leaves the change
// dirty locally for the next sync and is reported as a warning only.
func (s *session) replicate(cmd *cobra.Command, reason string) {
	if s.offline {
		s.logger.Debug("offline, change kept locally", "reason", reason)
		return
	}
	if err := s.coord.SyncNow(cmd.Context(), reason); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: saved locally, sync failed: %v\n", err)
	}
}

// resolveMember matches an id, a unique id prefix or a display name.
func (s *session) resolveMember(ref string) (model.Member, error) {
	return resolve(ref, "member", s.store.Members(),
		func(m model.Member) uuid.UUID { return m.ID },
		func(m model.Member) string { return m.DisplayName })
}

// resolveTemplate matches an id, a unique id prefix or a title.
func (s *session) resolveTemplate(ref string) (model.TaskTemplate, error) {
	return resolve(ref, "template", s.store.Templates(nil),
		func(t model.TaskTemplate) uuid.UUID { return t.ID },
		func(t model.TaskTemplate) string { return t.Title })
}

// resolveOccurrence matches an id or a unique id prefix.
func (s *session) resolveOccurrence(ref string) (model.TaskOccurrence, error) {
	return resolve(ref, "occurrence", s.store.Occurrences(nil),
		func(o model.TaskOccurrence) uuid.UUID { return o.ID },
		func(model.TaskOccurrence) string { return "" })
}

func resolve[T any](ref, kind string, items []T, id func(T) uuid.UUID, name func(T) string) (T, error) {
	var zero T
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, fmt.Errorf("%s: %w", kind, household.ErrNotFound)
	}

	if parsed, err := uuid.Parse(ref); err == nil {
		for _, item := range items {
			if id(item) == parsed {
				return item, nil
			}
		}
		return zero, fmt.Errorf("%s %s: %w", kind, ref, household.ErrNotFound)
	}

	var matches []T
	lower := strings.ToLower(ref)
	for _, item := range items {
		if strings.HasPrefix(id(item).String(), lower) || strings.EqualFold(name(item), ref) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%s %q: %w", kind, ref, household.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%s %q is ambiguous: %d matches", kind, ref, len(matches))
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
