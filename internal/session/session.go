package session

import (
	"context"
	"strings"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/directory"
	"github.com/parley-chat/parley/internal/entity"
	"github.com/parley-chat/parley/internal/store"
	"github.com/rs/zerolog/log"
)

// Command ops a client can post into a session.
const (
	OpNavigate       = "navigate"
	OpSubmitRoom     = "submit_room"
	OpSubmitPassword = "submit_password"
	OpSubmitName     = "submit_name"
	OpSend           = "send"
	OpLeave          = "leave"
	OpClear          = "clear"
	OpFocus          = "focus"
	OpBlur           = "blur"
)

type Command struct {
	Op       string
	Token    string
	Slug     string
	Password string
	Name     string
	Text     string
}

type Config struct {
	AppName       string
	MaxMessageLen int
}

// Session drives one client's room lifecycle: the navigation state machine,
// the two live subscriptions, and the rendered view. All state is owned by
// the run-loop goroutine; commands and subscription events funnel through
// one channel, so no locks are needed. Store calls run asynchronously and
// post their result back tagged with the epoch they started under: a result
// whose epoch no longer matches the session context is discarded, so a slow
// operation can never resolve into a different, now-current room.
type Session struct {
	clientID string
	dir      directory.Directory
	digester *directory.Digester
	msgs     store.MessageStoreContract
	parts    store.ParticipantStoreContract
	view     View
	cfg      Config

	ctx    context.Context
	events chan any

	state       State
	slug        string
	name        string
	epoch       uint64
	suppressNav bool
	disposers   []store.Disposer

	rec   *reconciler
	pres  *presenceTracker
	notif *focusTracker
}

type completion struct {
	epoch uint64
	apply func()
}

type msgBatchEvent struct {
	epoch uint64
	batch store.MessageBatch
}

type presenceEvent struct {
	epoch uint64
	parts []entity.Participant
}

func New(ctx context.Context, clientID string, dir directory.Directory, digester *directory.Digester,
	msgs store.MessageStoreContract, parts store.ParticipantStoreContract,
	view View, cfg Config) *Session {
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = 2000
	}
	return &Session{
		ctx:      ctx,
		clientID: clientID,
		dir:      dir,
		digester: digester,
		msgs:     msgs,
		parts:    parts,
		view:     view,
		cfg:      cfg,
		events:   make(chan any, 64),
		notif:    newFocusTracker(cfg.AppName),
	}
}

// Post delivers a client command into the run loop. Safe to call from any
// goroutine once Run has started.
func (s *Session) Post(cmd Command) {
	s.post(cmd)
}

func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Run owns the session until its context is cancelled.
func (s *Session) Run() {
	s.setState(StateRoomSelect)

	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case ev := <-s.events:
			switch e := ev.(type) {
			case Command:
				s.handleCommand(e)
			case completion:
				if e.epoch == s.epoch {
					e.apply()
				} else {
					log.Debug().Str("client", s.clientID).Msg("session: discarding stale operation result")
				}
			case msgBatchEvent:
				if e.epoch == s.epoch && s.rec != nil {
					s.rec.Apply(e.batch)
				}
			case presenceEvent:
				if e.epoch == s.epoch && s.pres != nil {
					s.pres.Apply(e.parts)
				}
			}
		}
	}
}

func (s *Session) handleCommand(cmd Command) {
	switch cmd.Op {
	case OpFocus:
		s.notif.Focus()
		s.view.Unseen(0, s.notif.Title())
	case OpBlur:
		s.notif.Blur()
	case OpNavigate:
		s.handleNavigate(cmd.Token)
	case OpSubmitRoom:
		if s.state != StateRoomSelect {
			return
		}
		s.submitRoom(cmd.Slug, cmd.Password)
	case OpSubmitPassword:
		if s.state != StatePasswordVerify {
			return
		}
		s.submitPassword(cmd.Password)
	case OpSubmitName:
		if s.state != StateNameSelect {
			return
		}
		s.submitName(cmd.Name)
	case OpSend:
		if s.state != StateActiveChat {
			return
		}
		s.send(cmd.Text)
	case OpLeave:
		if s.state != StateActiveChat {
			return
		}
		s.leave()
	case OpClear:
		if s.state != StateActiveChat {
			return
		}
		s.clear()
	default:
		log.Warn().Str("op", cmd.Op).Msg("session: unknown command op")
	}
}

// spawn runs a store interaction off the loop goroutine and posts its apply
// step back, tagged with the current epoch.
func (s *Session) spawn(op func(ctx context.Context) func()) {
	ep := s.epoch
	ctx := s.ctx
	go func() {
		apply := op(ctx)
		if apply == nil {
			return
		}
		s.post(completion{epoch: ep, apply: apply})
	}()
}

func (s *Session) setState(st State) {
	s.state = st
	s.view.State(st)
}

// teardown closes the current room context entirely: bumps the epoch so
// in-flight results and stale subscription callbacks are discarded, and
// disposes both subscriptions before anything new may subscribe.
func (s *Session) teardown() {
	s.epoch++
	for _, d := range s.disposers {
		d()
	}
	s.disposers = nil

	if s.rec != nil {
		s.view.Reset()
		s.view.Participants(nil)
	}
	s.rec = nil
	s.pres = nil
	s.notif.ResetCount()
	s.view.Unseen(0, s.notif.Title())

	s.slug = ""
	s.name = ""
}

// forceNavigateHome resets to the room selection screen and pushes the
// empty token to the client shell. The shell reflects the token change back
// as a navigate command, which must be consumed exactly once.
func (s *Session) forceNavigateHome() {
	s.teardown()
	s.suppressNav = true
	s.view.Navigate("")
	s.setState(StateRoomSelect)
}

func (s *Session) handleNavigate(token string) {
	if s.suppressNav {
		// Echo of a self-triggered token change; already transitioned.
		s.suppressNav = false
		return
	}

	token = directory.NormalizeSlug(token)
	s.teardown()

	if token == "" {
		s.setState(StateRoomSelect)
		return
	}

	s.slug = token
	s.setState(StateLoading)
	s.spawn(func(ctx context.Context) func() {
		_, err := s.dir.Read(ctx, token)
		return func() {
			if err != nil {
				if err.Kind == apperr.KindNotFound {
					s.view.Error("slug", "room not found, you can create it")
				} else {
					log.Error().Err(err).Str("slug", token).Msg("session: room lookup failed")
					s.view.Error("general", "something went wrong, please try again")
				}
				s.forceNavigateHome()
				return
			}
			s.setState(StatePasswordVerify)
		}
	})
}

func (s *Session) submitRoom(slug, password string) {
	slug = directory.NormalizeSlug(slug)
	if slug == "" || password == "" {
		s.view.Error("form", "room name and password are required")
		return
	}

	s.setState(StateLoading)
	s.spawn(func(ctx context.Context) func() {
		room, err := s.dir.Read(ctx, slug)
		if err != nil && err.Kind == apperr.KindNotFound {
			digest := s.digester.Digest(password)
			cerr := s.dir.Create(ctx, slug, digest)
			switch {
			case cerr == nil:
				room, err = &entity.Room{Slug: slug, PasswordDigest: digest}, nil
			case cerr.Kind == apperr.KindConflict:
				// Lost a create race; verify against the winner's digest.
				room, err = s.dir.Read(ctx, slug)
			default:
				err = cerr
			}
		}

		return func() {
			switch {
			case err != nil:
				log.Error().Err(err).Str("slug", slug).Msg("session: room submit failed")
				s.view.Error("general", "something went wrong, please try again")
				s.setState(StateRoomSelect)
			case !s.digester.Verify(password, room.PasswordDigest):
				s.view.Error("password", "wrong password for this room")
				s.setState(StateRoomSelect)
			default:
				s.enterRoom(slug)
			}
		}
	})
}

// enterRoom records the slug and reflects it to the client shell. The
// transition to NameSelect happens here, atomically with the token write;
// the shell's echoed navigate is suppressed so it cannot re-trigger it.
func (s *Session) enterRoom(slug string) {
	s.slug = slug
	s.suppressNav = true
	s.view.Navigate(slug)
	s.setState(StateNameSelect)
}

func (s *Session) submitPassword(password string) {
	if s.slug == "" {
		s.forceNavigateHome()
		return
	}
	if password == "" {
		s.view.Error("password", "password is required")
		return
	}

	slug := s.slug
	s.setState(StateLoading)
	s.spawn(func(ctx context.Context) func() {
		room, err := s.dir.Read(ctx, slug)
		return func() {
			switch {
			case err != nil && err.Kind == apperr.KindNotFound:
				s.view.Error("slug", "room no longer exists")
				s.forceNavigateHome()
			case err != nil:
				log.Error().Err(err).Str("slug", slug).Msg("session: password verify failed")
				s.view.Error("general", "something went wrong, please try again")
				s.setState(StatePasswordVerify)
			case !s.digester.Verify(password, room.PasswordDigest):
				s.view.Error("password", "wrong password for this room")
				s.setState(StatePasswordVerify)
			default:
				s.setState(StateNameSelect)
			}
		}
	})
}

func (s *Session) submitName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.view.Error("name", "display name is required")
		return
	}
	if s.slug == "" {
		s.forceNavigateHome()
		return
	}

	slug := s.slug
	s.setState(StateLoading)
	s.spawn(func(ctx context.Context) func() {
		existing, err := s.parts.List(ctx, slug)
		if err != nil {
			return func() {
				log.Error().Err(err).Str("slug", slug).Msg("session: participant list failed")
				s.view.Error("general", "something went wrong, please try again")
				s.setState(StateNameSelect)
			}
		}

		var mine *entity.Participant
		for i := range existing {
			p := existing[i]
			if p.ClientID == s.clientID {
				mine = &p
				continue
			}
			if strings.EqualFold(p.Name, name) {
				return func() {
					s.view.Error("name", "name already in use")
					s.setState(StateNameSelect)
				}
			}
		}

		if mine != nil {
			// Idempotent rejoin: refresh joined-at, no duplicate join event.
			err = s.parts.Touch(ctx, slug, s.clientID)
		} else {
			err = s.parts.Upsert(ctx, slug, s.clientID, name)
			if err == nil {
				if _, aerr := s.msgs.Append(ctx, entity.SystemEvent(slug, name+" has joined the room.")); aerr != nil {
					log.Error().Err(aerr).Str("slug", slug).Msg("session: join event append failed")
				}
			}
		}

		return func() {
			if err != nil {
				log.Error().Err(err).Str("slug", slug).Msg("session: join failed")
				s.view.Error("general", "something went wrong, please try again")
				s.setState(StateNameSelect)
				return
			}
			s.name = name
			s.activate()
		}
	})
}

// activate enters ActiveChat and starts both live subscriptions. Existing
// room content is backfilled through the same reconciliation path the live
// feed uses.
func (s *Session) activate() {
	s.rec = newReconciler(s.clientID, s.view, s.notif)
	s.pres = newPresenceTracker(s.view)
	s.setState(StateActiveChat)

	ep := s.epoch
	slug := s.slug

	if d, err := s.parts.Watch(s.ctx, slug, func(parts []entity.Participant) {
		s.post(presenceEvent{epoch: ep, parts: parts})
	}); err != nil {
		// No retry policy: presence stays stale until the next room entry.
		log.Error().Err(err).Str("slug", slug).Msg("session: participant watch failed")
	} else {
		s.disposers = append(s.disposers, d)
	}

	if d, err := s.msgs.Watch(s.ctx, slug, func(batch store.MessageBatch) {
		s.post(msgBatchEvent{epoch: ep, batch: batch})
	}); err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("session: message watch failed")
	} else {
		s.disposers = append(s.disposers, d)
	}

	s.spawn(func(ctx context.Context) func() {
		msgs, merr := s.msgs.List(ctx, slug)
		parts, perr := s.parts.List(ctx, slug)
		return func() {
			if merr != nil {
				log.Error().Err(merr).Str("slug", slug).Msg("session: message backfill failed")
			} else if len(msgs) > 0 && s.rec != nil {
				batch := store.MessageBatch{Events: make([]store.MessageEvent, 0, len(msgs))}
				for _, m := range msgs {
					batch.Events = append(batch.Events, store.MessageEvent{Type: store.ChangeAdded, Message: m})
				}
				s.rec.Apply(batch)
			}
			if perr != nil {
				log.Error().Err(perr).Str("slug", slug).Msg("session: participant backfill failed")
			} else if s.pres != nil {
				s.pres.Apply(parts)
			}
		}
	})
}

func (s *Session) send(text string) {
	text = sanitizeMessage(text, s.cfg.MaxMessageLen)
	if text == "" {
		return
	}

	msg := entity.Message{
		RoomSlug: s.slug,
		Kind:     entity.MessageKindUser,
		Text:     text,
		SenderID: s.clientID,
		Name:     s.name,
	}

	s.spawn(func(ctx context.Context) func() {
		_, err := s.msgs.Append(ctx, msg)
		if err == nil {
			return nil
		}
		return func() {
			log.Error().Err(err).Str("slug", msg.RoomSlug).Msg("session: send failed")
			s.view.Error("general", "failed to send message")
			// The client cleared its input optimistically; hand the text
			// back for retry.
			s.view.InputRestore(text)
		}
	})
}

func (s *Session) leave() {
	slug := s.slug
	name := s.name

	s.spawn(func(ctx context.Context) func() {
		err := s.parts.Delete(ctx, slug, s.clientID)
		if err == nil {
			if _, aerr := s.msgs.Append(ctx, entity.SystemEvent(slug, name+" has left the room.")); aerr != nil {
				log.Error().Err(aerr).Str("slug", slug).Msg("session: leave event append failed")
			}
		}
		return func() {
			if err != nil {
				log.Error().Err(err).Str("slug", slug).Msg("session: leave failed")
				s.view.Error("general", "failed to leave the room")
				return
			}
			s.forceNavigateHome()
		}
	})
}

func (s *Session) clear() {
	slug := s.slug
	name := s.name

	s.spawn(func(ctx context.Context) func() {
		msgs, err := s.msgs.List(ctx, slug)
		if err != nil {
			return func() {
				log.Error().Err(err).Str("slug", slug).Msg("session: clear enumerate failed")
				s.view.Error("general", "failed to clear history")
			}
		}
		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)
		}
		derr := s.msgs.DeleteBatch(ctx, slug, ids)
		return func() {
			if derr != nil {
				log.Error().Err(derr).Str("slug", slug).Msg("session: clear delete failed")
				s.view.Error("general", "failed to clear history")
				return
			}
			// Drop the rendered log at once instead of waiting for the
			// removal echoes; the announcement below still arrives through
			// the live feed.
			if s.rec != nil {
				s.rec.ResetAll()
			}
			s.spawn(func(ctx context.Context) func() {
				if _, aerr := s.msgs.Append(ctx, entity.SystemEvent(slug, name+" cleared the chat history.")); aerr != nil {
					return func() {
						log.Error().Err(aerr).Str("slug", slug).Msg("session: clear event append failed")
					}
				}
				return nil
			})
		}
	})
}

// State exposes the current machine state; test hook.
func (s *Session) State() State { return s.state }
