package sessions

import (
	"encoding/gob"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/indieauthify/indieauthify/internal/login"
)

const (
	injectSessionKey = "session"
	sessionDataKey   = "data"
)

type Flash struct {
	Category string
	Message  string
}

type SessionData struct {
	id            string      // session id
	IP            string      // client ip address
	Login         login.State // login progress
	CSRFToken     string      // csrf token
	CSRFExpiresAt time.Time   // csrf token expiry
	Flashes       []Flash     // messages shown on the next page
	LastSeen      time.Time   // last request time
	LoginTime     time.Time   // last login time
}

func (s SessionData) ID() string {
	return s.id
}

func (s *SessionData) IsLoggedIn() bool {
	return s.Login.IsAuthenticated()
}

func (s *SessionData) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

func (s *SessionData) TakeFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

func init() {
	gob.Register(SessionData{})
	gob.Register(Flash{})
}

func Get(ctx *fiber.Ctx) SessionData {
	session := ctx.Locals(injectSessionKey).(*session.Session)
	data, _ := session.Get(sessionDataKey).(SessionData)
	data.id = session.ID()
	return data
}

func Set(ctx *fiber.Ctx, data SessionData) {
	session := ctx.Locals(injectSessionKey).(*session.Session)
	session.Set(sessionDataKey, data)
}

// AddFlash adds a message to be shown on the next rendered page.
func AddFlash(ctx *fiber.Ctx, category, message string) {
	data := Get(ctx)
	data.AddFlash(category, message)
	Set(ctx, data)
}

func Destroy(ctx *fiber.Ctx) error {
	sess := ctx.Locals(injectSessionKey).(*session.Session)
	return sess.Destroy()
}

// Reset replaces the session with a new id holding data.
func Reset(ctx *fiber.Ctx, data *SessionData) error {
	sess := ctx.Locals(injectSessionKey).(*session.Session)
	err := sess.Reset()
	if err != nil {
		return err
	}
	data.id = sess.ID()
	sess.Set(sessionDataKey, *data)
	return nil
}

func SessionMiddleware(store *session.Store) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sess, err := store.Get(ctx)
		if err != nil {
			return err
		}

		ctx.Locals(injectSessionKey, sess)
		if err := ctx.Next(); err != nil {
			return err
		}

		data, ok := sess.Get(sessionDataKey).(SessionData)
		if ok {
			data.IP = ctx.IP()
			data.LastSeen = time.Now()
			sess.Set(sessionDataKey, data)
			return sess.Save()
		}

		return nil
	}
}
