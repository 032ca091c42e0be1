package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── Services ─────────────────────────────────────────────────────────────────

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserStore is an in-memory repository shared by every request (singleton).
type UserStore struct {
	mu    sync.Mutex
	users []User
}

func (s *UserStore) All() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.users...)
}

func (s *UserStore) Find(id int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func (s *UserStore) Add(name, email string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: len(s.users) + 1, Name: name, Email: email}
	s.users = append(s.users, u)
	return u
}

// Mailer sends notifications.
type Mailer interface {
	Send(to, subject string) error
}

type LogMailer struct {
	Log *zap.Logger `inject:"required"`
}

func (m *LogMailer) Send(to, subject string) error {
	m.Log.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// AuditTrail collects what happened during one request (scoped) and
// flushes it when the request scope closes.
type AuditTrail struct {
	Log     *zap.Logger     `inject:"required"`
	Request *gohttp.Request `inject:"required"`
	events  []string
}

func (a *AuditTrail) Record(event string) { a.events = append(a.events, event) }

func (a *AuditTrail) Close() error {
	if len(a.events) > 0 {
		a.Log.Info("audit",
			zap.String("path", a.Request.Path()),
			zap.Strings("events", a.events))
	}
	return nil
}

// UserService is built per request; the mailer is only resolved when a
// user is actually created.
type UserService struct {
	Store  *UserStore              `inject:"required"`
	Audit  *AuditTrail             `inject:"required"`
	Mailer *container.Lazy[Mailer] `inject:""`
	Ctx    context.Context         `inject:"required"`
}

func (s *UserService) Create(name, email string) (User, error) {
	if err := s.Ctx.Err(); err != nil {
		return User{}, err
	}
	u := s.Store.Add(name, email)
	s.Audit.Record("user.created:" + strconv.Itoa(u.ID))

	mailer, err := s.Mailer.Value()
	if err != nil {
		return User{}, err
	}
	if mailer != nil {
		if err := mailer.Send(u.Email, "Welcome"); err != nil {
			return User{}, err
		}
	}
	return u, nil
}

// ── Provider ─────────────────────────────────────────────────────────────────

type AppServiceProvider struct {
	container.BaseProvider
}

func (p *AppServiceProvider) Register(c *container.Container) error {
	if err := container.AddSingletonFactory(c, func(*container.Resolver) (*UserStore, error) {
		s := &UserStore{}
		s.Add("Alice", "alice@example.com")
		s.Add("Bob", "bob@example.com")
		return s, nil
	}); err != nil {
		return err
	}
	if err := container.AddSingletonAs[Mailer, *LogMailer](c); err != nil {
		return err
	}
	if err := container.AddScoped[*AuditTrail](c); err != nil {
		return err
	}
	return container.AddScoped[*UserService](c)
}

// ── Controllers ──────────────────────────────────────────────────────────────

type UserController struct {
	app.Controller
}

func (uc *UserController) Index(w http.ResponseWriter, req *http.Request) {
	svc, ok := app.Resolve[*UserService](&uc.Controller, w, req)
	if !ok {
		return
	}
	uc.Response(w).Success(svc.Store.All())
}

func (uc *UserController) Store(w http.ResponseWriter, req *http.Request) {
	res := uc.Response(w)

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := uc.Request(req).Bind(&body); err != nil {
		res.Error(http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" || body.Email == "" {
		res.Error(http.StatusUnprocessableEntity, "name and email are required")
		return
	}

	svc, ok := app.Resolve[*UserService](&uc.Controller, w, req)
	if !ok {
		return
	}
	u, err := svc.Create(body.Name, body.Email)
	if err != nil {
		res.ServerError(err.Error())
		return
	}
	res.Created(u)
}

func (uc *UserController) Show(w http.ResponseWriter, req *http.Request) {
	res := uc.Response(w)
	id, err := strconv.Atoi(routing.Param(req, "id"))
	if err != nil {
		res.NotFound()
		return
	}
	store, ok := app.Resolve[*UserStore](&uc.Controller, w, req)
	if !ok {
		return
	}
	u, found := store.Find(id)
	if !found {
		res.NotFound("User not found.")
		return
	}
	res.Success(u)
}

// ── Routes ───────────────────────────────────────────────────────────────────

func routes(r *routing.Router, users *UserController) {
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"message": "Welcome to go-ioc!"})
	})

	r.Prefix("/api/v1", func(api *routing.Router) {
		api.Get("/users", users.Index)
		api.Post("/users", users.Store)
		api.Get("/users/{id}", users.Show)
	})

	r.Group(func(protected *routing.Router) {
		protected.Middleware(AuthMiddleware)

		protected.Get("/profile", func(w http.ResponseWriter, req *http.Request) {
			gohttp.NewResponse(w).Success(map[string]any{"user": "authenticated"})
		})
	})
}

// AuthMiddleware is an example token guard.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gohttp.NewRequest(r).BearerToken() == "" {
			gohttp.NewResponse(w).Error(http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	application, err := app.New() // loads .env automatically
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := application.Register(&AppServiceProvider{}); err != nil {
		application.Logger().Fatal("register providers", zap.Error(err))
	}

	router, err := application.Router()
	if err != nil {
		application.Logger().Fatal("boot", zap.Error(err))
	}
	routes(router, &UserController{Controller: application.Controller()})

	if err := application.Run(context.Background()); err != nil {
		application.Logger().Fatal("server", zap.Error(err))
	}
}
