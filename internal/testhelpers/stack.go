// Package testhelpers builds a wired in-process service stack for handler tests.
package testhelpers

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/cache"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/client"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/river"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/risk"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/service"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/store"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/upload"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/zone"
)

// StartTime is 14:07 KST, aligned to base time 1350.
var StartTime = time.Date(2026, 7, 1, 14, 7, 0, 0, client.KST)

// SessionSecret signs cookies issued by a Stack.
const SessionSecret = "test-session-secret-0123456789"

// StubWeather returns a fixed rainfall or error and counts calls.
type StubWeather struct {
	mu       sync.Mutex
	rainfall float64
	err      error
	calls    atomic.Int32
}

func NewStubWeather(rainfall float64) *StubWeather {
	return &StubWeather{rainfall: rainfall}
}

func (s *StubWeather) GetObservation(ctx context.Context, nx, ny int, baseDate, baseTime string) (models.Observation, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Observation{}, s.err
	}
	return models.Observation{NX: nx, NY: ny, BaseDate: baseDate, BaseTime: baseTime, Rainfall: s.rainfall}, nil
}

// Set replaces the stubbed result.
func (s *StubWeather) Set(rainfall float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rainfall, s.err = rainfall, err
}

func (s *StubWeather) Calls() int { return int(s.calls.Load()) }

// Options customizes NewStack. Zero values give a stub weather source reporting
// 0.0 mm, rule mode, no observation cache and a 1 MiB upload limit.
type Options struct {
	Weather        client.WeatherClient
	Model          risk.Model
	Cache          cache.Cache
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Stack is every service a handler needs, backed by a temp SQLite file and upload dir.
type Stack struct {
	Clock    *clockwork.FakeClock
	Store    *store.Store
	Media    *upload.Store
	Sessions *auth.SessionManager
	Risk     *service.RiskService
	Accounts *service.AccountService
	Reports  *service.ReportService
}

func NewStack(t testing.TB, opts Options) *Stack {
	t.Helper()
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(StartTime)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	weather := opts.Weather
	if weather == nil {
		weather = NewStubWeather(0)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 1 << 20
	}

	db, err := store.Open(context.Background(), filepath.Join(dir, "flood.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	media, err := upload.NewStore(filepath.Join(dir, "uploads"), maxUpload)
	if err != nil {
		t.Fatalf("upload.NewStore() error = %v", err)
	}

	sessions, err := auth.NewSessionManager(SessionSecret, "session", time.Hour, false, clock)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	var classifier *risk.Classifier
	if opts.Model != nil {
		classifier = risk.NewClassifier(opts.Model)
	} else {
		classifier = risk.NewClassifier(nil)
	}

	v := validation.New()
	return &Stack{
		Clock:    clock,
		Store:    db,
		Media:    media,
		Sessions: sessions,
		Risk: service.NewRiskService(
			zone.Default(),
			weather,
			client.NewBaseTimeAligner(clock, client.KST),
			opts.Cache,
			10*time.Minute,
			river.NewFixed(river.DefaultLevel),
			classifier,
			logger,
		),
		Accounts: service.NewAccountService(db, v, logger),
		Reports:  service.NewReportService(db, media, v, logger),
	}
}

// CreateUser inserts a user directly and returns a session for it.
func (s *Stack) CreateUser(t testing.TB, username, email, password string) (models.User, auth.Session) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u, err := s.Store.CreateUser(context.Background(), username, email, hash)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u, auth.Session{UserID: u.ID, Username: u.Username}
}

// SessionCookie returns a valid session cookie value for the user.
func (s *Stack) SessionCookie(t testing.TB, userID int64, username string) string {
	t.Helper()
	token, err := s.Sessions.Issue(userID, username)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}
