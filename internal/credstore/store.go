package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stugahq/stuga-core/internal/hub"
	"github.com/stugahq/stuga-core/internal/infrastructure/config"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
	msPerSecond     = 1000

	connectionTimeout = 5 * time.Second

	// expirySkew treats tokens expiring within this window as already
	// expired, so a token never dies mid-handshake.
	expirySkew = 30 * time.Second
)

// RefreshFunc exchanges a refresh token for a fresh access token. A return
// of ErrAuthRejected means the grant was revoked; any other error is
// treated as transient. The OAuth flow itself lives outside the core.
type RefreshFunc func(ctx context.Context, hubURL, refreshToken string) (accessToken string, expiresAt time.Time, err error)

// Store is a SQLite-backed credential source for refresh-token auth. It
// implements hub.CredentialSource: Fresh hands the connection manager a
// non-expired access token, refreshing through the injected RefreshFunc
// when needed.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	refresh RefreshFunc
}

// Open opens (creating if needed) the credential database.
func Open(cfg config.DatabaseConfig, refresh RefreshFunc) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating credential store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("verifying credential store: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			hub_url       TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)
	`); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("creating credentials table: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file may not exist until first write

	return &Store{db: db, refresh: refresh}, nil
}

// Save stores the single credential row, replacing any previous one.
func (s *Store) Save(hubURL, accessToken, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, hub_url, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			hub_url = excluded.hub_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, hubURL, accessToken, refreshToken, expiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Fresh returns credentials ready for the auth handshake. The outcome maps
// onto the connection manager's three-way contract: a usable token, a
// transient network failure (stored credentials kept), or a permanent
// rejection (store cleared).
func (s *Store) Fresh(ctx context.Context) hub.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.loadLocked()
	if errors.Is(err, ErrNoCredentials) {
		return hub.Credentials{Status: hub.CredentialsNone}
	}
	if err != nil {
		return hub.Credentials{Status: hub.CredentialsNetworkError}
	}

	if tokenUsable(row.accessToken, row.expiresAt) {
		return hub.Credentials{Status: hub.CredentialsValid, Token: row.accessToken, URL: row.hubURL}
	}

	if s.refresh == nil {
		return hub.Credentials{Status: hub.CredentialsAuthError}
	}

	accessToken, expiresAt, err := s.refresh(ctx, row.hubURL, row.refreshToken)
	if errors.Is(err, ErrAuthRejected) {
		s.clearLocked() //nolint:errcheck // rejection already being surfaced
		return hub.Credentials{Status: hub.CredentialsAuthError}
	}
	if err != nil {
		return hub.Credentials{Status: hub.CredentialsNetworkError}
	}

	if err := s.saveAccessLocked(accessToken, expiresAt); err != nil {
		// The token is still good for this handshake.
		return hub.Credentials{Status: hub.CredentialsValid, Token: accessToken, URL: row.hubURL}
	}
	return hub.Credentials{Status: hub.CredentialsValid, Token: accessToken, URL: row.hubURL}
}

// Clear removes stored credentials. Invoked by the connection manager on
// permanent auth failure.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type credentialRow struct {
	hubURL       string
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func (s *Store) loadLocked() (credentialRow, error) {
	var row credentialRow
	var expiresAt int64
	err := s.db.QueryRow(`
		SELECT hub_url, access_token, refresh_token, expires_at
		FROM credentials WHERE id = 1
	`).Scan(&row.hubURL, &row.accessToken, &row.refreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return credentialRow{}, ErrNoCredentials
	}
	if err != nil {
		return credentialRow{}, fmt.Errorf("loading credentials: %w", err)
	}
	row.expiresAt = time.Unix(expiresAt, 0)
	return row, nil
}

func (s *Store) saveAccessLocked(accessToken string, expiresAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE credentials SET access_token = ?, expires_at = ?, updated_at = ? WHERE id = 1
	`, accessToken, expiresAt.Unix(), time.Now().Unix())
	return err
}

func (s *Store) clearLocked() error {
	if _, err := s.db.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// tokenUsable reports whether the access token is valid past the skew
// window. The token's own exp claim wins over the stored expiry when
// present; hub tokens are JWTs and the claim is authoritative.
func tokenUsable(accessToken string, storedExpiry time.Time) bool {
	expiry := storedExpiry
	if claimExpiry, ok := jwtExpiry(accessToken); ok {
		expiry = claimExpiry
	}
	if expiry.IsZero() {
		return false
	}
	return time.Now().Add(expirySkew).Before(expiry)
}

// jwtExpiry extracts the exp claim without verifying the signature. Only
// the hub can verify its own tokens; locally the claim is just a clock.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
