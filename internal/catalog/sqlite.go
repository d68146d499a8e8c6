// ABOUTME: SQLite implementation of the catalog using modernc.org/sqlite
// ABOUTME: Stores users, elements, spaces, and placements with automatic schema creation

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

// Store implements Reader plus the write path the admin tooling uses.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a new SQLite catalog at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "catalog")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("catalog store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'User',
			created_at    TEXT NOT NULL,

			CHECK (role IN ('User', 'Admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS elements (
			id        TEXT PRIMARY KEY,
			image_url TEXT NOT NULL,
			width     INTEGER NOT NULL,
			height    INTEGER NOT NULL,
			static    INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS spaces (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			creator_id TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS space_elements (
			id         TEXT PRIMARY KEY,
			space_id   TEXT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
			element_id TEXT NOT NULL REFERENCES elements(id),
			x          INTEGER NOT NULL,
			y          INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_space_elements_space ON space_elements(space_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// Lookup implements Reader. The obstacle set is the union of all cells
// covered by static elements placed in the space: an element of size w x h
// at (x, y) blocks every cell in [x, x+w) x [y, y+h).
func (s *Store) Lookup(ctx context.Context, spaceID string) (*grid.Space, error) {
	space := &grid.Space{
		ID:        spaceID,
		Obstacles: make(map[grid.Position]struct{}),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT width, height FROM spaces WHERE id = ?`, spaceID,
	).Scan(&space.Width, &space.Height)
	if err == sql.ErrNoRows {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying space: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT se.x, se.y, e.width, e.height
		FROM space_elements se
		JOIN elements e ON e.id = se.element_id
		WHERE se.space_id = ? AND e.static = 1
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("querying space elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var x, y, w, h int
		if err := rows.Scan(&x, &y, &w, &h); err != nil {
			return nil, fmt.Errorf("scanning space element: %w", err)
		}
		for dx := 0; dx < w; dx++ {
			for dy := 0; dy < h; dy++ {
				space.Obstacles[grid.Position{X: x + dx, Y: y + dy}] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating space elements: %w", err)
	}

	return space, nil
}

// CreateUser creates a catalog account with a bcrypt password hash.
// Returns ErrUserExists if the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Username, string(hash), user.Role, user.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", username, "role", role)
	return user, nil
}

// Authenticate checks a username/password pair against the stored hash.
// Returns ErrInvalidCredentials on any mismatch, without distinguishing an
// unknown user from a wrong password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var user User
	var hash, createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &hash, &user.Role, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateElement registers an element template and returns its id.
func (s *Store) CreateElement(ctx context.Context, e *Element) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	staticInt := 0
	if e.Static {
		staticInt = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO elements (id, image_url, width, height, static)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.ImageURL, e.Width, e.Height, staticInt)
	if err != nil {
		return fmt.Errorf("inserting element: %w", err)
	}

	return nil
}

// CreateSpace registers a space with explicit dimensions and returns its id.
func (s *Store) CreateSpace(ctx context.Context, id, name string, width, height int, creatorID string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, width, height, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, name, width, height, creatorID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("inserting space: %w", err)
	}

	s.logger.Debug("created space", "id", id, "name", name, "width", width, "height", height)
	return id, nil
}

// PlaceElement places an element instance inside a space.
func (s *Store) PlaceElement(ctx context.Context, spaceID, elementID string, x, y int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO space_elements (id, space_id, element_id, x, y)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), spaceID, elementID, x, y)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrElementNotFound
		}
		return fmt.Errorf("inserting space element: %w", err)
	}

	return nil
}

// ListSpaces returns all spaces in the catalog.
func (s *Store) ListSpaces(ctx context.Context) ([]SpaceInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, width, height FROM spaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying spaces: %w", err)
	}
	defer rows.Close()

	var spaces []SpaceInfo
	for rows.Next() {
		var info SpaceInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Width, &info.Height); err != nil {
			return nil, fmt.Errorf("scanning space: %w", err)
		}
		spaces = append(spaces, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spaces: %w", err)
	}

	return spaces, nil
}
