package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
	_ "modernc.org/sqlite"

	"eventWaitlist/internal/model"
)

//go:embed migrations
var migrationsFS embed.FS

var (
	ErrEventNotFound = errors.New("event not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrRsvpNotFound  = errors.New("rsvp not found")
	ErrEntryNotFound = errors.New("waiting list entry not found")
)

type Repository interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	DeleteEvent(ctx context.Context, id int64) error

	CountAttending(ctx context.Context, eventID int64) (int, error)
	CountWaiting(ctx context.Context, eventID int64) (int, error)
	GetRsvp(ctx context.Context, userID, eventID int64) (*model.Rsvp, error)
	GetRsvpsByEventID(ctx context.Context, eventID int64) ([]model.Rsvp, error)

	GetWaitingList(ctx context.Context, eventID int64) ([]model.WaitingListEntry, error)
	GetWaitingListEntry(ctx context.Context, userID, eventID int64) (*model.WaitingListEntry, error)
	GetEventIDsWithWaitingList(ctx context.Context) ([]int64, error)
	MarkNotified(ctx context.Context, userID, eventID int64) error

	CreateNotification(ctx context.Context, n *model.Notification) (int64, error)
	GetNotificationsByUserID(ctx context.Context, userID int64) ([]model.Notification, error)

	// WithEventTx runs fn in one transaction holding the event row lock.
	// fn's error rolls everything back.
	WithEventTx(ctx context.Context, eventID int64, fn func(tx Tx) error) error

	MigrateUp(ctx context.Context) error
	MigrateDown(ctx context.Context) error
	Close() error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// listQuerier is the read side dbpg exposes for master/slave routing.
type listQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type dialect struct {
	name      string
	forUpdate string
}

var (
	postgresDialect = dialect{name: "postgres", forUpdate: " FOR UPDATE"}
	sqliteDialect   = dialect{name: "sqlite"}
)

type repository struct {
	db      *sql.DB
	reader  listQuerier
	dialect dialect
	log     *zerolog.Logger
}

// NewRepository builds a Postgres repository. Listing reads go through dbpg
// (slaves when configured); everything touching capacity stays on master.
func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db.Master, reader: db, dialect: postgresDialect, log: log}, nil
}

// NewSQLiteRepository opens a single-connection SQLite repository.
// ":memory:" gives a private database, which is what the tests use.
func NewSQLiteRepository(dsn string, log *zerolog.Logger) (Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &repository{db: db, reader: db, dialect: sqliteDialect, log: log}, nil
}

func (r *repository) Close() error {
	return r.db.Close()
}

func (r *repository) MigrateUp(ctx context.Context) error {
	return r.migrate(ctx, "*.up.sql", false)
}

func (r *repository) MigrateDown(ctx context.Context) error {
	return r.migrate(ctx, "*.down.sql", true)
}

func (r *repository) migrate(ctx context.Context, pattern string, reverse bool) error {
	dir := path.Join("migrations", r.dialect.name)
	files, err := fs.Glob(migrationsFS, path.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Str("dialect", r.dialect.name).Int("files", len(files)).Msgf("Migrations %s applied", pattern)
	return nil
}

func (r *repository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, first_name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, u.Email, u.FirstName, u.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	u.ID = id
	return id, nil
}

func (r *repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (title, description, location, start_date, max_attendees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.Title, e.Description, e.Location, e.StartDate, e.MaxAttendees, e.CreatedAt, e.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	e.ID = id
	return id, nil
}

const eventColumns = `id, title, description, location, start_date, max_attendees, created_at, updated_at, archived_at`

func scanEvent(row scanner, e *model.Event) error {
	var archived sql.NullTime
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location,
		&e.StartDate, &e.MaxAttendees, &e.CreatedAt, &e.UpdatedAt, &archived,
	); err != nil {
		return err
	}
	e.ArchivedAt = nil
	if archived.Valid {
		at := archived.Time
		e.ArchivedAt = &at
	}
	return nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)

	var e model.Event
	if err := scanEvent(row, &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.reader.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY start_date ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes the event; RSVPs, waiting-list entries and
// notifications go with it through ON DELETE CASCADE.
func (r *repository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return expectOne(res, ErrEventNotFound)
}

func (r *repository) CountAttending(ctx context.Context, eventID int64) (int, error) {
	return countAttending(ctx, r.db, eventID)
}

func countAttending(ctx context.Context, q querier, eventID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM rsvps
		WHERE event_id = $1 AND status = $2
	`, eventID, string(model.StatusAttending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return count, nil
}

func (r *repository) CountWaiting(ctx context.Context, eventID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waiting_list WHERE event_id = $1`, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count waiting list: %w", err)
	}
	return count, nil
}

const rsvpColumns = `id, user_id, event_id, status, guest_count, rsvp_date`

func scanRsvp(row scanner, rsvp *model.Rsvp) error {
	var status string
	if err := row.Scan(&rsvp.ID, &rsvp.UserID, &rsvp.EventID, &status, &rsvp.GuestCount, &rsvp.RsvpDate); err != nil {
		return err
	}
	rsvp.Status = model.RsvpStatus(status)
	return nil
}

func getRsvp(ctx context.Context, q querier, userID, eventID int64) (*model.Rsvp, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE user_id = $1 AND event_id = $2
	`, userID, eventID)

	var rsvp model.Rsvp
	if err := scanRsvp(row, &rsvp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRsvpNotFound
		}
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return &rsvp, nil
}

func (r *repository) GetRsvp(ctx context.Context, userID, eventID int64) (*model.Rsvp, error) {
	return getRsvp(ctx, r.db, userID, eventID)
}

func (r *repository) GetRsvpsByEventID(ctx context.Context, eventID int64) ([]model.Rsvp, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE event_id = $1
		ORDER BY rsvp_date ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvps: %w", err)
	}
	defer rows.Close()

	var rsvps []model.Rsvp
	for rows.Next() {
		var rsvp model.Rsvp
		if err := scanRsvp(rows, &rsvp); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		rsvps = append(rsvps, rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rsvps: %w", err)
	}
	return rsvps, nil
}

const entryColumns = `id, user_id, event_id, priority, joined_at, is_notified`

func scanEntry(row scanner, e *model.WaitingListEntry) error {
	return row.Scan(&e.ID, &e.UserID, &e.EventID, &e.Priority, &e.JoinedAt, &e.Notified)
}

func getEntry(ctx context.Context, q querier, userID, eventID int64) (*model.WaitingListEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_list
		WHERE user_id = $1 AND event_id = $2
	`, userID, eventID)

	var e model.WaitingListEntry
	if err := scanEntry(row, &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get waiting list entry: %w", err)
	}
	return &e, nil
}

func listEntries(ctx context.Context, q querier, query string, args ...interface{}) ([]model.WaitingListEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting list: %w", err)
	}
	defer rows.Close()

	var entries []model.WaitingListEntry
	for rows.Next() {
		var e model.WaitingListEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan waiting list entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waiting list: %w", err)
	}
	return entries, nil
}

func (r *repository) GetWaitingList(ctx context.Context, eventID int64) ([]model.WaitingListEntry, error) {
	return listEntries(ctx, r.db, `
		SELECT `+entryColumns+`
		FROM waiting_list
		WHERE event_id = $1
		ORDER BY priority ASC
	`, eventID)
}

func (r *repository) GetWaitingListEntry(ctx context.Context, userID, eventID int64) (*model.WaitingListEntry, error) {
	return getEntry(ctx, r.db, userID, eventID)
}

func (r *repository) GetEventIDsWithWaitingList(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT event_id FROM waiting_list ORDER BY event_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting events: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waiting events: %w", err)
	}
	return ids, nil
}

func (r *repository) MarkNotified(ctx context.Context, userID, eventID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE waiting_list
		SET is_notified = $1
		WHERE user_id = $2 AND event_id = $3
	`, true, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark entry notified: %w", err)
	}
	return expectOne(res, ErrEntryNotFound)
}

func (r *repository) CreateNotification(ctx context.Context, n *model.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, event_id, type, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, n.UserID, n.EventID, n.Type, n.Title, n.Message, n.IsRead, n.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID = id
	return id, nil
}

func (r *repository) GetNotificationsByUserID(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.reader.QueryContext(ctx, `
		SELECT id, user_id, event_id, type, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}
