// Package repository provides the SQL-backed CRUD surface for users, rooms,
// and archived messages (§6), backed by pgx against Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserExists is returned by CreateUser when the username is already taken.
var ErrUserExists = errors.New("repository: user already exists")

// ErrUserNotFound is returned by LookupUser when no such username exists.
var ErrUserNotFound = errors.New("repository: user not found")

// ErrRoomNotFound is returned by RoomByID when no such room exists.
var ErrRoomNotFound = errors.New("repository: room not found")

// ErrDuplicateMessage is returned by InsertMessage on a client message id
// collision (§3 ArchivedMessage unique constraint).
var ErrDuplicateMessage = errors.New("repository: duplicate message id")

const uniqueViolation = "23505"

// User mirrors the USERS row (§6).
type User struct {
	Username string
	Derived  []byte
	Salt     []byte
}

// Room mirrors the ROOMS row (§6).
type Room struct {
	ID   []byte
	Name string
}

// ArchivedMessage mirrors one ARCHIVE row (§3).
type ArchivedMessage struct {
	SeqID     int64
	Timestamp int64
	MessageID []byte
	RoomID    []byte
	SenderID  string
	Content   string
}

// Repository wraps a pgx connection pool and exposes the three tables as
// typed operations.
type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres using dsn and pings it. It does not check the
// schema; EnsureSchema creates the tables.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// EnsureSchema creates the USERS, ROOMS, and ARCHIVE tables (§6) if they
// do not already exist, for local/dev bootstrap.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS USERS (
	username TEXT UNIQUE NOT NULL,
	derived  BYTEA UNIQUE NOT NULL,
	salt     BYTEA UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS ROOMS (
	id   BYTEA UNIQUE NOT NULL,
	name TEXT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS ARCHIVE (
	id         SERIAL PRIMARY KEY,
	timestamp  BIGINT NOT NULL,
	id_message BYTEA UNIQUE NOT NULL,
	id_room    BYTEA NOT NULL,
	id_sender  TEXT NOT NULL,
	content    TEXT NOT NULL
);`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("repository: ensure schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new USERS row. Returns ErrUserExists on a unique
// constraint violation of username.
func (r *Repository) CreateUser(ctx context.Context, username string, derived, salt []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO USERS (username, derived, salt) VALUES ($1, $2, $3)`,
		username, derived, salt)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("repository: create user: %w", err)
	}
	return nil
}

// LookupUser fetches a USERS row by username.
func (r *Repository) LookupUser(ctx context.Context, username string) (*User, error) {
	var u User
	u.Username = username
	err := r.pool.QueryRow(ctx,
		`SELECT derived, salt FROM USERS WHERE username = $1`, username,
	).Scan(&u.Derived, &u.Salt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: lookup user: %w", err)
	}
	return &u, nil
}

// RoomByID fetches a ROOMS row by its opaque id.
func (r *Repository) RoomByID(ctx context.Context, id []byte) (*Room, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT name FROM ROOMS WHERE id = $1`, id,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: room by id: %w", err)
	}
	return &Room{ID: id, Name: name}, nil
}

// ListRooms returns every provisioned room, for the Established packet's
// room listing (§6).
func (r *Repository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM ROOMS ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name); err != nil {
			return nil, fmt.Errorf("repository: scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list rooms: %w", err)
	}
	return rooms, nil
}

// InsertMessage appends a new ARCHIVE row and returns its assigned
// sequence id. Returns ErrDuplicateMessage on a client message id
// collision (§3, §4.3 Message handler, §7 protocol fault).
func (r *Repository) InsertMessage(ctx context.Context, timestamp int64, messageID, roomID []byte, senderID, content string) (int64, error) {
	var seqID int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ARCHIVE (timestamp, id_message, id_room, id_sender, content)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		timestamp, messageID, roomID, senderID, content,
	).Scan(&seqID)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateMessage
	}
	if err != nil {
		return 0, fmt.Errorf("repository: insert message: %w", err)
	}
	return seqID, nil
}

// SeqIDForMessage resolves a client-supplied message id to its archive
// sequence id, used to anchor Synchronize's "strictly greater than"
// cursor (§4.3). A last_seen_id with no matching row is treated as
// cursor 0, i.e. "replay everything" (SPEC_FULL.md §5 clarification).
func (r *Repository) SeqIDForMessage(ctx context.Context, messageID []byte) (int64, error) {
	if len(messageID) == 0 {
		return 0, nil
	}
	var seqID int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM ARCHIVE WHERE id_message = $1`, messageID,
	).Scan(&seqID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repository: seq id for message: %w", err)
	}
	return seqID, nil
}

// ListSince returns every ArchivedMessage in roomID with sequence id
// strictly greater than afterSeqID, in ascending order (§4.3 Synchronize).
func (r *Repository) ListSince(ctx context.Context, roomID []byte, afterSeqID int64) ([]ArchivedMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, id_message, id_room, id_sender, content
		 FROM ARCHIVE WHERE id_room = $1 AND id > $2 ORDER BY id ASC`,
		roomID, afterSeqID)
	if err != nil {
		return nil, fmt.Errorf("repository: list since: %w", err)
	}
	defer rows.Close()

	var messages []ArchivedMessage
	for rows.Next() {
		var m ArchivedMessage
		if err := rows.Scan(&m.SeqID, &m.Timestamp, &m.MessageID, &m.RoomID, &m.SenderID, &m.Content); err != nil {
			return nil, fmt.Errorf("repository: scan archived message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list since: %w", err)
	}
	return messages, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
