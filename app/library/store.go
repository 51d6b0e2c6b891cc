package library

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const authorSeparator = " & "

// Book is one local library record.
type Book struct {
	ID        int64
	UUID      string
	Title     string
	Authors   []string
	Format    string
	Path      string
	AddedAt   time.Time
	UpdatedAt time.Time
}

// Store is the sqlite-backed local library.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to library database: %w", err)
	}
	// sqlite handles one writer at a time
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add registers a book, returning its row id.
func (s *Store) Add(book Book) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(`
		INSERT INTO books (uuid, title, authors, format, path, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, book.UUID, book.Title, strings.Join(book.Authors, authorSeparator),
		book.Format, book.Path, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert book: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted book id: %w", err)
	}
	return id, nil
}

// All returns every book in the library ordered by row id.
func (s *Store) All() ([]Book, error) {
	rows, err := s.db.Query(`
		SELECT id, uuid, title, authors, format, path, added_at, updated_at
		FROM books
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Snapshot loads the current library contents into an immutable Index.
func (s *Store) Snapshot() (*Index, error) {
	books, err := s.All()
	if err != nil {
		return nil, err
	}
	return NewIndex(books), nil
}

// FindMatches returns the books identical to the given entry: an exact
// identifier match when uuid is set, otherwise title/author matches taken
// one author at a time.
func (s *Store) FindMatches(uuid, title string, authors []string) ([]Book, error) {
	if uuid != "" {
		books, err := s.findByUUID(uuid)
		if err != nil || len(books) > 0 {
			return books, err
		}
	}

	all, err := s.All()
	if err != nil {
		return nil, err
	}

	var matches []Book
	for _, book := range all {
		for _, author := range authors {
			if book.matchesTitleAuthor(title, author) {
				matches = append(matches, book)
				break
			}
		}
	}
	return matches, nil
}

// SetTimestamp updates a book's metadata timestamp. Idempotent.
func (s *Store) SetTimestamp(id int64, timestamp time.Time) error {
	_, err := s.db.Exec(`
		UPDATE books SET updated_at = ? WHERE id = ?
	`, timestamp.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update book timestamp: %w", err)
	}
	return nil
}

func (s *Store) findByUUID(uuid string) ([]Book, error) {
	rows, err := s.db.Query(`
		SELECT id, uuid, title, authors, format, path, added_at, updated_at
		FROM books
		WHERE uuid = ?
	`, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query books by uuid: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (b Book) matchesTitleAuthor(title, author string) bool {
	if Normalize(b.Title) != Normalize(title) {
		return false
	}
	for _, bookAuthor := range b.Authors {
		if Normalize(bookAuthor) == Normalize(author) {
			return true
		}
	}
	return false
}

func scanBook(rows *sql.Rows) (Book, error) {
	var book Book
	var authors string
	if err := rows.Scan(&book.ID, &book.UUID, &book.Title, &authors,
		&book.Format, &book.Path, &book.AddedAt, &book.UpdatedAt); err != nil {
		return Book{}, fmt.Errorf("failed to scan book: %w", err)
	}
	if authors != "" {
		book.Authors = strings.Split(authors, authorSeparator)
	}
	return book, nil
}
