package store

import (
	"database/sql"
	"errors"
	"time"
)

// Slide kinds.
const (
	KindUpload = "upload"
	KindDemo   = "demo"
)

// Slide is one stored page of the deck. Data is only populated by Get.
type Slide struct {
	ID        string
	Position  int
	Filename  string
	MIMEType  string
	Kind      string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

// SlideRepository provides ordered access to slides.
type SlideRepository struct {
	db *sql.DB
}

// Slides returns the slide repository for this store.
func (s *Store) Slides() *SlideRepository {
	return &SlideRepository{db: s.db}
}

// Append inserts slides after the current last position in one transaction.
// Position, Size and CreatedAt are set on each slide.
func (r *SlideRepository) Append(slides []*Slide) error {
	if len(slides) == 0 {
		return nil
	}

	return withTx(r.db, func(tx *sql.Tx) error {
		var last int
		if err := tx.QueryRow(`SELECT COALESCE(MAX(position), -1) FROM slides`).Scan(&last); err != nil {
			return err
		}

		now := time.Now()
		for i, sl := range slides {
			sl.Position = last + 1 + i
			sl.Size = int64(len(sl.Data))
			sl.CreatedAt = now
			if sl.Kind == "" {
				sl.Kind = KindUpload
			}

			_, err := tx.Exec(
				`INSERT INTO slides (id, position, filename, mime_type, kind, size, data, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sl.ID, sl.Position, sl.Filename, sl.MIMEType, sl.Kind, sl.Size, sl.Data, sl.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns slide metadata ordered by position. Data is not loaded.
func (r *SlideRepository) List() ([]*Slide, error) {
	rows, err := r.db.Query(
		`SELECT id, position, filename, mime_type, kind, size, created_at
		 FROM slides ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slides []*Slide
	for rows.Next() {
		sl := &Slide{}
		if err := rows.Scan(&sl.ID, &sl.Position, &sl.Filename, &sl.MIMEType, &sl.Kind, &sl.Size, &sl.CreatedAt); err != nil {
			return nil, err
		}
		slides = append(slides, sl)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slides, nil
}

// Get retrieves a slide including its data.
func (r *SlideRepository) Get(id string) (*Slide, error) {
	sl := &Slide{}
	err := r.db.QueryRow(
		`SELECT id, position, filename, mime_type, kind, size, data, created_at
		 FROM slides WHERE id = ?`,
		id,
	).Scan(&sl.ID, &sl.Position, &sl.Filename, &sl.MIMEType, &sl.Kind, &sl.Size, &sl.Data, &sl.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sl, nil
}

// Delete removes a slide and closes the gap it leaves in the ordering.
func (r *SlideRepository) Delete(id string) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		var pos int
		err := tx.QueryRow(`SELECT position FROM slides WHERE id = ?`, id).Scan(&pos)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM slides WHERE id = ?`, id); err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE slides SET position = position - 1 WHERE position > ?`, pos)
		return err
	})
}

// Move relocates the slide at position from to position to, shifting the
// slides in between.
func (r *SlideRepository) Move(from, to int) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM slides`).Scan(&count); err != nil {
			return err
		}
		if from < 0 || from >= count || to < 0 || to >= count {
			return ErrOutOfRange
		}
		if from == to {
			return nil
		}

		var id string
		if err := tx.QueryRow(`SELECT id FROM slides WHERE position = ?`, from).Scan(&id); err != nil {
			return err
		}

		var err error
		if from < to {
			_, err = tx.Exec(`UPDATE slides SET position = position - 1 WHERE position > ? AND position <= ?`, from, to)
		} else {
			_, err = tx.Exec(`UPDATE slides SET position = position + 1 WHERE position >= ? AND position < ?`, to, from)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(`UPDATE slides SET position = ? WHERE id = ?`, to, id)
		return err
	})
}

// Clear deletes every slide.
func (r *SlideRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM slides`)
	return err
}

// Count returns the number of slides.
func (r *SlideRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM slides`).Scan(&n)
	return n, err
}
