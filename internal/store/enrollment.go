package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/engineerr"
)

// Enrollment records a self-service consent check-in that linked a guest's
// selfie to a Person cluster.
type Enrollment struct {
	ID              int64
	PersonID        int64
	UserName        string
	Phone           string
	Email           string
	SelfiePath      string
	MatchConfidence float64
	ConsentGiven    bool
	CreatedAt       time.Time
}

// CreateEnrollment records a new Enrollment for a Person. A Person may have
// at most one Enrollment, enforced by the enrollments.person_id UNIQUE
// constraint.
func (s *Store) CreateEnrollment(ctx context.Context, e Enrollment) (int64, error) {
	var id int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO enrollments (person_id, user_name, phone, email, selfie_path, match_confidence, consent_given, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.PersonID, e.UserName, e.Phone, e.Email, e.SelfiePath, e.MatchConfidence, boolToInt(e.ConsentGiven), nowUnix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: creating enrollment: %v", engineerr.ErrStoreFailed, err)
	}
	return id, nil
}

// EnrollmentOfPerson returns the Enrollment for a Person, if any.
func (s *Store) EnrollmentOfPerson(ctx context.Context, personID int64) (Enrollment, bool, error) {
	var e Enrollment
	var consent int
	var createdAt int64
	found := true
	err := withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, person_id, user_name, phone, email, selfie_path, match_confidence, consent_given, created_at
			 FROM enrollments WHERE person_id = ?`, personID)
		scanErr := row.Scan(&e.ID, &e.PersonID, &e.UserName, &e.Phone, &e.Email, &e.SelfiePath, &e.MatchConfidence, &consent, &createdAt)
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		return scanErr
	})
	if err != nil {
		return Enrollment{}, false, fmt.Errorf("%w: reading enrollment: %v", engineerr.ErrStoreFailed, err)
	}
	if !found {
		return Enrollment{}, false, nil
	}
	e.ConsentGiven = consent != 0
	e.CreatedAt = time.Unix(createdAt, 0)
	return e, true, nil
}

// IsEnrolled reports whether a Person already has an Enrollment.
func (s *Store) IsEnrolled(ctx context.Context, personID int64) (bool, error) {
	var exists bool
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM enrollments WHERE person_id = ?)", personID).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking enrollment: %v", engineerr.ErrStoreFailed, err)
	}
	return exists, nil
}

// AllEnrollments lists every Enrollment, for operator reporting.
func (s *Store) AllEnrollments(ctx context.Context) ([]Enrollment, error) {
	var enrollments []Enrollment
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, person_id, user_name, phone, email, selfie_path, match_confidence, consent_given, created_at
			 FROM enrollments ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		enrollments = nil
		for rows.Next() {
			var e Enrollment
			var consent int
			var createdAt int64
			if err := rows.Scan(&e.ID, &e.PersonID, &e.UserName, &e.Phone, &e.Email, &e.SelfiePath,
				&e.MatchConfidence, &consent, &createdAt); err != nil {
				return err
			}
			e.ConsentGiven = consent != 0
			e.CreatedAt = time.Unix(createdAt, 0)
			enrollments = append(enrollments, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing enrollments: %v", engineerr.ErrStoreFailed, err)
	}
	return enrollments, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
