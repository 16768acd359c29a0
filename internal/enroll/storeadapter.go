package enroll

import (
	"context"

	"github.com/kozaktomas/eventphoto/internal/store"
)

// StoreAdapter wraps *store.Store to satisfy the Enroller's Store seam.
// AllPersonCentroids, RenamePerson, and RewriteUploadPaths already match
// the narrow interface's shape and are promoted directly through the
// embedded *store.Store; only the three methods whose signatures differ
// (concrete store.Person/store.Enrollment vs. this package's plain types)
// need an explicit translation below.
type StoreAdapter struct {
	*store.Store
}

func (a StoreAdapter) PersonByID(ctx context.Context, personID int64) (PersonRecord, error) {
	p, err := a.Store.PersonByID(ctx, personID)
	if err != nil {
		return PersonRecord{}, err
	}
	return PersonRecord{ID: p.ID, Name: p.Name}, nil
}

func (a StoreAdapter) EnrollmentOfPerson(ctx context.Context, personID int64) (string, bool, error) {
	e, found, err := a.Store.EnrollmentOfPerson(ctx, personID)
	if err != nil || !found {
		return "", found, err
	}
	return e.UserName, true, nil
}

func (a StoreAdapter) CreateEnrollment(ctx context.Context, personID int64, userName, phone, email, selfiePath string, matchConfidence float64, consentGiven bool) (int64, error) {
	return a.Store.CreateEnrollment(ctx, store.Enrollment{
		PersonID:        personID,
		UserName:        userName,
		Phone:           phone,
		Email:           email,
		SelfiePath:      selfiePath,
		MatchConfidence: matchConfidence,
		ConsentGiven:    consentGiven,
	})
}
