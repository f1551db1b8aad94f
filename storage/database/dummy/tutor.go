package dummydb

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

type tutorRepository struct {
	db *tutorTable
}

var _ tutor.Repository = (*tutorRepository)(nil) // interface compliance check

func NewTutorRepository(db *DB) tutor.Repository {
	return &tutorRepository{db: db.tutor}
}

func (repo *tutorRepository) query() []tutor.Tutor {
	tutors := make([]tutor.Tutor, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tutors = append(tutors, *t)
	}
	sort.Slice(tutors, func(i, j int) bool { return tutors[i].CreatedAt.Before(tutors[j].CreatedAt) })
	return tutors
}

func (repo *tutorRepository) CheckUsernameUniqueness(username, email string, excluded ...tutor.Tutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclLen := len(excluded)
	if exclLen > 1 {
		sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })
	}

	for _, t := range repo.query() {
		if t.Username == username && !isExcluded(t, excluded, exclLen) {
			return tutor.ErrUsernameExists
		}
		if t.Email == email && !isExcluded(t, excluded, exclLen) {
			return tutor.ErrEmailExists
		}
	}
	return nil
}

func (repo *tutorRepository) CreateTutor(t tutor.Tutor) (tutor.Tutor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *tutorRepository) QueryAllTutors() ([]tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *tutorRepository) GetTutorByID(id string) (tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) GetTutorByUsername(username string) (tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.query() {
		if t.Username == username {
			return t, nil
		}
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) GetTutorByEmail(email string) (tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.query() {
		if t.Email == email {
			return t, nil
		}
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) GetTutorByUsernameOrEmail(username string) (tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.query() {
		if (t.Username == username) || (t.Email == username) {
			return t, nil
		}
	}
	return tutor.Tutor{}, tutor.ErrNotFound
}

func (repo *tutorRepository) FilterTutors(filter tutor.QueryFilter) ([]tutor.Tutor, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tutors := repo.query()

	// tutors with search keyword matching any Name, Username or Email ?
	if filter.Search != "" {
		var filtered []tutor.Tutor
		for _, t := range tutors {
			if strings.Contains(strings.ToLower(t.Username), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(t.Email), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter.Search)) {
				filtered = append(filtered, t)
			}
		}
		tutors = filtered
	}
	// tutors with any of the specified roles
	if tutors != nil && len(filter.Roles) > 0 {
		var filtered []tutor.Tutor
		for _, t := range tutors {
			for _, r := range filter.Roles {
				if t.RoleStartsWith(r) {
					filtered = append(filtered, t)
					break
				}
			}
		}
		tutors = filtered
	}
	if tutors != nil && filter.IsActive != nil {
		var filtered []tutor.Tutor
		for _, t := range tutors {
			if t.IsActive == *filter.IsActive {
				filtered = append(filtered, t)
			}
		}
		tutors = filtered
	}
	if tutors != nil && !filter.CreatedFrom.IsZero() {
		var filtered []tutor.Tutor
		timeUTC := filter.CreatedFrom.UTC()
		for _, t := range tutors {
			if t.CreatedAt.Equal(timeUTC) || t.CreatedAt.After(timeUTC) {
				filtered = append(filtered, t)
			}
		}
		tutors = filtered
	}
	if tutors != nil && !filter.CreatedTo.IsZero() {
		var filtered []tutor.Tutor
		timeUTC := filter.CreatedTo.UTC()
		for _, t := range tutors {
			if t.CreatedAt.Before(timeUTC) || t.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, t)
			}
		}
		tutors = filtered
	}

	return tutors, nil
}

func (repo *tutorRepository) UpdateTutor(t tutor.Tutor, isActive *bool) (tutor.Tutor, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[t.ID]
	if !ok {
		return tutor.Tutor{}, tutor.ErrNotFound
	}
	if t.Roles != nil {
		orig.Roles = t.Roles
	}
	if t.PasswordHash != nil {
		orig.PasswordHash = t.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	if t.Name != "" {
		orig.Name = t.Name
	}
	if t.Username != "" {
		orig.Username = t.Username
	}
	if t.Email != "" {
		orig.Email = t.Email
	}
	if t.Phone != "" {
		orig.Phone = t.Phone
	}
	orig.UpdatedAt = t.UpdatedAt

	repo.db.table[t.ID] = orig
	return *orig, nil
}

func (repo *tutorRepository) SetLastLogin(id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return tutor.ErrNotFound
	}
	t.LastLogin = at
	return nil
}

func (repo *tutorRepository) DeleteTutorsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func isExcluded(t tutor.Tutor, excluded []tutor.Tutor, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excluded[i].ID >= t.ID })
	return idx < n && excluded[idx].ID == t.ID
}
