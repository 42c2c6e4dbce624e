package enrollment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s/enrollmentService/internal/clients"
	"github.com/s/enrollmentService/internal/database"
	"github.com/s/enrollmentService/internal/models"
	"github.com/s/enrollmentService/internal/storage"
)

type fakeDirectory struct {
	students map[string]bool
	err      error
	calls    int
}

func (d *fakeDirectory) StudentExists(_ context.Context, studentID string) (bool, error) {
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	return d.students[studentID], nil
}

type countPush struct {
	courseID string
	enrolled int
}

type fakeCatalog struct {
	mu        sync.Mutex
	courses   map[string]clients.CourseSnapshot
	lookupErr error
	pushErr   error
	pushes    []countPush

	// pushCtxErrs holds ctx.Err() as seen by each push.
	pushCtxErrs []error
}

func (c *fakeCatalog) GetCourseByCode(_ context.Context, code string) (clients.CourseSnapshot, error) {
	if c.lookupErr != nil {
		return clients.CourseSnapshot{}, c.lookupErr
	}
	course, ok := c.courses[code]
	if !ok {
		return clients.CourseSnapshot{}, clients.ErrCourseNotFound
	}
	return course, nil
}

func (c *fakeCatalog) UpdateEnrolledCount(ctx context.Context, courseID string, enrolled int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, countPush{courseID: courseID, enrolled: enrolled})
	c.pushCtxErrs = append(c.pushCtxErrs, ctx.Err())
	return c.pushErr
}

type testEnv struct {
	service   *Service
	store     *storage.EnrollmentStore
	syncLog   *storage.SyncLogStore
	directory *fakeDirectory
	catalog   *fakeCatalog
}

func newTestEnv(t *testing.T, course clients.CourseSnapshot) *testEnv {
	t.Helper()

	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "enrollment.db")))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	env := &testEnv{
		store:     storage.NewEnrollmentStore(db),
		syncLog:   storage.NewSyncLogStore(db),
		directory: &fakeDirectory{students: map[string]bool{"S1": true, "S2": true}},
		catalog:   &fakeCatalog{courses: map[string]clients.CourseSnapshot{course.Code: course}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.service = NewService(env.store, env.directory, env.catalog, env.syncLog, logger)
	return env
}

func cs101(capacity, enrolled int) clients.CourseSnapshot {
	return clients.CourseSnapshot{ID: "c1", Code: "CS101", Capacity: capacity, Enrolled: enrolled}
}

func TestEnrollStudent_Success(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	ctx := context.Background()

	enrollment, err := env.service.EnrollStudent(ctx, "CS101", "S1")

	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, "c1", enrollment.CourseID)
	assert.Equal(t, "S1", enrollment.StudentID)
	assert.Equal(t, models.StatusActive, enrollment.Status)

	stored, err := env.store.FindByCourseID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "S1", stored[0].StudentID)
	assert.Equal(t, models.StatusActive, stored[0].Status)

	assert.Equal(t, []countPush{{courseID: "c1", enrolled: 1}}, env.catalog.pushes)

	attempts, err := env.syncLog.ListByCourse(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Succeeded)
	assert.Equal(t, models.SyncOperationEnroll, attempts[0].Operation)
	assert.Equal(t, enrollment.ID, attempts[0].EnrollmentID)
}

func TestEnrollStudent_MissingInput(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))

	_, err := env.service.EnrollStudent(context.Background(), " ", "S1")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, env.directory.calls)
}

func TestEnrollStudent_StudentNotFound(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))

	_, err := env.service.EnrollStudent(context.Background(), "CS101", "S404")

	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
	assertNoEnrollments(t, env)
}

func TestEnrollStudent_DirectoryUnavailable(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	env.directory.err = clients.ErrDirectoryUnavailable

	_, err := env.service.EnrollStudent(context.Background(), "CS101", "S1")

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrStudentNotFound)
	assert.ErrorIs(t, err, clients.ErrDirectoryUnavailable)
	assertNoEnrollments(t, env)
}

func TestEnrollStudent_CourseNotFound(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))

	_, err := env.service.EnrollStudent(context.Background(), "MATH1", "S1")

	assert.ErrorIs(t, err, ErrCourseNotFound)
	assertNoEnrollments(t, env)
}

func TestEnrollStudent_CatalogUnavailable(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	env.catalog.lookupErr = clients.ErrCatalogUnavailable

	_, err := env.service.EnrollStudent(context.Background(), "CS101", "S1")

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assertNoEnrollments(t, env)
}

func TestEnrollStudent_CourseFull(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		enrolled int
	}{
		{name: "at capacity", capacity: 2, enrolled: 2},
		{name: "over capacity", capacity: 2, enrolled: 5},
		{name: "zero capacity", capacity: 0, enrolled: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, cs101(tt.capacity, tt.enrolled))

			_, err := env.service.EnrollStudent(context.Background(), "CS101", "S1")

			assert.ErrorIs(t, err, ErrCourseFull)
			assert.Equal(t, KindConflict, KindOf(err))
			assertNoEnrollments(t, env)
			assert.Empty(t, env.catalog.pushes)
		})
	}
}

func TestEnrollStudent_Duplicate(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	ctx := context.Background()

	_, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)

	_, err = env.service.EnrollStudent(ctx, "CS101", "S1")

	assert.ErrorIs(t, err, ErrDuplicateEnrollment)
	count, err := env.store.CountActive(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnrollStudent_ReenrollAfterDrop(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	ctx := context.Background()

	first, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)
	require.NoError(t, env.service.UnenrollStudent(ctx, first.ID))

	second, err := env.service.EnrollStudent(ctx, "CS101", "S1")

	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := env.store.FindByStudentID(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestEnrollStudent_SyncFailureKeepsEnrollment(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	env.catalog.pushErr = errors.New("catalog rejected update")
	ctx := context.Background()

	enrollment, err := env.service.EnrollStudent(ctx, "CS101", "S1")

	require.NoError(t, err)
	found, err := env.store.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, found.Status)

	attempts, err := env.syncLog.ListByCourse(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Succeeded)
	assert.Contains(t, attempts[0].Error, "catalog rejected update")
}

// duplicateRaceStore reports no existing enrollment so the save hits the
// unique index, as a concurrent request would.
type duplicateRaceStore struct {
	*storage.EnrollmentStore
}

func (duplicateRaceStore) ExistsActive(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestEnrollStudent_UniqueIndexReportsDuplicate(t *testing.T) {
	env := newTestEnv(t, cs101(5, 0))
	ctx := context.Background()
	_, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)

	racy := NewService(duplicateRaceStore{env.store}, env.directory, env.catalog, nil, env.service.logger)
	_, err = racy.EnrollStudent(ctx, "CS101", "S1")

	assert.ErrorIs(t, err, ErrDuplicateEnrollment)
}

// cancelAfterSaveStore cancels the request context once a save commits,
// like a client that hangs up while the response is being prepared.
type cancelAfterSaveStore struct {
	*storage.EnrollmentStore
	cancel context.CancelFunc
}

func (s cancelAfterSaveStore) Save(ctx context.Context, enrollment *models.Enrollment) error {
	if err := s.EnrollmentStore.Save(ctx, enrollment); err != nil {
		return err
	}
	s.cancel()
	return nil
}

func TestEnrollStudent_SyncSurvivesCancelAfterCommit(t *testing.T) {
	env := newTestEnv(t, cs101(5, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewService(cancelAfterSaveStore{env.store, cancel}, env.directory, env.catalog, env.syncLog, env.service.logger)
	enrollment, err := svc.EnrollStudent(ctx, "CS101", "S1")

	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, []countPush{{courseID: "c1", enrolled: 1}}, env.catalog.pushes)
	assert.Equal(t, []error{nil}, env.catalog.pushCtxErrs)

	attempts, err := env.syncLog.ListByCourse(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Succeeded)
	assert.Equal(t, enrollment.ID, attempts[0].EnrollmentID)
}

func TestUnenrollStudent_SyncSurvivesCancelAfterCommit(t *testing.T) {
	env := newTestEnv(t, cs101(5, 0))
	first, err := env.service.EnrollStudent(context.Background(), "CS101", "S1")
	require.NoError(t, err)
	_, err = env.service.EnrollStudent(context.Background(), "CS101", "S2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(cancelAfterSaveStore{env.store, cancel}, env.directory, env.catalog, env.syncLog, env.service.logger)

	require.NoError(t, svc.UnenrollStudent(ctx, first.ID))
	require.Error(t, ctx.Err())

	require.Len(t, env.catalog.pushes, 3)
	assert.Equal(t, countPush{courseID: "c1", enrolled: 1}, env.catalog.pushes[2])
	assert.NoError(t, env.catalog.pushCtxErrs[2])

	attempts, err := env.syncLog.ListByCourse(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, models.SyncOperationUnenroll, attempts[0].Operation)
	assert.Equal(t, first.ID, attempts[0].EnrollmentID)
	assert.Equal(t, 1, attempts[0].RequestedCount)
}

func TestUnenrollStudent_DropsAndSyncsActiveCount(t *testing.T) {
	env := newTestEnv(t, cs101(5, 0))
	ctx := context.Background()

	first, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)
	_, err = env.service.EnrollStudent(ctx, "CS101", "S2")
	require.NoError(t, err)

	before, err := env.service.GetCourseEnrollmentCount(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, env.service.UnenrollStudent(ctx, first.ID))

	found, err := env.store.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDropped, found.Status)

	after, err := env.service.GetCourseEnrollmentCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	last := env.catalog.pushes[len(env.catalog.pushes)-1]
	assert.Equal(t, countPush{courseID: "c1", enrolled: after}, last)
}

func TestUnenrollStudent_SecondCallNotActive(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	ctx := context.Background()

	enrollment, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)
	require.NoError(t, env.service.UnenrollStudent(ctx, enrollment.ID))

	err = env.service.UnenrollStudent(ctx, enrollment.ID)

	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUnenrollStudent_NotFound(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))

	err := env.service.UnenrollStudent(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
	assert.Empty(t, env.catalog.pushes)
}

func TestUnenrollStudent_SyncFailureKeepsDrop(t *testing.T) {
	env := newTestEnv(t, cs101(2, 0))
	ctx := context.Background()

	enrollment, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)
	env.catalog.pushErr = clients.ErrCatalogUnavailable

	require.NoError(t, env.service.UnenrollStudent(ctx, enrollment.ID))

	found, err := env.store.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDropped, found.Status)
}

func TestReadOperations(t *testing.T) {
	env := newTestEnv(t, cs101(5, 0))
	ctx := context.Background()

	first, err := env.service.EnrollStudent(ctx, "CS101", "S1")
	require.NoError(t, err)
	_, err = env.service.EnrollStudent(ctx, "CS101", "S2")
	require.NoError(t, err)
	require.NoError(t, env.service.UnenrollStudent(ctx, first.ID))

	all, err := env.service.GetAllEnrollments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCourse, err := env.service.GetEnrollmentsByCourseID(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, byCourse, 2)

	byStudent, err := env.service.GetEnrollmentsByStudentID(ctx, "S2")
	require.NoError(t, err)
	assert.Len(t, byStudent, 1)

	count, err := env.service.GetCourseEnrollmentCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	enrolled, err := env.service.IsStudentEnrolled(ctx, "c1", "S1")
	require.NoError(t, err)
	assert.False(t, enrolled)

	enrolled, err = env.service.IsStudentEnrolled(ctx, "c1", "S2")
	require.NoError(t, err)
	assert.True(t, enrolled)

	has, err := env.service.HasStudentEnrollments(ctx, "S1")
	require.NoError(t, err)
	assert.False(t, has)
}

func assertNoEnrollments(t *testing.T, env *testEnv) {
	t.Helper()

	all, err := env.store.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
