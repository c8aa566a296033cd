package reminders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// ============================================================
// Mock Implementations
// ============================================================

// mockDirectory is an in-memory mock of Directory.
type mockDirectory struct {
	siteUsers   []types.User
	users       map[int64]types.User
	admin       *types.User
	courses     map[int64]types.Course
	groups      map[int64]types.Group
	roleIDs     []int64
	roleHolders []types.User
	members     map[int64][]types.User
	hidden      []int64

	siteErr    error
	holdersErr error

	roleSlotCalls    [][]int
	roleHolderCalls  []int64 // course ids passed to RoleHolders
	roleHolderRoles  [][]int64
	availabilityReqs []int64 // course module ids passed to UnavailableUserIDs
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		users:   make(map[int64]types.User),
		courses: make(map[int64]types.Course),
		groups:  make(map[int64]types.Group),
		members: make(map[int64][]types.User),
	}
}

func (m *mockDirectory) SiteRecipients(_ context.Context) ([]types.User, error) {
	if m.siteErr != nil {
		return nil, m.siteErr
	}
	return m.siteUsers, nil
}

func (m *mockDirectory) UserByID(_ context.Context, id int64) (*types.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return &u, nil
}

func (m *mockDirectory) AdminUser(_ context.Context) (*types.User, error) {
	if m.admin == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "no site administrator account", nil)
	}
	return m.admin, nil
}

func (m *mockDirectory) CourseByID(_ context.Context, id int64) (*types.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundCourse, "course not found", nil)
	}
	return &c, nil
}

func (m *mockDirectory) GroupByID(_ context.Context, id int64) (*types.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundGroup, "group not found", nil)
	}
	return &g, nil
}

func (m *mockDirectory) RoleIDsForSlots(_ context.Context, slots []int) ([]int64, error) {
	m.roleSlotCalls = append(m.roleSlotCalls, slots)
	return m.roleIDs, nil
}

func (m *mockDirectory) RoleHolders(_ context.Context, courseID int64, roleIDs []int64) ([]types.User, error) {
	m.roleHolderCalls = append(m.roleHolderCalls, courseID)
	m.roleHolderRoles = append(m.roleHolderRoles, roleIDs)
	if m.holdersErr != nil {
		return nil, m.holdersErr
	}
	return m.roleHolders, nil
}

func (m *mockDirectory) GroupMembers(_ context.Context, groupID int64) ([]types.User, error) {
	return m.members[groupID], nil
}

func (m *mockDirectory) UnavailableUserIDs(_ context.Context, courseModuleID int64, _ []int64) ([]int64, error) {
	m.availabilityReqs = append(m.availabilityReqs, courseModuleID)
	return m.hidden, nil
}

// mockSettings is an in-memory mock of SettingsStore.
type mockSettings struct {
	settings map[int64]types.CourseSettings
	err      error
	calls    int
}

func newMockSettings() *mockSettings {
	return &mockSettings{settings: make(map[int64]types.CourseSettings)}
}

func (m *mockSettings) CourseSettings(_ context.Context, courseID int64) (types.CourseSettings, error) {
	m.calls++
	if m.err != nil {
		return types.CourseSettings{}, m.err
	}
	if s, ok := m.settings[courseID]; ok {
		return s, nil
	}
	return types.DefaultCourseSettings(courseID), nil
}

// mockActivities is an in-memory mock of ActivityData.
type mockActivities struct {
	instance    *types.ModuleInstance
	tags        []string
	hasPlugin   bool
	submitted   []int64
	incomplete  []int64
	unattempted []int64

	instanceErr error
	tagsErr     error

	submittedCalls   int
	submittedWith    []int64
	incompleteCalls  int
	unattemptedCalls int
	pluginCalls      int
}

func (m *mockActivities) ModuleInstance(_ context.Context, _ types.Event) (*types.ModuleInstance, error) {
	if m.instanceErr != nil {
		return nil, m.instanceErr
	}
	if m.instance == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundModule, "module instance not found", nil)
	}
	return m.instance, nil
}

func (m *mockActivities) ModuleTags(_ context.Context, _ int64) ([]string, error) {
	if m.tagsErr != nil {
		return nil, m.tagsErr
	}
	return m.tags, nil
}

func (m *mockActivities) HasSubmissionPlugin(_ context.Context, _ int64) (bool, error) {
	m.pluginCalls++
	return m.hasPlugin, nil
}

func (m *mockActivities) SubmittedUserIDs(_ context.Context, _ int64, userIDs []int64) ([]int64, error) {
	m.submittedCalls++
	m.submittedWith = userIDs
	return m.submitted, nil
}

func (m *mockActivities) IncompleteUserIDs(_ context.Context, _ int64, _ []int64) ([]int64, error) {
	m.incompleteCalls++
	return m.incomplete, nil
}

func (m *mockActivities) ZeroAttemptUserIDs(_ context.Context, _ int64, _ []int64) ([]int64, error) {
	m.unattemptedCalls++
	return m.unattempted, nil
}

// mockTransport records sends and fails for configured recipients.
type mockTransport struct {
	failFor   map[int64]bool // recipient ids whose send errors
	refuseFor map[int64]bool // recipient ids whose send returns false
	sent      []types.ReminderMessage
	calls     int
}

func (m *mockTransport) Send(_ context.Context, msg types.ReminderMessage) (bool, error) {
	m.calls++
	if m.failFor[msg.Recipient.ID] {
		return false, types.NewAppError(types.ErrCodeTransportFailed, "transport unavailable", nil)
	}
	if m.refuseFor[msg.Recipient.ID] {
		return false, nil
	}
	m.sent = append(m.sent, msg)
	return true, nil
}

// ============================================================
// Fixtures
// ============================================================

func discardLogger() types.Logger {
	return types.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() config.ReminderConfig {
	return config.ReminderConfig{
		Enabled:              true,
		FilterEvents:         types.FilterAll,
		SendAs:               types.SendAsNoReply,
		NoReplyAddr:          "noreply@lms.test",
		ActivityMode:         types.ActivityBoth,
		CourseRoles:          "011",
		ActivityRoles:        "001",
		AssignmentEnabled:    true,
		QuizEnabled:          true,
		QuestionnaireEnabled: true,
		TaggingEnabled:       true,
		QuestionnaireTags:    "weekly,pulse",
	}
}

type fixture struct {
	dir        *mockDirectory
	settings   *mockSettings
	activities *mockActivities
	transport  *mockTransport
	svc        *Service
}

func newFixture(cfg config.ReminderConfig) *fixture {
	f := &fixture{
		dir:        newMockDirectory(),
		settings:   newMockSettings(),
		activities: &mockActivities{},
		transport:  &mockTransport{},
	}
	f.svc = NewService(ServiceConfig{
		Reminders:  cfg,
		Directory:  f.dir,
		Settings:   f.settings,
		Activities: f.activities,
		Transport:  f.transport,
		Logger:     discardLogger(),
	})
	return f
}

func user(id int64) types.User {
	return types.User{ID: id, Email: "u@lms.test", FullName: "User"}
}

var eventStart = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// ============================================================
// Tests
// ============================================================

func TestProcess_SendsToResolvedRecipients(t *testing.T) {
	f := newFixture(testConfig())
	f.dir.siteUsers = []types.User{user(2), user(3)}

	ev := types.Event{ID: 1, Name: "maintenance window", Category: types.CategorySite, Start: eventStart}
	outcome, err := f.svc.Process(context.Background(), ev, types.LeadTime{Days: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Sent)
	assert.Zero(t, outcome.Failed)
	assert.False(t, outcome.Filtered)
	require.Len(t, f.transport.sent, 2)
	assert.Equal(t, "noreply@lms.test", f.transport.sent[0].From.Email)
}

func TestProcess_ZeroRecipientsIsFilteredNotError(t *testing.T) {
	f := newFixture(testConfig())

	ev := types.Event{ID: 2, Category: types.CategorySite, Start: eventStart}
	outcome, err := f.svc.Process(context.Background(), ev, types.LeadTime{Days: 1})

	require.NoError(t, err)
	assert.True(t, outcome.Filtered)
	assert.Zero(t, f.transport.calls)
}

func TestProcess_ResolutionErrorIsWrapped(t *testing.T) {
	f := newFixture(testConfig())
	f.dir.siteErr = types.NewAppError(types.ErrCodeInternalDB, "db gone", nil)

	ev := types.Event{ID: 3, Category: types.CategorySite, Start: eventStart}
	_, err := f.svc.Process(context.Background(), ev, types.LeadTime{Days: 1})

	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeResolutionFailed, appErr.Code)
}

func TestSenderIdentity_AdminWithNameOverride(t *testing.T) {
	cfg := testConfig()
	cfg.SendAs = types.SendAsAdmin
	cfg.SendAsName = "Warwick Reminders"
	f := newFixture(cfg)
	f.dir.admin = &types.User{ID: 5, Email: "admin@lms.test", FullName: "Site Admin"}

	identity, err := f.svc.senderIdentity(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(5), identity.UserID)
	assert.Equal(t, "admin@lms.test", identity.Email)
	assert.Equal(t, "Warwick Reminders", identity.DisplayName)
}

func TestSenderIdentity_NoReplyDefault(t *testing.T) {
	f := newFixture(testConfig())

	identity, err := f.svc.senderIdentity(context.Background())

	require.NoError(t, err)
	assert.Zero(t, identity.UserID)
	assert.Equal(t, "noreply@lms.test", identity.Email)
	assert.Equal(t, "Do not reply", identity.DisplayName)
}

func TestRoleIDs_ResolvedOnceAndCached(t *testing.T) {
	f := newFixture(testConfig())
	f.dir.roleIDs = []int64{7, 8}

	_, _, err := f.svc.roleIDs(context.Background())
	require.NoError(t, err)
	_, _, err = f.svc.roleIDs(context.Background())
	require.NoError(t, err)

	// One call per bitmap, not per invocation.
	assert.Len(t, f.dir.roleSlotCalls, 2)
	assert.Equal(t, []int{1, 2}, f.dir.roleSlotCalls[0]) // "011"
	assert.Equal(t, []int{2}, f.dir.roleSlotCalls[1])    // "001"
}
