package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-task-board/internal/model"
)

type roleKey struct{ scopeID, userID uint64 }

type fakeWorkspaceRoles map[roleKey]model.WorkspaceRole

func (f fakeWorkspaceRoles) MemberRole(_ context.Context, workspaceID, userID uint64) (model.WorkspaceRole, error) {
	return f[roleKey{workspaceID, userID}], nil
}

type fakeProjectRoles map[roleKey]model.ProjectRole

func (f fakeProjectRoles) MemberRole(_ context.Context, projectID, userID uint64) (model.ProjectRole, error) {
	return f[roleKey{projectID, userID}], nil
}

const (
	owner       = 1
	member      = 2
	viewer      = 3
	lead        = 4
	contributor = 5
	projViewer  = 6
	outsider    = 99

	wsID   = 10
	projID = 20
)

func testResolver() *Resolver {
	ws := fakeWorkspaceRoles{
		{wsID, owner}:  model.RoleOwner,
		{wsID, member}: model.RoleMember,
		{wsID, viewer}: model.RoleViewer,
	}
	pr := fakeProjectRoles{
		{projID, lead}:        model.RoleProjectLead,
		{projID, contributor}: model.RoleContributor,
		{projID, projViewer}:  model.RoleProjectViewer,
	}
	return NewResolver(ws, pr)
}

func TestWorkspacePredicates(t *testing.T) {
	r := testResolver()
	ctx := context.Background()

	cases := []struct {
		name       string
		userID     uint64
		view, mng  bool
		editsProjs bool
	}{
		{"owner", owner, true, true, true},
		{"member", member, true, false, true},
		{"viewer", viewer, true, false, false},
		{"outsider", outsider, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view, err := r.CanViewWorkspace(ctx, tc.userID, wsID)
			require.NoError(t, err)
			assert.Equal(t, tc.view, view)

			mng, err := r.CanManageWorkspace(ctx, tc.userID, wsID)
			require.NoError(t, err)
			assert.Equal(t, tc.mng, mng)

			edit, err := r.CanEditProjects(ctx, tc.userID, wsID)
			require.NoError(t, err)
			assert.Equal(t, tc.editsProjs, edit)
		})
	}
}

func TestProjectPredicates(t *testing.T) {
	r := testResolver()
	ctx := context.Background()

	cases := []struct {
		name            string
		userID          uint64
		view, mng, edit bool
	}{
		{"lead", lead, true, true, true},
		{"contributor", contributor, true, false, true},
		{"project viewer", projViewer, true, false, false},
		{"outsider", outsider, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view, err := r.CanViewProject(ctx, tc.userID, projID)
			require.NoError(t, err)
			assert.Equal(t, tc.view, view)

			mng, err := r.CanManageProject(ctx, tc.userID, projID)
			require.NoError(t, err)
			assert.Equal(t, tc.mng, mng)

			edit, err := r.CanEditTask(ctx, tc.userID, projID)
			require.NoError(t, err)
			assert.Equal(t, tc.edit, edit)
		})
	}
}

func TestWorkspaceRoleDoesNotLeakIntoProject(t *testing.T) {
	// Workspace OWNER without a project row has no project capabilities;
	// the two tiers are orthogonal.
	r := testResolver()
	ctx := context.Background()

	ok, err := r.CanViewProject(ctx, owner, projID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanEditTask(ctx, owner, projID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(model.StatusAdmin))
	assert.False(t, IsAdmin(model.StatusActive))
	assert.False(t, IsAdmin(model.StatusBanned))
}

func TestContributorCanTouchTask(t *testing.T) {
	assert.True(t, ContributorCanTouchTask(nil, 5), "unassigned task is open to any contributor")
	assert.True(t, ContributorCanTouchTask([]uint64{}, 5))
	assert.True(t, ContributorCanTouchTask([]uint64{3, 5, 9}, 5))
	assert.False(t, ContributorCanTouchTask([]uint64{3, 9}, 5))
}
