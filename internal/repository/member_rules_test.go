package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/team-task-board/internal/model"
)

func TestGuardWorkspaceMemberChange(t *testing.T) {
	assert.ErrorIs(t, guardWorkspaceMemberChange(""), ErrNotFound)
	assert.ErrorIs(t, guardWorkspaceMemberChange(model.RoleOwner), ErrOwnerImmutable)
	assert.NoError(t, guardWorkspaceMemberChange(model.RoleMember))
	assert.NoError(t, guardWorkspaceMemberChange(model.RoleViewer))
}

func TestGuardProjectMemberChange(t *testing.T) {
	assert.ErrorIs(t, guardProjectMemberChange(""), ErrNotFound)
	assert.ErrorIs(t, guardProjectMemberChange(model.RoleProjectLead), ErrOwnerImmutable)
	assert.NoError(t, guardProjectMemberChange(model.RoleContributor))
	assert.NoError(t, guardProjectMemberChange(model.RoleProjectViewer))
}

func TestClassifyMemberInsertErr(t *testing.T) {
	assert.NoError(t, classifyMemberInsertErr(nil))

	dup := errors.New("Error 1062 (23000): Duplicate entry '1-2' for key 'workspace_members.workspace_id'")
	assert.ErrorIs(t, classifyMemberInsertErr(dup), ErrDuplicateMember)

	fk := errors.New("Error 1452 (23000): Cannot add or update a child row: a foreign key constraint fails")
	assert.ErrorIs(t, classifyMemberInsertErr(fk), ErrNotFound)

	other := errors.New("Error 1205 (HY000): Lock wait timeout exceeded")
	assert.Equal(t, other, classifyMemberInsertErr(other))
}
