package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/models"
)

func testTransfer(store *fakeStore) *Transfer {
	return NewTransfer(store, zap.NewNop().Sugar())
}

func transferEntry(school *models.School) *models.LogEntry {
	return &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetUser,
		Origin:   models.OriginCron,
	}
}

func TestReconcileFreshEnrolment(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	// Transfer-in disabled: must not matter for a first enrolment.
	school := store.addSchool(123, "Kea School", false, false)
	group := store.addLinkedGroup(school, "77", "Kea")
	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})

	code, err := testTransfer(store).Reconcile(ctx, school, group.ID, "12345", userID, transferEntry(school))
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.True(t, store.cohortMembers[school.CohortID][userID])
	assert.True(t, store.groupMembers[group.ID][userID])
}

func TestReconcileTransferBothSidesAgree(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	oldSchool := store.addSchool(111, "Old School", true, true)
	oldGroup := store.addLinkedGroup(oldSchool, "10", "Old School Room 1")
	newSchool := store.addSchool(222, "New School", true, true)
	newGroup := store.addLinkedGroup(newSchool, "20", "Kea")

	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})
	_ = store.AddCohortMember(ctx, oldSchool.CohortID, userID)
	_ = store.AddGroupMember(ctx, oldGroup.ID, userID)

	code, err := testTransfer(store).Reconcile(ctx, newSchool, newGroup.ID, "12345", userID, transferEntry(newSchool))
	require.NoError(t, err)
	assert.Empty(t, code)

	assert.False(t, store.cohortMembers[oldSchool.CohortID][userID])
	assert.False(t, store.groupMembers[oldGroup.ID][userID])
	assert.True(t, store.cohortMembers[newSchool.CohortID][userID])
	assert.True(t, store.groupMembers[newGroup.ID][userID])
}

func TestReconcileTransferOutBlocked(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	oldSchool := store.addSchool(111, "Old School", true, false)
	newSchool := store.addSchool(222, "New School", true, true)
	newGroup := store.addLinkedGroup(newSchool, "20", "Kea")

	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})
	_ = store.AddCohortMember(ctx, oldSchool.CohortID, userID)

	code, err := testTransfer(store).Reconcile(ctx, newSchool, newGroup.ID, "12345", userID, transferEntry(newSchool))
	require.NoError(t, err)
	assert.Equal(t, ErrDuplicate, code)

	// Old membership retained, new one never made.
	assert.True(t, store.cohortMembers[oldSchool.CohortID][userID])
	assert.False(t, store.cohortMembers[newSchool.CohortID][userID])
	require.Len(t, store.logsWithError(ErrDuplicate), 1)
}

func TestReconcileTransferInBlocked(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	oldSchool := store.addSchool(111, "Old School", true, true)
	newSchool := store.addSchool(222, "New School", false, true)
	newGroup := store.addLinkedGroup(newSchool, "20", "Kea")

	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})
	_ = store.AddCohortMember(ctx, oldSchool.CohortID, userID)

	code, err := testTransfer(store).Reconcile(ctx, newSchool, newGroup.ID, "12345", userID, transferEntry(newSchool))
	require.NoError(t, err)
	assert.Equal(t, ErrNoRegister, code)

	// The release happened but the destination refused the user.
	assert.False(t, store.cohortMembers[oldSchool.CohortID][userID])
	assert.False(t, store.cohortMembers[newSchool.CohortID][userID])
	require.Len(t, store.logsWithError(ErrNoRegister), 1)
}

func TestReconcileUnknownSourceCohort(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	newSchool := store.addSchool(222, "New School", true, true)
	newGroup := store.addLinkedGroup(newSchool, "20", "Kea")

	// A cohort with no school behind it.
	strayCohort, _ := store.CreateCohort(ctx, "Manual Cohort")
	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})
	_ = store.AddCohortMember(ctx, strayCohort, userID)

	entry := transferEntry(newSchool)
	code, err := testTransfer(store).Reconcile(ctx, newSchool, newGroup.ID, "12345", userID, entry)
	require.NoError(t, err)
	assert.Equal(t, ErrDuplicate, code)
	assert.True(t, store.cohortMembers[strayCohort][userID])
	assert.Contains(t, entry.Info["transferout"], "0 (")
}

func TestReconcileCronGroupOwnershipGuard(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	school := store.addSchool(123, "Kea School", true, true)
	other := store.addSchool(456, "Other School", true, true)
	foreignGroup := store.addLinkedGroup(other, "77", "Kea")
	userID, _ := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "12345", Auth: models.AuthAPI})

	code, err := testTransfer(store).Reconcile(ctx, school, foreignGroup.ID, "12345", userID, transferEntry(school))
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.False(t, store.cohortMembers[school.CohortID][userID])
	assert.False(t, store.groupMembers[foreignGroup.ID][userID])
}
