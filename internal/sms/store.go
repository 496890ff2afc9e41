package sms

import (
	"context"

	"github.com/kauri-edtech/smssync/internal/models"
)

// Store is the record store the sync core mutates. The Postgres
// implementation lives in internal/db; tests use an in-memory fake.
type Store interface {
	SchoolStore
	GroupStore
	UserStore
	MembershipStore
	LogStore
}

type SchoolStore interface {
	// EligibleSchools returns all non-suspended schools.
	EligibleSchools(ctx context.Context) ([]models.School, error)
	SchoolByCohortID(ctx context.Context, cohortID int64) (*models.School, error)
	SchoolByID(ctx context.Context, id int64) (*models.School, error)
	InsertSchool(ctx context.Context, s *models.School) (int64, error)
	UpdateSchool(ctx context.Context, s *models.School) error
	DeleteSchool(ctx context.Context, id int64) error
	VendorConfig(ctx context.Context, id int64) (*models.VendorConfig, error)
}

type GroupStore interface {
	// LinkedGroups returns the school's linked groups keyed by group
	// idnumber. Groups with a blank idnumber are excluded.
	LinkedGroups(ctx context.Context, schoolID int64) (map[string]string, error)
	// LinkedGroupIDs returns the internal ids of the school's linked groups.
	LinkedGroupIDs(ctx context.Context, schoolID int64) ([]int64, error)
	GroupByID(ctx context.Context, id int64) (*models.Group, error)
	GroupByIDNumber(ctx context.Context, courseID int64, idnumber string) (*models.Group, error)
	// GroupBySchoolIDNumber resolves a group idnumber inside one school's
	// link set, so identically keyed vendor groups of two schools cannot
	// collide.
	GroupBySchoolIDNumber(ctx context.Context, schoolID int64, idnumber string) (*models.Group, error)
	GroupByName(ctx context.Context, courseID int64, name string) (*models.Group, error)
	CreateGroup(ctx context.Context, g *models.Group) (int64, error)
	UpdateGroup(ctx context.Context, g *models.Group) error
	DeleteGroup(ctx context.Context, id int64) error
	LinkGroup(ctx context.Context, schoolID, groupID int64) error
	UnlinkGroup(ctx context.Context, schoolID, groupID int64) error
	// GroupSchoolID returns the id of the school a group is linked to,
	// or 0 when it is not an SMS-owned group.
	GroupSchoolID(ctx context.Context, groupID int64) (int64, error)
	// IsParentGroup reports whether the group is a reserved parent
	// cohort-linkage group that the sync must never touch.
	IsParentGroup(ctx context.Context, groupID int64) (bool, error)
}

type UserStore interface {
	// UsersByIDNumbers returns active users matching any identifier
	// variant, in retrieval (id) order.
	UsersByIDNumbers(ctx context.Context, idnumbers []string) ([]models.User, error)
	UserIDByIDNumberAuth(ctx context.Context, idnumber, auth string) (int64, error)
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	// CountUsernameClashes counts users whose username starts with the
	// given prefix but carry a different idnumber.
	CountUsernameClashes(ctx context.Context, prefix, idnumber string) (int, error)
	SetUserAuth(ctx context.Context, userID int64, auth string) error
	SaveProfileField(ctx context.Context, userID int64, field, value string) error
	IsTeacher(ctx context.Context, userID, courseID int64) (bool, error)
}

type MembershipStore interface {
	CreateCohort(ctx context.Context, name string) (int64, error)
	CohortName(ctx context.Context, id int64) (string, error)
	DeleteCohort(ctx context.Context, id int64) error
	IsCohortMember(ctx context.Context, cohortID, userID int64) (bool, error)
	AddCohortMember(ctx context.Context, cohortID, userID int64) error
	RemoveCohortMember(ctx context.Context, cohortID, userID int64) error
	// OtherCohorts lists cohorts the user belongs to besides the given one.
	OtherCohorts(ctx context.Context, userID, cohortID int64) ([]int64, error)
	// CohortMemberIDs lists member user ids, optionally filtered by auth.
	CohortMemberIDs(ctx context.Context, cohortID int64, auth string) ([]int64, error)
	// CohortMemberNSNs lists idnumbers of active, unsuspended API-managed
	// members of a cohort.
	CohortMemberNSNs(ctx context.Context, cohortID int64) ([]string, error)
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
	AddGroupMember(ctx context.Context, groupID, userID int64) error
	RemoveGroupMember(ctx context.Context, groupID, userID int64) error
	UserGroups(ctx context.Context, courseID, userID int64) ([]models.Group, error)
	// UserGroupIDsByNamePrefix lists group ids the user belongs to whose
	// group name starts with the prefix (an old school's name).
	UserGroupIDsByNamePrefix(ctx context.Context, userID int64, prefix string) ([]int64, error)
}

type LogStore interface {
	AddLog(ctx context.Context, e *models.LogEntry) (int64, error)
	DeleteLogsBySchoolNo(ctx context.Context, schoolNo int64) error
}
