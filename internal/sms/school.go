package sms

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/models"
)

// Linker manages the school records themselves: the school/cohort pairing
// and which internal groups carry a vendor group key. The sync passes only
// ever read what the Linker has set up.
type Linker struct {
	store Store
	log   *zap.SugaredLogger
}

func NewLinker(store Store, log *zap.SugaredLogger) *Linker {
	return &Linker{store: store, log: log}
}

// SaveSchool inserts or updates a school. A school saved without a cohort
// gets a fresh one named after it, so the sync always has a membership
// container to reconcile against.
func (l *Linker) SaveSchool(ctx context.Context, s *models.School, origin string, userID int64) error {
	if s.CohortID == 0 {
		id, err := l.store.CreateCohort(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("create cohort for school %d: %w", s.SchoolNo, err)
		}
		s.CohortID = id
	}

	action := models.ActionUpdate
	if s.ID == 0 {
		id, err := l.store.InsertSchool(ctx, s)
		if err != nil {
			return fmt.Errorf("insert school %d: %w", s.SchoolNo, err)
		}
		s.ID = id
		action = models.ActionCreate
	} else {
		if err := l.store.UpdateSchool(ctx, s); err != nil {
			return fmt.Errorf("update school %d: %w", s.SchoolNo, err)
		}
	}

	entry := &models.LogEntry{
		SchoolNo: s.SchoolNo,
		Target:   models.TargetSchool,
		Action:   action,
		Origin:   origin,
		UserID:   userID,
	}
	entry.WithInfo("cohortid", s.CohortID)
	if _, err := l.store.AddLog(ctx, entry); err != nil {
		return err
	}
	l.log.Infow("school saved", "schoolno", s.SchoolNo, "action", action)
	return nil
}

// LinkGroup attaches an internal group to a school under a vendor group
// key. The group's idnumber becomes {schoolno}{groupNo}, which is what the
// scheduled import resolves vendor rooms against.
func (l *Linker) LinkGroup(ctx context.Context, school *models.School, groupID int64, groupNo string, origin string, userID int64) error {
	g, err := l.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("group %d not found", groupID)
	}
	g.IDNumber = strconv.FormatInt(school.SchoolNo, 10) + groupNo
	if err := l.store.UpdateGroup(ctx, g); err != nil {
		return err
	}
	if err := l.store.LinkGroup(ctx, school.ID, groupID); err != nil {
		return err
	}

	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetGroup,
		Action:   models.ActionUpdate,
		Origin:   origin,
		UserID:   userID,
	}
	entry.WithInfo("groupid", groupID)
	entry.WithInfo("groupidnumber", g.IDNumber)
	if _, err := l.store.AddLog(ctx, entry); err != nil {
		return err
	}
	l.log.Infow("group linked", "schoolno", school.SchoolNo, "groupid", groupID, "idnumber", g.IDNumber)
	return nil
}

// UnlinkGroup detaches a group from its school. The group survives with a
// cleared idnumber so the import stops matching it.
func (l *Linker) UnlinkGroup(ctx context.Context, school *models.School, groupID int64, origin string, userID int64) error {
	g, err := l.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("group %d not found", groupID)
	}
	g.IDNumber = ""
	if err := l.store.UpdateGroup(ctx, g); err != nil {
		return err
	}
	if err := l.store.UnlinkGroup(ctx, school.ID, groupID); err != nil {
		return err
	}

	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetGroup,
		Action:   models.ActionUpdate,
		Origin:   origin,
		UserID:   userID,
	}
	entry.WithInfo("groupid", groupID)
	entry.WithInfo("unlinked", true)
	if _, err := l.store.AddLog(ctx, entry); err != nil {
		return err
	}
	l.log.Infow("group unlinked", "schoolno", school.SchoolNo, "groupid", groupID)
	return nil
}

// UnlinkUsers demotes the school's API-managed members to upload auth so
// the scheduled sync stops owning their accounts. Used when a school is
// taken off the vendor connection but keeps its data.
func (l *Linker) UnlinkUsers(ctx context.Context, school *models.School, origin string, userID int64) (int, error) {
	members, err := l.store.CohortMemberIDs(ctx, school.CohortID, models.AuthAPI)
	if err != nil {
		return 0, err
	}
	for _, id := range members {
		if err := l.store.SetUserAuth(ctx, id, models.AuthUpload); err != nil {
			return 0, err
		}
	}
	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetSchool,
		Action:   models.ActionUpdate,
		Origin:   origin,
		UserID:   userID,
	}
	entry.WithInfo("unlinkedusers", len(members))
	if _, err := l.store.AddLog(ctx, entry); err != nil {
		return 0, err
	}
	l.log.Infow("school users unlinked", "schoolno", school.SchoolNo, "count", len(members))
	return len(members), nil
}

// DeleteSchool removes a school and everything it owns: API-managed member
// users, the cohort, the linked groups and the school's audit history. The
// deletion entry itself is written last, after the school's old logs are
// gone.
func (l *Linker) DeleteSchool(ctx context.Context, school *models.School, origin string, userID int64) error {
	members, err := l.store.CohortMemberIDs(ctx, school.CohortID, models.AuthAPI)
	if err != nil {
		return err
	}
	for _, id := range members {
		if err := l.store.DeleteUser(ctx, id); err != nil {
			return err
		}
	}

	groupIDs, err := l.store.LinkedGroupIDs(ctx, school.ID)
	if err != nil {
		return err
	}
	for _, gid := range groupIDs {
		if err := l.store.UnlinkGroup(ctx, school.ID, gid); err != nil {
			return err
		}
		if err := l.store.DeleteGroup(ctx, gid); err != nil {
			return err
		}
	}

	if school.CohortID > 0 {
		if err := l.store.DeleteCohort(ctx, school.CohortID); err != nil {
			return err
		}
	}
	if err := l.store.DeleteLogsBySchoolNo(ctx, school.SchoolNo); err != nil {
		return err
	}
	if err := l.store.DeleteSchool(ctx, school.ID); err != nil {
		return err
	}

	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetSchool,
		Action:   models.ActionDelete,
		Origin:   origin,
		UserID:   userID,
	}
	entry.WithInfo("deletedusers", len(members))
	entry.WithInfo("deletedgroups", len(groupIDs))
	if _, err := l.store.AddLog(ctx, entry); err != nil {
		return err
	}
	l.log.Infow("school deleted", "schoolno", school.SchoolNo,
		"users", len(members), "groups", len(groupIDs))
	return nil
}
