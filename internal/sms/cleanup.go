package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/models"
	"github.com/kauri-edtech/smssync/internal/observability"
)

// RunCleanup compares each eligible school's current members against the
// live vendor roster and removes group memberships the vendor no longer
// reports. It is an independent entry point from the import pass.
func (o *Orchestrator) RunCleanup(ctx context.Context) error {
	o.beginRun()
	schools, err := o.store.EligibleSchools(ctx)
	if err != nil {
		return fmt.Errorf("list schools: %w", err)
	}
	for i := range schools {
		school := schools[i]
		if school.CohortID <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		o.cleanupOne(ctx, &school)
	}
	return nil
}

func (o *Orchestrator) cleanupOne(ctx context.Context, school *models.School) {
	ctx = ctxutil.WithSchoolNo(ctx, school.SchoolNo)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic cleaning school %d: %v", school.SchoolNo, r)
			observability.CaptureCtxErr(ctx, err)
			o.log.Errorw("school cleanup abandoned", "schoolno", school.SchoolNo, "err", err)
		}
	}()

	o.log.Infow("checking current member groups", "schoolno", school.SchoolNo)
	students, err := o.source.Students(ctx, school)
	if err != nil {
		o.logNoData(ctx, school, err)
		return
	}
	groups, err := o.source.Groups(ctx, school)
	if err != nil {
		o.logNoData(ctx, school, err)
		return
	}

	// First pass: users still in the feed, but possibly in groups the
	// vendor no longer places them in.
	reported := make(map[string]bool, len(students))
	for _, st := range students {
		nsn := strings.TrimLeft(st.NSN, "0")
		if nsn == "" {
			continue
		}
		reported[nsn] = true
		userID, err := o.store.UserIDByIDNumberAuth(ctx, nsn, models.AuthAPI)
		if err != nil {
			observability.CaptureCtxErr(ctx, err)
			continue
		}
		if userID == 0 {
			continue
		}
		g, err := FindGroup(ctx, o.store, school, st.Room, groups)
		if err != nil {
			observability.CaptureCtxErr(ctx, err)
			continue
		}
		if g == nil {
			continue
		}
		if err := o.removeStaleGroups(ctx, school, userID, nsn, g.ID, false); err != nil {
			observability.CaptureCtxErr(ctx, err)
		}
	}

	// Second pass: enrolled members the vendor no longer reports at all.
	o.log.Infow("checking missing member groups", "schoolno", school.SchoolNo)
	memberNSNs, err := o.store.CohortMemberNSNs(ctx, school.CohortID)
	if err != nil {
		observability.CaptureCtxErr(ctx, err)
		return
	}
	for _, nsn := range memberNSNs {
		if reported[nsn] {
			continue
		}
		users, err := o.store.UsersByIDNumbers(ctx, []string{nsn})
		if err != nil || len(users) == 0 {
			continue
		}
		userID := users[len(users)-1].ID
		if err := o.removeStaleGroups(ctx, school, userID, nsn, 0, true); err != nil {
			observability.CaptureCtxErr(ctx, err)
		}
	}
}

// removeStaleGroups drops the user from linked groups that the vendor no
// longer reports. keepGroupID is the group the vendor says the user is in;
// missing means the user is absent from the feed entirely. Teachers are
// exempt, as are parent cohort-linkage groups.
func (o *Orchestrator) removeStaleGroups(ctx context.Context, school *models.School, userID int64, nsn string, keepGroupID int64, missing bool) error {
	teacher, err := o.store.IsTeacher(ctx, userID, o.cfg.CourseID)
	if err != nil {
		return err
	}
	if teacher {
		o.log.Debugw("user has teacher role, skipping group cleanup", "nsn", nsn)
		return nil
	}
	userGroups, err := o.store.UserGroups(ctx, o.cfg.CourseID, userID)
	if err != nil {
		return err
	}
	for _, g := range userGroups {
		if !missing && g.ID == keepGroupID {
			continue
		}
		member, err := o.store.IsCohortMember(ctx, school.CohortID, userID)
		if err != nil {
			return err
		}
		owner, err := o.store.GroupSchoolID(ctx, g.ID)
		if err != nil {
			return err
		}
		parent, err := o.store.IsParentGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		// Users transferred to another school keep their memberships;
		// only groups owned by an SMS school are ever removed.
		if !member || owner == 0 || parent {
			continue
		}
		if err := o.store.RemoveGroupMember(ctx, g.ID, userID); err != nil {
			return err
		}
		o.log.Infow("user removed from stale group",
			"nsn", nsn, "groupid", g.ID, "schoolno", school.SchoolNo)
		entry := &models.LogEntry{
			SchoolNo: school.SchoolNo,
			Target:   models.TargetUser,
			Action:   models.ActionUpdate,
			Origin:   models.OriginCron,
			UserID:   userID,
		}
		entry.WithInfo("nsn", nsn)
		entry.WithInfo("groupremove", g.IDNumber)
		o.addLog(ctx, entry)
	}
	return nil
}
