package sms

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/models"
)

// Transfer reconciles a student's cohort and group membership across their
// current and prior school affiliations. It is the failure-sensitive piece
// of the sync: a user must never end up in two school cohorts at once, and
// a blocked transfer must always surface as a logged error.
type Transfer struct {
	store Store
	log   *zap.SugaredLogger
}

func NewTransfer(store Store, log *zap.SugaredLogger) *Transfer {
	return &Transfer{store: store, log: log}
}

// Reconcile applies the transfer rules for one student record and returns
// an error code, or "" when membership ended up consistent. Transfer
// errors are logged here before returning; the caller only folds the code
// into its run summary.
func (t *Transfer) Reconcile(ctx context.Context, school *models.School, groupID int64, nsn string, userID int64, entry *models.LogEntry) (string, error) {
	entry.Error = ""
	entry.Other = ""
	cohortID := school.CohortID

	if entry.Origin == models.OriginCron {
		// The candidate group must belong to this school's link set;
		// a stray idnumber match must not enrol the user elsewhere.
		owner, err := t.store.GroupSchoolID(ctx, groupID)
		if err != nil {
			return "", err
		}
		if owner != school.ID {
			t.log.Warnw("group does not belong to school, skipping",
				"groupid", groupID, "schoolno", school.SchoolNo)
			return "", nil
		}
	}

	others, err := t.store.OtherCohorts(ctx, userID, cohortID)
	if err != nil {
		return "", err
	}
	if len(others) == 0 {
		// Fresh enrolment: transfer-in policy does not apply.
		return "", t.enrol(ctx, school, groupID, nsn, userID, entry)
	}

	transferError := ""
	for _, oldCohortID := range others {
		oldSchool, err := t.store.SchoolByCohortID(ctx, oldCohortID)
		if err != nil {
			return "", err
		}
		entry.WithInfo("transferin", school.SchoolNo)
		if oldSchool == nil {
			// The old cohort is not an SMS school. Treated as
			// blocking transfer-out: surfaced, never silent.
			entry.WithInfo("transferout", fmt.Sprintf("0 (%d)", oldCohortID))
			transferError = ErrDuplicate
			continue
		}
		entry.WithInfo("transferout", oldSchool.SchoolNo)
		if !oldSchool.TransferOut {
			t.log.Infow("cannot transfer-out user from old school",
				"nsn", nsn, "oldschoolno", oldSchool.SchoolNo)
			transferError = ErrDuplicate
			continue
		}
		member, err := t.store.IsCohortMember(ctx, oldSchool.CohortID, userID)
		if err != nil {
			return "", err
		}
		if !member {
			continue
		}
		if err := t.transferOut(ctx, oldSchool, userID); err != nil {
			return "", err
		}
		if !school.TransferIn {
			t.log.Infow("cannot transfer-in user to new school",
				"nsn", nsn, "schoolno", school.SchoolNo)
			transferError = ErrNoRegister
			continue
		}
		if err := t.enrol(ctx, school, groupID, nsn, userID, entry); err != nil {
			return "", err
		}
	}

	if transferError != "" {
		entry.Error = transferError
		entry.Other = helpCode(transferError)
		entry.WithInfo("nsn", nsn)
		if _, err := t.store.AddLog(ctx, entry); err != nil {
			return "", err
		}
	}
	return transferError, nil
}

// transferOut removes the old cohort membership and any group memberships
// under the old school's name.
func (t *Transfer) transferOut(ctx context.Context, oldSchool *models.School, userID int64) error {
	name, err := t.store.CohortName(ctx, oldSchool.CohortID)
	if err != nil {
		return err
	}
	if err := t.store.RemoveCohortMember(ctx, oldSchool.CohortID, userID); err != nil {
		return err
	}
	groupIDs, err := t.store.UserGroupIDsByNamePrefix(ctx, userID, name)
	if err != nil {
		return err
	}
	for _, gid := range groupIDs {
		if err := t.store.RemoveGroupMember(ctx, gid, userID); err != nil {
			return err
		}
	}
	return nil
}

// enrol adds cohort and group membership, skipping what already holds.
func (t *Transfer) enrol(ctx context.Context, school *models.School, groupID int64, nsn string, userID int64, entry *models.LogEntry) error {
	if school.CohortID > 0 {
		member, err := t.store.IsCohortMember(ctx, school.CohortID, userID)
		if err != nil {
			return err
		}
		if !member {
			t.log.Infow("adding user to cohort",
				"nsn", nsn, "cohortid", school.CohortID)
			if err := t.store.AddCohortMember(ctx, school.CohortID, userID); err != nil {
				return err
			}
		}
	}
	member, err := t.store.IsGroupMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		t.log.Infow("adding user to group",
			"nsn", nsn, "groupid", strconv.FormatInt(groupID, 10))
		entry.WithInfo("groupadd", groupID)
		if err := t.store.AddGroupMember(ctx, groupID, userID); err != nil {
			return err
		}
	}
	return nil
}
