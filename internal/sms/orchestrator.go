package sms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/metrics"
	"github.com/kauri-edtech/smssync/internal/models"
	"github.com/kauri-edtech/smssync/internal/observability"
)

// RosterSource supplies a school's live vendor data. The production
// implementation is Client; tests substitute a fake.
type RosterSource interface {
	Groups(ctx context.Context, school *models.School) (map[string]string, error)
	Students(ctx context.Context, school *models.School) ([]*models.Student, error)
}

// Notifier forwards selected audit entries to an admin channel. A nil
// Notifier disables delivery.
type Notifier interface {
	NotifyError(ctx context.Context, e *models.LogEntry)
}

// Config are the site settings the sync runs under.
type Config struct {
	// CourseID is the course all SMS groups live in (smscourse).
	CourseID int64
	// ProfileFields are the profile field keys to sync (smsuserfields).
	ProfileFields []string
	// GenderOptions is the site-defined gender option list.
	GenderOptions []string
	// NotifyErrors selects which logged error codes go to the notifier.
	NotifyErrors map[string]bool
}

// Summary are the per-school counters reported after an import pass.
type Summary struct {
	Total   int
	Created int
	Updated int
	Error   string
}

// Orchestrator drives import and cleanup passes over all eligible schools.
// One school is processed at a time, one record at a time, in feed order.
type Orchestrator struct {
	store    Store
	source   RosterSource
	notifier Notifier
	cfg      Config
	mapper   *Mapper
	transfer *Transfer
	limiter  *schoolLimiter
	log      *zap.SugaredLogger
	runID    string
}

func NewOrchestrator(store Store, source RosterSource, notifier Notifier, cfg Config, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		source:   source,
		notifier: notifier,
		cfg:      cfg,
		mapper:   &Mapper{GenderOptions: cfg.GenderOptions},
		transfer: NewTransfer(store, log),
		limiter:  newSchoolLimiter(),
		log:      log,
		runID:    uuid.NewString(),
	}
}

// RunImport performs one import pass over all non-suspended schools with a
// linked cohort. A failure in one school never stops the others.
func (o *Orchestrator) RunImport(ctx context.Context) error {
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
		o.importOne(ctx, &school)
	}
	return nil
}

// beginRun stamps a fresh run id and drops any vendor cache from the
// previous pass.
func (o *Orchestrator) beginRun() {
	o.runID = uuid.NewString()
	if r, ok := o.source.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// importOne contains one school's import, including its failure scope:
// data-availability errors and panics abort this school only.
func (o *Orchestrator) importOne(ctx context.Context, school *models.School) {
	ctx = ctxutil.WithSchoolNo(ctx, school.SchoolNo)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic importing school %d: %v", school.SchoolNo, r)
			observability.CaptureCtxErr(ctx, err)
			o.log.Errorw("school import abandoned", "schoolno", school.SchoolNo, "err", err)
			o.logSummary(ctx, school, models.OriginCron, Summary{Error: ErrSync})
		}
	}()

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
	if _, err := o.ImportSchool(ctx, school, students, groups, models.OriginCron); err != nil {
		observability.CaptureCtxErr(ctx, err)
		o.log.Errorw("school import failed", "schoolno", school.SchoolNo, "err", err)
		o.logSummary(ctx, school, models.OriginCron, Summary{Error: ErrSync})
	}
}

// ImportSchool reconciles one batch of student records against one school.
// vendorGroups may be nil for web uploads, which resolve rooms by group
// name instead of vendor group key. Field- and record-level problems are
// logged and never abort the batch.
func (o *Orchestrator) ImportSchool(ctx context.Context, school *models.School, students []*models.Student, vendorGroups map[string]string, origin string) (Summary, error) {
	defer o.limiter.lock(school.CohortID)()

	var sum Summary
	linked, err := o.store.LinkedGroups(ctx, school.ID)
	if err != nil {
		return sum, fmt.Errorf("linked groups for school %d: %w", school.SchoolNo, err)
	}
	if len(linked) == 0 && origin == models.OriginCron {
		entry := &models.LogEntry{
			SchoolNo: school.SchoolNo,
			Target:   models.TargetUser,
			Error:    ErrNoGroups,
			Other:    helpCode(ErrNoGroups),
			Origin:   origin,
		}
		o.addLog(ctx, entry)
		o.log.Warnw("no groups linked, skipping school", "schoolno", school.SchoolNo)
		return sum, nil
	}

	o.log.Infow("import begins", "schoolno", school.SchoolNo, "school", school.Name, "records", len(students))

	auth := models.AuthAPI
	if origin == models.OriginWeb {
		auth = models.AuthUpload
	}

	seen := make(map[string]bool)
	for _, st := range students {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Total++
		nsn := strings.TrimLeft(st.NSN, "0")
		groupID, err := o.resolveGroup(ctx, school, st.Room, vendorGroups, origin)
		if err != nil {
			return sum, err
		}
		if groupID == 0 || nsn == "" {
			o.log.Debugw("group not found for record, skipping",
				"schoolno", school.SchoolNo, "nsn", nsn, "room", st.Room)
			continue
		}

		entry := &models.LogEntry{
			SchoolNo: school.SchoolNo,
			Target:   models.TargetUser,
			Origin:   origin,
		}
		entry.WithInfo("cohortid", school.CohortID)
		entry.WithInfo("nsn", nsn)

		if seen[nsn] {
			// Second occurrence in this feed: the user must not be
			// touched twice.
			entry.Error = ErrNSNDouble
			entry.Other = helpCode(ErrNSNDouble)
			o.addLog(ctx, entry)
			sum.Error = ErrSync
			continue
		}
		seen[nsn] = true

		recordErr, result, err := o.importRecord(ctx, school, st, nsn, groupID, auth, entry)
		if err != nil {
			return sum, err
		}
		if recordErr != "" {
			sum.Error = ErrSync
		}
		switch result {
		case resultCreated:
			sum.Created++
			metrics.SyncedUsers.WithLabelValues(resultCreated).Inc()
		case resultUpdated:
			sum.Updated++
			metrics.SyncedUsers.WithLabelValues(resultUpdated).Inc()
		}
	}

	o.log.Infow("import done", "schoolno", school.SchoolNo,
		"total", sum.Total, "created", sum.Created, "updated", sum.Updated)
	o.logSummary(ctx, school, origin, sum)
	return sum, nil
}

const (
	resultCreated   = "created"
	resultUpdated   = "updated"
	resultUnchanged = "unchanged"
)

// importRecord matches, creates or updates one user and reconciles their
// membership and profile fields. Returns the record's error code (if any)
// and whether the account was created, updated or left as-is.
func (o *Orchestrator) importRecord(ctx context.Context, school *models.School, st *models.Student, nsn string, groupID int64, auth string, entry *models.LogEntry) (string, string, error) {
	user := buildUser(st, nsn, auth)
	if clashes, err := o.store.CountUsernameClashes(ctx, user.Username, nsn); err != nil {
		return "", "", err
	} else if clashes > 0 {
		user.Username = fmt.Sprintf("%s%d", user.Username, rand.Intn(1000)+1)
	}

	match, err := MatchIdentity(ctx, o.store, nsn)
	if err != nil {
		return "", "", err
	}
	for _, removedID := range match.Removed {
		del := &models.LogEntry{
			SchoolNo: school.SchoolNo,
			Target:   models.TargetUser,
			Action:   models.ActionDelete,
			Origin:   entry.Origin,
			UserID:   removedID,
		}
		del.WithInfo("nsn", nsn)
		o.addLog(ctx, del)
		o.log.Infow("duplicate account deleted", "nsn", nsn, "userid", removedID)
	}
	result := resultUnchanged
	if match.User != nil {
		user.ID = match.User.ID
		entry.Action = models.ActionUpdate
		if userChanged(match.User, user) {
			result = resultUpdated
		}
	} else {
		id, err := o.store.CreateUser(ctx, user)
		if err != nil {
			return "", "", err
		}
		user.ID = id
		entry.Action = models.ActionCreate
		result = resultCreated
		o.log.Infow("user created", "nsn", nsn, "userid", id)
	}
	entry.UserID = user.ID
	entry.WithInfo("userid", user.ID)

	transferErr, err := o.transfer.Reconcile(ctx, school, groupID, nsn, user.ID, entry)
	if err != nil {
		return "", result, err
	}
	profileErr := ""
	if transferErr == "" {
		if result == resultUpdated {
			if err := o.store.UpdateUser(ctx, user); err != nil {
				return "", result, err
			}
			o.log.Infow("user updated", "nsn", nsn, "userid", user.ID)
		}
		profileErr, err = o.saveProfile(ctx, school, st, user.ID, *entry)
		if err != nil {
			return "", result, err
		}
	}

	if transferErr == "" && profileErr == "" {
		entry.Error = ""
		entry.Other = ""
		o.addLog(ctx, entry)
		return "", result, nil
	}
	if transferErr != "" {
		return transferErr, result, nil
	}
	return profileErr, result, nil
}

// userChanged reports whether the incoming record differs from the stored
// account on the synced fields. An unchanged feed must classify every
// record as no-change so repeated runs stay idempotent.
func userChanged(old, next *models.User) bool {
	return old.FirstName != next.FirstName ||
		old.LastName != next.LastName ||
		old.IDNumber != next.IDNumber ||
		old.Auth != next.Auth ||
		old.Suspended != next.Suspended
}

// buildUser derives the account fields from a canonical record.
func buildUser(st *models.Student, nsn, auth string) *models.User {
	first := titleWords(strings.ToLower(st.FirstName))
	last := titleWords(strings.ToLower(st.Surname))
	username := strings.ToLower(alnum(st.FirstName) + "_" + alnum(st.Surname))
	return &models.User{
		Username:  username,
		FirstName: first,
		LastName:  last,
		IDNumber:  nsn,
		Email:     username + "@invalid",
		Auth:      auth,
		Suspended: st.Suspended,
	}
}

// saveProfile maps and persists the configured profile fields. Mapping
// failures are logged, the field keeps its default, and the record
// continues.
func (o *Orchestrator) saveProfile(ctx context.Context, school *models.School, st *models.Student, userID int64, entry models.LogEntry) (string, error) {
	profileErr := ""
	for _, field := range o.cfg.ProfileFields {
		raw := st.Field(field)
		value, code := o.mapper.Map(field, raw)
		if field == "school" {
			value = school.Name
		}
		if err := o.store.SaveProfileField(ctx, userID, field, value); err != nil {
			return "", err
		}
		if code != "" {
			profileErr = code
			entry.Error = code
			entry.Other = helpCode(code)
			entry.WithInfo("profilefield", strings.TrimSpace(field+" "+raw))
		}
	}
	if profileErr != "" {
		o.addLog(ctx, &entry)
	}
	return profileErr, nil
}

// resolveGroup finds the internal group for a room label. The scheduled
// path trusts the vendor group key; the upload path only has names, and
// creates the group on first sight.
func (o *Orchestrator) resolveGroup(ctx context.Context, school *models.School, room string, vendorGroups map[string]string, origin string) (int64, error) {
	if room == "" {
		return 0, nil
	}
	if origin == models.OriginCron {
		g, err := FindGroup(ctx, o.store, school, room, vendorGroups)
		if err != nil || g == nil {
			return 0, err
		}
		return g.ID, nil
	}
	g, err := o.store.GroupByName(ctx, o.cfg.CourseID, room)
	if err != nil {
		return 0, err
	}
	if g != nil {
		return g.ID, nil
	}
	return o.store.CreateGroup(ctx, &models.Group{CourseID: o.cfg.CourseID, Name: room})
}

// logNoData records a data-availability failure for a school and skips it.
func (o *Orchestrator) logNoData(ctx context.Context, school *models.School, err error) {
	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetSchool,
		Action:   models.ActionSync,
		Error:    ErrNoData,
		Other:    helpCode(ErrNoData),
		Origin:   models.OriginCron,
	}
	var nd *NoDataError
	if errors.As(err, &nd) {
		entry.WithInfo("logendpoint", nd.Endpoint)
		entry.WithInfo("logerrorsync", nd.Reason)
	} else {
		entry.WithInfo("logerrorsync", err.Error())
	}
	o.addLog(ctx, entry)
	o.log.Warnw("no usable vendor data, skipping school",
		"schoolno", school.SchoolNo, "err", err)
}

func (o *Orchestrator) logSummary(ctx context.Context, school *models.School, origin string, sum Summary) {
	entry := &models.LogEntry{
		SchoolNo: school.SchoolNo,
		Target:   models.TargetSchool,
		Action:   models.ActionSync,
		Error:    sum.Error,
		Other:    helpCode(sum.Error),
		Origin:   origin,
	}
	entry.WithInfo("total", sum.Total)
	entry.WithInfo("newusers", sum.Created)
	entry.WithInfo("updateusers", sum.Updated)
	entry.WithInfo("runid", o.runID)
	o.addLog(ctx, entry)
}

// addLog persists an audit entry and forwards it to the notifier when its
// error code is in the configured notification set. Log failures are
// captured rather than propagated: an audit hiccup must not kill a batch.
func (o *Orchestrator) addLog(ctx context.Context, entry *models.LogEntry) {
	if entry.IP == "" {
		if ip, ok := ctxutil.ClientIP(ctx); ok {
			entry.IP = ip
		}
	}
	if _, err := o.store.AddLog(ctx, entry); err != nil {
		observability.CaptureErr(fmt.Errorf("add sms log: %w", err))
		o.log.Errorw("failed to persist audit entry", "err", err)
		return
	}
	if entry.Error != "" {
		metrics.SyncErrors.WithLabelValues(entry.Error).Inc()
	}
	if entry.Error != "" && o.notifier != nil && o.cfg.NotifyErrors[entry.Error] {
		o.notifier.NotifyError(ctx, entry)
	}
}

// alnum strips everything but letters and digits.
func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
