package sms

import (
	"context"
	"sort"
	"strings"

	"github.com/kauri-edtech/smssync/internal/models"
)

var _ Store = (*fakeStore)(nil)

// fakeStore is an in-memory Store for unit tests.
type fakeStore struct {
	nextID int64

	schools   map[int64]*models.School
	vendorCfg map[int64]*models.VendorConfig

	users    map[int64]*models.User
	profiles map[int64]map[string]string
	teachers map[int64]bool

	cohorts       map[int64]string
	cohortMembers map[int64]map[int64]bool // cohortID -> userIDs

	groups       map[int64]*models.Group
	groupMembers map[int64]map[int64]bool // groupID -> userIDs
	parentGroups map[int64]bool
	schoolGroups map[int64]map[int64]bool // schoolID -> groupIDs

	logs []models.LogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schools:       make(map[int64]*models.School),
		vendorCfg:     make(map[int64]*models.VendorConfig),
		users:         make(map[int64]*models.User),
		profiles:      make(map[int64]map[string]string),
		teachers:      make(map[int64]bool),
		cohorts:       make(map[int64]string),
		cohortMembers: make(map[int64]map[int64]bool),
		groups:        make(map[int64]*models.Group),
		groupMembers:  make(map[int64]map[int64]bool),
		parentGroups:  make(map[int64]bool),
		schoolGroups:  make(map[int64]map[int64]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// addSchool registers a school with a cohort and returns it.
func (f *fakeStore) addSchool(schoolNo int64, name string, transferIn, transferOut bool) *models.School {
	cohortID := f.id()
	f.cohorts[cohortID] = name
	s := &models.School{
		ID: f.id(), SchoolNo: schoolNo, Name: name, CohortID: cohortID,
		TransferIn: transferIn, TransferOut: transferOut,
	}
	f.schools[s.ID] = s
	return s
}

// addLinkedGroup creates a group linked to the school under a vendor key.
func (f *fakeStore) addLinkedGroup(school *models.School, groupNo, name string) *models.Group {
	g := &models.Group{ID: f.id(), CourseID: 1, Name: name}
	if groupNo != "" {
		g.IDNumber = itoa64(school.SchoolNo) + groupNo
	}
	f.groups[g.ID] = g
	if f.schoolGroups[school.ID] == nil {
		f.schoolGroups[school.ID] = make(map[int64]bool)
	}
	f.schoolGroups[school.ID][g.ID] = true
	return g
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// SchoolStore

func (f *fakeStore) EligibleSchools(ctx context.Context) ([]models.School, error) {
	var out []models.School
	for _, s := range f.schools {
		if !s.Suspend {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchoolNo < out[j].SchoolNo })
	return out, nil
}

func (f *fakeStore) SchoolByCohortID(ctx context.Context, cohortID int64) (*models.School, error) {
	for _, s := range f.schools {
		if s.CohortID == cohortID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SchoolByID(ctx context.Context, id int64) (*models.School, error) {
	if s, ok := f.schools[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertSchool(ctx context.Context, s *models.School) (int64, error) {
	cp := *s
	cp.ID = f.id()
	f.schools[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) UpdateSchool(ctx context.Context, s *models.School) error {
	cp := *s
	f.schools[cp.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteSchool(ctx context.Context, id int64) error {
	delete(f.schools, id)
	return nil
}

func (f *fakeStore) VendorConfig(ctx context.Context, id int64) (*models.VendorConfig, error) {
	if c, ok := f.vendorCfg[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// GroupStore

func (f *fakeStore) LinkedGroups(ctx context.Context, schoolID int64) (map[string]string, error) {
	out := make(map[string]string)
	for gid := range f.schoolGroups[schoolID] {
		g := f.groups[gid]
		if g != nil && g.IDNumber != "" {
			out[g.IDNumber] = g.Name
		}
	}
	return out, nil
}

func (f *fakeStore) LinkedGroupIDs(ctx context.Context, schoolID int64) ([]int64, error) {
	var ids []int64
	for gid := range f.schoolGroups[schoolID] {
		ids = append(ids, gid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) GroupByID(ctx context.Context, id int64) (*models.Group, error) {
	if g, ok := f.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GroupByIDNumber(ctx context.Context, courseID int64, idnumber string) (*models.Group, error) {
	for _, g := range f.groups {
		if g.CourseID == courseID && g.IDNumber == idnumber {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GroupBySchoolIDNumber(ctx context.Context, schoolID int64, idnumber string) (*models.Group, error) {
	for gid := range f.schoolGroups[schoolID] {
		if g := f.groups[gid]; g != nil && g.IDNumber == idnumber {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GroupByName(ctx context.Context, courseID int64, name string) (*models.Group, error) {
	var found *models.Group
	for _, g := range f.groups {
		if g.CourseID == courseID && g.Name == name {
			if found == nil || g.ID < found.ID {
				found = g
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, g *models.Group) (int64, error) {
	cp := *g
	cp.ID = f.id()
	f.groups[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) UpdateGroup(ctx context.Context, g *models.Group) error {
	cp := *g
	f.groups[cp.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteGroup(ctx context.Context, id int64) error {
	delete(f.groups, id)
	delete(f.groupMembers, id)
	return nil
}

func (f *fakeStore) LinkGroup(ctx context.Context, schoolID, groupID int64) error {
	if f.schoolGroups[schoolID] == nil {
		f.schoolGroups[schoolID] = make(map[int64]bool)
	}
	f.schoolGroups[schoolID][groupID] = true
	return nil
}

func (f *fakeStore) UnlinkGroup(ctx context.Context, schoolID, groupID int64) error {
	delete(f.schoolGroups[schoolID], groupID)
	return nil
}

func (f *fakeStore) GroupSchoolID(ctx context.Context, groupID int64) (int64, error) {
	for sid, gids := range f.schoolGroups {
		if gids[groupID] {
			return sid, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) IsParentGroup(ctx context.Context, groupID int64) (bool, error) {
	return f.parentGroups[groupID], nil
}

// UserStore

func (f *fakeStore) UsersByIDNumbers(ctx context.Context, idnumbers []string) ([]models.User, error) {
	want := make(map[string]bool, len(idnumbers))
	for _, id := range idnumbers {
		want[id] = true
	}
	var out []models.User
	for _, u := range f.users {
		if !u.Deleted && want[u.IDNumber] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UserIDByIDNumberAuth(ctx context.Context, idnumber, auth string) (int64, error) {
	var best int64
	for _, u := range f.users {
		if !u.Deleted && !u.Suspended && u.IDNumber == idnumber && u.Auth == auth && u.ID > best {
			best = u.ID
		}
	}
	return best, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	cp := *u
	cp.ID = f.id()
	f.users[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, u *models.User) error {
	cp := *u
	f.users[cp.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id int64) error {
	if u, ok := f.users[id]; ok {
		u.Deleted = true
	}
	return nil
}

func (f *fakeStore) CountUsernameClashes(ctx context.Context, prefix, idnumber string) (int, error) {
	n := 0
	for _, u := range f.users {
		if !u.Deleted && strings.HasPrefix(u.Username, prefix) && u.IDNumber != idnumber {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetUserAuth(ctx context.Context, userID int64, auth string) error {
	if u, ok := f.users[userID]; ok {
		u.Auth = auth
	}
	return nil
}

func (f *fakeStore) SaveProfileField(ctx context.Context, userID int64, field, value string) error {
	if f.profiles[userID] == nil {
		f.profiles[userID] = make(map[string]string)
	}
	f.profiles[userID][field] = value
	return nil
}

func (f *fakeStore) IsTeacher(ctx context.Context, userID, courseID int64) (bool, error) {
	return f.teachers[userID], nil
}

// MembershipStore

func (f *fakeStore) CreateCohort(ctx context.Context, name string) (int64, error) {
	id := f.id()
	f.cohorts[id] = name
	return id, nil
}

func (f *fakeStore) CohortName(ctx context.Context, id int64) (string, error) {
	return f.cohorts[id], nil
}

func (f *fakeStore) DeleteCohort(ctx context.Context, id int64) error {
	delete(f.cohorts, id)
	delete(f.cohortMembers, id)
	return nil
}

func (f *fakeStore) IsCohortMember(ctx context.Context, cohortID, userID int64) (bool, error) {
	return f.cohortMembers[cohortID][userID], nil
}

func (f *fakeStore) AddCohortMember(ctx context.Context, cohortID, userID int64) error {
	if f.cohortMembers[cohortID] == nil {
		f.cohortMembers[cohortID] = make(map[int64]bool)
	}
	f.cohortMembers[cohortID][userID] = true
	return nil
}

func (f *fakeStore) RemoveCohortMember(ctx context.Context, cohortID, userID int64) error {
	delete(f.cohortMembers[cohortID], userID)
	return nil
}

func (f *fakeStore) OtherCohorts(ctx context.Context, userID, cohortID int64) ([]int64, error) {
	var out []int64
	for cid, members := range f.cohortMembers {
		if cid != cohortID && members[userID] {
			out = append(out, cid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeStore) CohortMemberIDs(ctx context.Context, cohortID int64, auth string) ([]int64, error) {
	var out []int64
	for uid := range f.cohortMembers[cohortID] {
		u := f.users[uid]
		if u == nil || u.Deleted {
			continue
		}
		if auth != "" && u.Auth != auth {
			continue
		}
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeStore) CohortMemberNSNs(ctx context.Context, cohortID int64) ([]string, error) {
	var out []string
	for uid := range f.cohortMembers[cohortID] {
		u := f.users[uid]
		if u == nil || u.Deleted || u.Suspended || u.Auth != models.AuthAPI || u.IDNumber == "" {
			continue
		}
		out = append(out, u.IDNumber)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	return f.groupMembers[groupID][userID], nil
}

func (f *fakeStore) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	if f.groupMembers[groupID] == nil {
		f.groupMembers[groupID] = make(map[int64]bool)
	}
	f.groupMembers[groupID][userID] = true
	return nil
}

func (f *fakeStore) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	delete(f.groupMembers[groupID], userID)
	return nil
}

func (f *fakeStore) UserGroups(ctx context.Context, courseID, userID int64) ([]models.Group, error) {
	var out []models.Group
	for gid, members := range f.groupMembers {
		if !members[userID] {
			continue
		}
		if g := f.groups[gid]; g != nil && g.CourseID == courseID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UserGroupIDsByNamePrefix(ctx context.Context, userID int64, prefix string) ([]int64, error) {
	var out []int64
	for gid, members := range f.groupMembers {
		if !members[userID] {
			continue
		}
		if g := f.groups[gid]; g != nil && strings.HasPrefix(g.Name, prefix) {
			out = append(out, gid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// LogStore

func (f *fakeStore) AddLog(ctx context.Context, e *models.LogEntry) (int64, error) {
	cp := *e
	if e.Info != nil {
		cp.Info = make(map[string]any, len(e.Info))
		for k, v := range e.Info {
			cp.Info[k] = v
		}
	}
	cp.ID = f.id()
	f.logs = append(f.logs, cp)
	return cp.ID, nil
}

func (f *fakeStore) DeleteLogsBySchoolNo(ctx context.Context, schoolNo int64) error {
	var kept []models.LogEntry
	for _, e := range f.logs {
		if e.SchoolNo != schoolNo {
			kept = append(kept, e)
		}
	}
	f.logs = kept
	return nil
}

// logsWithError returns logged entries carrying the given error code.
func (f *fakeStore) logsWithError(code string) []models.LogEntry {
	var out []models.LogEntry
	for _, e := range f.logs {
		if e.Error == code {
			out = append(out, e)
		}
	}
	return out
}
