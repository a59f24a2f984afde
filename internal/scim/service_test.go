package scim

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkarlsen/scimgate/internal/directory"
)

// fakeDirectory is an in-memory Directory with call tracking.
type fakeDirectory struct {
	users       map[string]*directory.User
	memberships map[string]map[string]bool // orgID -> userID
	teamNames   map[string]string          // orgID + "|" + userID

	attachCalls int
	revokeCalls int
	nextCreated time.Time
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:       make(map[string]*directory.User),
		memberships: make(map[string]map[string]bool),
		teamNames:   make(map[string]string),
		nextCreated: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// seedUser inserts a user directly, optionally as a member of orgID.
func (f *fakeDirectory) seedUser(id, email string, first, last *string, orgID string) *directory.User {
	u := &directory.User{
		ID:        id,
		Email:     strings.ToLower(email),
		FirstName: first,
		LastName:  last,
		CreatedAt: f.nextCreated,
		UpdatedAt: f.nextCreated,
	}
	f.nextCreated = f.nextCreated.Add(time.Second)
	f.users[id] = u
	if orgID != "" {
		if f.memberships[orgID] == nil {
			f.memberships[orgID] = make(map[string]bool)
		}
		f.memberships[orgID][id] = true
	}
	return u
}

func (f *fakeDirectory) GetUserByID(_ context.Context, id string) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDirectory) GetUserByEmail(_ context.Context, email string) (*directory.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDirectory) ListUsers(_ context.Context, orgID string, params directory.UserListParams) ([]*directory.User, int, error) {
	var matched []*directory.User
	for _, u := range f.users {
		if !f.memberships[orgID][u.ID] {
			continue
		}
		if params.Email != "" && !strings.EqualFold(u.Email, params.Email) {
			continue
		}
		if params.ExternalID != "" && (u.ScimExternalID == nil || *u.ScimExternalID != params.ExternalID) {
			continue
		}
		cp := *u
		matched = append(matched, &cp)
	}
	// Insertion-order invariance doesn't matter for these tests; sort by
	// creation time like the real store does.
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].CreatedAt.Before(matched[i].CreatedAt) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}

	total := len(matched)
	offset := params.StartIndex - 1
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + params.Count
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (f *fakeDirectory) CreateUser(_ context.Context, in directory.CreateUserInput) (*directory.User, error) {
	u := &directory.User{
		ID:             in.ID,
		Email:          strings.ToLower(in.Email),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		ScimExternalID: in.ScimExternalID,
		CreatedAt:      f.nextCreated,
		UpdatedAt:      f.nextCreated,
	}
	f.nextCreated = f.nextCreated.Add(time.Second)
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeDirectory) UpdateUser(_ context.Context, id string, in directory.UpdateUserInput) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if in.FirstName != nil {
		u.FirstName = in.FirstName
	}
	if in.LastName != nil {
		u.LastName = in.LastName
	}
	if in.ScimExternalID != nil {
		u.ScimExternalID = in.ScimExternalID
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDirectory) ReplaceUserProfile(_ context.Context, id string, firstName, lastName, externalID *string) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.ScimExternalID = externalID
	cp := *u
	return &cp, nil
}

func (f *fakeDirectory) HasMembership(_ context.Context, userID, orgID string) (bool, error) {
	return f.memberships[orgID][userID], nil
}

func (f *fakeDirectory) AttachMember(_ context.Context, userID, orgID, teamMemberName string) error {
	f.attachCalls++
	if f.memberships[orgID] == nil {
		f.memberships[orgID] = make(map[string]bool)
	}
	f.memberships[orgID][userID] = true
	f.teamNames[orgID+"|"+userID] = teamMemberName
	return nil
}

func (f *fakeDirectory) RevokeMembership(_ context.Context, userID, orgID string) error {
	f.revokeCalls++
	delete(f.memberships[orgID], userID)
	delete(f.teamNames, orgID+"|"+userID)
	return nil
}

func (f *fakeDirectory) SyncTeamMemberName(_ context.Context, userID, orgID, name string) error {
	if f.memberships[orgID][userID] {
		f.teamNames[orgID+"|"+userID] = name
	}
	return nil
}

const (
	testOrg  = "org-1"
	otherOrg = "org-2"
	baseURL  = "https://app.example.com"
)

func newTestService() (*Service, *fakeDirectory) {
	dir := newFakeDirectory()
	return NewService(dir, baseURL), dir
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestList_OnlyOrgMembers(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "a@acme.com", nil, nil, testOrg)
	dir.seedUser("u-2", "b@acme.com", nil, nil, testOrg)
	dir.seedUser("u-3", "c@other.com", nil, nil, otherOrg)

	resp, err := svc.List(context.Background(), testOrg, ListParams{StartIndex: 1, Count: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalResults != 2 {
		t.Errorf("expected 2 results, got %d", resp.TotalResults)
	}
	for _, r := range resp.Resources {
		if !r.Active {
			t.Errorf("listed member %s should be active", r.UserName)
		}
	}
	if len(resp.Schemas) != 1 || resp.Schemas[0] != SchemaListResponse {
		t.Errorf("unexpected schemas: %v", resp.Schemas)
	}
}

func TestList_ClampsPageWindow(t *testing.T) {
	svc, dir := newTestService()
	for i := 0; i < 3; i++ {
		dir.seedUser("u-"+string(rune('a'+i)), string(rune('a'+i))+"@acme.com", nil, nil, testOrg)
	}

	tests := []struct {
		name           string
		params         ListParams
		wantStartIndex int
		wantItems      int
	}{
		{"zero count floors to one", ListParams{StartIndex: 1, Count: 0}, 1, 1},
		{"negative start floors to one", ListParams{StartIndex: -10, Count: 10}, 1, 3},
		{"oversized count is capped", ListParams{StartIndex: 1, Count: 100000}, 1, 3},
		{"window beyond total is empty", ListParams{StartIndex: 10, Count: 10}, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.List(context.Background(), testOrg, tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StartIndex != tt.wantStartIndex {
				t.Errorf("startIndex = %d, want %d", resp.StartIndex, tt.wantStartIndex)
			}
			if resp.ItemsPerPage != tt.wantItems {
				t.Errorf("itemsPerPage = %d, want %d", resp.ItemsPerPage, tt.wantItems)
			}
			if resp.TotalResults != 3 {
				t.Errorf("totalResults = %d, want 3", resp.TotalResults)
			}
		})
	}
}

func TestList_Filters(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, testOrg)
	u2 := dir.seedUser("u-2", "bob@acme.com", nil, nil, testOrg)
	u2.ScimExternalID = strp("ext-bob")

	tests := []struct {
		name      string
		filter    string
		wantTotal int
		wantID    string
	}{
		{"userName match", `userName eq "jane@acme.com"`, 1, "u-1"},
		{"userName case-insensitive", `userName eq "JANE@ACME.COM"`, 1, "u-1"},
		{"externalId match", `externalId eq "ext-bob"`, 1, "u-2"},
		{"no match", `userName eq "ghost@acme.com"`, 0, ""},
		{"unparsable filter is ignored", `this is not scim`, 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.List(context.Background(), testOrg, ListParams{StartIndex: 1, Count: 100, Filter: tt.filter})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.TotalResults != tt.wantTotal {
				t.Fatalf("totalResults = %d, want %d", resp.TotalResults, tt.wantTotal)
			}
			if tt.wantID != "" && resp.Resources[0].ID != tt.wantID {
				t.Errorf("expected %s, got %s", tt.wantID, resp.Resources[0].ID)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, testOrg)
	dir.seedUser("u-2", "bob@other.com", nil, nil, otherOrg)

	u, err := svc.Get(context.Background(), testOrg, "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.Active {
		t.Error("member should be active")
	}

	// Exists globally but not a member here: visible, inactive.
	u, err = svc.Get(context.Background(), testOrg, "u-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Active {
		t.Error("non-member should read active=false")
	}

	_, err = svc.Get(context.Background(), testOrg, "missing")
	se := AsError(err)
	if se == nil || se.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_NewUser(t *testing.T) {
	svc, dir := newTestService()

	res, err := svc.Create(context.Background(), testOrg, UserInput{
		UserName:   "Jane.Doe@Acme.com",
		ExternalID: "ext-1",
		Name:       &NameInput{GivenName: strp("Jane"), FamilyName: strp("Doe")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UserName != "jane.doe@acme.com" {
		t.Errorf("email should be lowercased, got %q", res.UserName)
	}
	if !res.Active {
		t.Error("created user should be active")
	}
	if res.ExternalID != "ext-1" {
		t.Errorf("expected externalId ext-1, got %q", res.ExternalID)
	}
	if dir.attachCalls != 1 {
		t.Errorf("expected one membership attach, got %d", dir.attachCalls)
	}
	if name := dir.teamNames[testOrg+"|"+res.ID]; name != "Jane Doe" {
		t.Errorf("expected team member name 'Jane Doe', got %q", name)
	}
}

func TestCreate_EmailFromEmailsEntry(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Create(context.Background(), testOrg, UserInput{
		Emails: []Email{{Value: "Jane@Acme.com", Primary: true}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UserName != "jane@acme.com" {
		t.Errorf("expected email from emails[0], got %q", res.UserName)
	}
}

func TestCreate_MissingEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), testOrg, UserInput{})
	se := AsError(err)
	if se == nil || se.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCreate_ConflictWhenActiveMember(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, testOrg)

	_, err := svc.Create(context.Background(), testOrg, UserInput{UserName: "jane@acme.com"})
	se := AsError(err)
	if se == nil || se.Status != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
	if se.ScimType != "uniqueness" {
		t.Errorf("expected scimType uniqueness, got %q", se.ScimType)
	}
}

func TestCreate_AttachesExistingUser(t *testing.T) {
	svc, dir := newTestService()
	// Exists in another org, not in testOrg.
	dir.seedUser("u-1", "jane@acme.com", strp("Jane"), strp("Doe"), otherOrg)

	res, err := svc.Create(context.Background(), testOrg, UserInput{
		UserName:   "jane@acme.com",
		ExternalID: "ext-new",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != "u-1" {
		t.Errorf("expected existing user id u-1, got %q", res.ID)
	}
	if !res.Active {
		t.Error("attached user should be active")
	}
	if res.ExternalID != "ext-new" {
		t.Errorf("expected updated externalId, got %q", res.ExternalID)
	}
	if !dir.memberships[testOrg]["u-1"] {
		t.Error("membership row should exist in the new org")
	}
	if !dir.memberships[otherOrg]["u-1"] {
		t.Error("membership in the other org must be untouched")
	}
	if len(dir.users) != 1 {
		t.Errorf("no new user row should be created, have %d", len(dir.users))
	}
}

// ---------------------------------------------------------------------------
// Replace
// ---------------------------------------------------------------------------

func TestReplace_FullReplacement(t *testing.T) {
	svc, dir := newTestService()
	u := dir.seedUser("u-1", "jane@acme.com", strp("Jane"), strp("Doe"), testOrg)
	u.ScimExternalID = strp("ext-old")

	// Absent attributes are cleared.
	res, err := svc.Replace(context.Background(), testOrg, "u-1", UserInput{
		UserName: "jane@acme.com",
		Name:     &NameInput{GivenName: strp("Janet")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name.GivenName != "Janet" {
		t.Errorf("expected Janet, got %q", res.Name.GivenName)
	}
	if res.Name.FamilyName != "" {
		t.Errorf("familyName should be cleared, got %q", res.Name.FamilyName)
	}
	if res.ExternalID != "" {
		t.Errorf("externalId should be cleared, got %q", res.ExternalID)
	}
	if !res.Active {
		t.Error("omitted active must default to true")
	}
	if name := dir.teamNames[testOrg+"|u-1"]; name != "Janet" {
		t.Errorf("team member name not synced, got %q", name)
	}
}

func TestReplace_ActiveTransitions(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, testOrg)

	// Deactivate.
	res, err := svc.Replace(context.Background(), testOrg, "u-1", UserInput{
		UserName: "jane@acme.com",
		Active:   boolp(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Active {
		t.Error("expected inactive after replace with active=false")
	}
	if dir.revokeCalls != 1 {
		t.Errorf("expected one revoke, got %d", dir.revokeCalls)
	}

	// Reactivate.
	res, err = svc.Replace(context.Background(), testOrg, "u-1", UserInput{
		UserName: "jane@acme.com",
		Active:   boolp(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Active {
		t.Error("expected active after replace with active=true")
	}
	if dir.attachCalls != 1 {
		t.Errorf("expected one attach, got %d", dir.attachCalls)
	}
}

func TestReplace_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Replace(context.Background(), testOrg, "missing", UserInput{UserName: "x@y.z"})
	se := AsError(err)
	if se == nil || se.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Patch
// ---------------------------------------------------------------------------

func TestPatch_FlattenedPaths(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", strp("Jane"), strp("Doe"), testOrg)

	res, err := svc.Patch(context.Background(), testOrg, "u-1", PatchOp{
		Operations: []PatchOperation{
			{Op: "replace", Path: "name.givenName", Value: "Janet"},
			{Op: "replace", Path: "externalId", Value: "ext-9"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name.GivenName != "Janet" {
		t.Errorf("expected Janet, got %q", res.Name.GivenName)
	}
	if res.Name.FamilyName != "Doe" {
		t.Errorf("untouched familyName changed: %q", res.Name.FamilyName)
	}
	if res.ExternalID != "ext-9" {
		t.Errorf("expected externalId ext-9, got %q", res.ExternalID)
	}
	if name := dir.teamNames[testOrg+"|u-1"]; name != "Janet Doe" {
		t.Errorf("team member name not synced, got %q", name)
	}
}

func TestPatch_BulkFormEquivalence(t *testing.T) {
	mkPatch := func(flattened bool) PatchOp {
		if flattened {
			return PatchOp{Operations: []PatchOperation{
				{Op: "replace", Path: "active", Value: false},
				{Op: "replace", Path: "name.givenName", Value: "Janet"},
			}}
		}
		return PatchOp{Operations: []PatchOperation{
			{Op: "replace", Value: map[string]any{
				"active": false,
				"name":   map[string]any{"givenName": "Janet"},
			}},
		}}
	}

	for _, form := range []struct {
		name      string
		flattened bool
	}{{"flattened", true}, {"bulk", false}} {
		t.Run(form.name, func(t *testing.T) {
			svc, dir := newTestService()
			dir.seedUser("u-1", "jane@acme.com", strp("Jane"), strp("Doe"), testOrg)

			res, err := svc.Patch(context.Background(), testOrg, "u-1", mkPatch(form.flattened))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Active {
				t.Error("expected inactive")
			}
			if res.Name.GivenName != "Janet" {
				t.Errorf("expected Janet, got %q", res.Name.GivenName)
			}
			if dir.revokeCalls != 1 {
				t.Errorf("expected one revoke, got %d", dir.revokeCalls)
			}
		})
	}
}

func TestPatch_ActiveStringTrue(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, "")

	res, err := svc.Patch(context.Background(), testOrg, "u-1", PatchOp{
		Operations: []PatchOperation{
			{Op: "replace", Path: "active", Value: "True"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Active {
		t.Error(`string "True" should activate`)
	}
	if dir.attachCalls != 1 {
		t.Errorf("expected one attach, got %d", dir.attachCalls)
	}
}

func TestPatch_IgnoresNonReplaceOps(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", strp("Jane"), nil, testOrg)

	res, err := svc.Patch(context.Background(), testOrg, "u-1", PatchOp{
		Operations: []PatchOperation{
			{Op: "add", Path: "name.givenName", Value: "Ignored"},
			{Op: "remove", Path: "active"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name.GivenName != "Jane" {
		t.Errorf("add op must be ignored, got %q", res.Name.GivenName)
	}
	if !res.Active {
		t.Error("remove op must be ignored; user should stay active")
	}
}

func TestPatch_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Patch(context.Background(), testOrg, "missing", PatchOp{})
	se := AsError(err)
	if se == nil || se.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Deactivate
// ---------------------------------------------------------------------------

func TestDeactivate(t *testing.T) {
	svc, dir := newTestService()
	dir.seedUser("u-1", "jane@acme.com", nil, nil, testOrg)

	if err := svc.Deactivate(context.Background(), testOrg, "u-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.memberships[testOrg]["u-1"] {
		t.Error("membership should be revoked")
	}
	if _, ok := dir.users["u-1"]; !ok {
		t.Error("user row must never be deleted")
	}

	// Second deactivation is a no-op, not an error.
	if err := svc.Deactivate(context.Background(), testOrg, "u-1"); err != nil {
		t.Fatalf("repeat deactivate should succeed: %v", err)
	}
	if dir.revokeCalls != 1 {
		t.Errorf("expected exactly one revoke, got %d", dir.revokeCalls)
	}

	err := svc.Deactivate(context.Background(), testOrg, "missing")
	se := AsError(err)
	if se == nil || se.Status != 404 {
		t.Fatalf("expected 404 for unknown user, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Patch value coercion helpers
// ---------------------------------------------------------------------------

func TestActiveValue(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{"True", true},
		{false, false},
		{"true", false},
		{"false", false},
		{nil, false},
		{1, false},
	}
	for _, tt := range tests {
		if got := activeValue(tt.in); got != tt.want {
			t.Errorf("activeValue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"x", "x"},
		{nil, ""},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := stringValue(tt.in); got != tt.want {
			t.Errorf("stringValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
