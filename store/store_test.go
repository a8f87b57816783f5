package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
)

func newTestStore(t *testing.T) *Gorm {
	t.Helper()
	g, err := Open(":memory:", logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func strPtr(s string) *string { return &s }

func TestGorm_CreateUser_DuplicateEmail(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "alice@example.com", Username: "alice"}
	if err := g.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := &User{Email: "alice@example.com", Username: "alice2"}
	err := g.CreateUser(ctx, dup)
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	field, ok := IsDuplicate(err)
	if !ok {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if field != DupEmail {
		t.Errorf("expected conflicting field email, got %s", field)
	}
}

func TestGorm_CreateUser_DuplicateUsername(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	if err := g.CreateUser(ctx, &User{Email: "a@example.com", Username: "taken"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := g.CreateUser(ctx, &User{Email: "b@example.com", Username: "taken"})
	field, ok := IsDuplicate(err)
	if !ok || field != DupUsername {
		t.Errorf("expected username conflict, got field=%s ok=%v err=%v", field, ok, err)
	}
}

func TestGorm_CreateUser_DuplicatePhone(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	if err := g.CreateUser(ctx, &User{Email: "a@example.com", Username: "a", Phone: strPtr("+15550001")}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := g.CreateUser(ctx, &User{Email: "b@example.com", Username: "b", Phone: strPtr("+15550001")})
	field, ok := IsDuplicate(err)
	if !ok || field != DupPhone {
		t.Errorf("expected phone conflict, got field=%s ok=%v err=%v", field, ok, err)
	}
}

func TestGorm_FindUser_AbsentIsNil(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	u, err := g.FindUserByEmail(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("absent lookup must not error: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil for absent user, got %+v", u)
	}
}

func TestGorm_FindUser_HidesPasswordHash(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	if err := g.CreateUser(ctx, &User{Email: "alice@example.com", Username: "alice", PasswordHash: "secret-hash"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := g.FindUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.PasswordHash != "" {
		t.Error("ordinary reads must not include the password hash")
	}

	cred, err := g.FindUserByEmailWithCredential(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find with credential: %v", err)
	}
	if cred.PasswordHash != "secret-hash" {
		t.Errorf("credential lookup must include the hash, got %q", cred.PasswordHash)
	}
}

func TestGorm_TwoLevelResolution(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	read := &Permission{Name: "posts:read"}
	write := &Permission{Name: "posts:write"}
	for _, p := range []*Permission{read, write} {
		if err := g.CreatePermission(ctx, p); err != nil {
			t.Fatalf("create permission: %v", err)
		}
	}

	editor := &Role{Name: "editor"}
	if err := g.CreateRole(ctx, editor); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := g.UpdateRolePermissions(ctx, editor.ID, []uuid.UUID{read.ID, write.ID}); err != nil {
		t.Fatalf("set role permissions: %v", err)
	}

	u := &User{Email: "alice@example.com", Username: "alice", RoleIDs: []uuid.UUID{editor.ID}}
	if err := g.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := g.FindUserByIDWithRolesAndPermissions(ctx, u.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got.Roles) != 1 {
		t.Fatalf("expected 1 resolved role, got %d", len(got.Roles))
	}
	if len(got.Roles[0].Permissions) != 2 {
		t.Errorf("expected 2 resolved permissions, got %d", len(got.Roles[0].Permissions))
	}
	if !got.Roles[0].HasPermission("posts:write") {
		t.Error("expected posts:write to be resolved")
	}
}

func TestGorm_FindRolesByIDs_OmitsUnknown(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	r := &Role{Name: "viewer"}
	if err := g.CreateRole(ctx, r); err != nil {
		t.Fatalf("create role: %v", err)
	}

	roles, err := g.FindRolesByIDs(ctx, []uuid.UUID{r.ID, uuid.New(), uuid.New()})
	if err != nil {
		t.Fatalf("find roles: %v", err)
	}
	if len(roles) != 1 {
		t.Errorf("unknown ids must be omitted, got %d roles", len(roles))
	}
}

func TestGorm_CreateRole_DuplicateName(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	if err := g.CreateRole(ctx, &Role{Name: "editor"}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	err := g.CreateRole(ctx, &Role{Name: "editor"})
	field, ok := IsDuplicate(err)
	if !ok || field != DupRoleName {
		t.Errorf("expected role_name conflict, got field=%s ok=%v err=%v", field, ok, err)
	}
}

func TestGorm_CreatePermission_DuplicateName(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	if err := g.CreatePermission(ctx, &Permission{Name: "users:read"}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	err := g.CreatePermission(ctx, &Permission{Name: "users:read"})
	field, ok := IsDuplicate(err)
	if !ok || field != DupPermissionName {
		t.Errorf("expected permission_name conflict, got field=%s ok=%v err=%v", field, ok, err)
	}
}

func TestGorm_DeleteRole_CleansAssignments(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	r := &Role{Name: "temp"}
	if err := g.CreateRole(ctx, r); err != nil {
		t.Fatalf("create role: %v", err)
	}
	u := &User{Email: "a@example.com", Username: "a", RoleIDs: []uuid.UUID{r.ID}}
	if err := g.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := g.DeleteRole(ctx, r.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}

	ids, err := g.UserRoleIDs(ctx, u.ID)
	if err != nil {
		t.Fatalf("user role ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("role assignment must be removed with the role, got %v", ids)
	}
}

func TestGorm_ExternalIdentity_UniquePair(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	owner := &User{Email: "alice@example.com", Username: "alice"}
	if err := g.CreateUser(ctx, owner); err != nil {
		t.Fatalf("create user: %v", err)
	}

	id1 := &ExternalIdentity{Provider: "google", Subject: "g-123", UserID: owner.ID}
	if err := g.CreateExternalIdentity(ctx, id1); err != nil {
		t.Fatalf("create identity: %v", err)
	}

	err := g.CreateExternalIdentity(ctx, &ExternalIdentity{Provider: "google", Subject: "g-123", UserID: owner.ID})
	field, ok := IsDuplicate(err)
	if !ok || field != DupIdentity {
		t.Errorf("expected external_identity conflict, got field=%s ok=%v err=%v", field, ok, err)
	}

	// Same subject under a different provider is a distinct identity.
	if err := g.CreateExternalIdentity(ctx, &ExternalIdentity{Provider: "github", Subject: "g-123", UserID: owner.ID}); err != nil {
		t.Errorf("distinct provider must not conflict: %v", err)
	}
}

func TestGorm_RotateRefreshSession_Outcomes(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	chain := uuid.New()
	rot0 := uuid.New()
	s := &RefreshSession{ChainID: chain, UserID: userID, RotationID: rot0, ExpiresAt: time.Now().Add(time.Hour)}
	if err := g.CreateRefreshSession(ctx, s); err != nil {
		t.Fatalf("create session: %v", err)
	}

	rot1 := uuid.New()
	outcome, err := g.RotateRefreshSession(ctx, chain, rot0, rot1, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateOK {
		t.Fatalf("expected RotateOK, got %v", outcome)
	}

	// Presenting the superseded marker again signals reuse.
	outcome, err = g.RotateRefreshSession(ctx, chain, rot0, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateStale {
		t.Errorf("expected RotateStale for superseded marker, got %v", outcome)
	}

	// A revoked chain reports missing.
	if err := g.DeleteRefreshChain(ctx, chain); err != nil {
		t.Fatalf("delete chain: %v", err)
	}
	outcome, err = g.RotateRefreshSession(ctx, chain, rot1, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateMissing {
		t.Errorf("expected RotateMissing after revocation, got %v", outcome)
	}
}

func TestGorm_DeleteUserSessions(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		s := &RefreshSession{ChainID: uuid.New(), UserID: userID, RotationID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
		if err := g.CreateRefreshSession(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	chain := uuid.New()
	rot := uuid.New()
	if err := g.CreateRefreshSession(ctx, &RefreshSession{ChainID: chain, UserID: userID, RotationID: rot, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := g.DeleteUserSessions(ctx, userID); err != nil {
		t.Fatalf("delete user sessions: %v", err)
	}
	outcome, err := g.RotateRefreshSession(ctx, chain, rot, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateMissing {
		t.Errorf("expected all chains revoked, got %v", outcome)
	}
}

func TestGorm_ActionToken_SingleUse(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	tok := &ActionToken{Digest: "digest-1", UserID: userID, Purpose: PurposeVerifyEmail, ExpiresAt: time.Now().Add(time.Hour)}
	if err := g.SaveActionToken(ctx, tok); err != nil {
		t.Fatalf("save token: %v", err)
	}

	got, err := g.ConsumeActionToken(ctx, "digest-1", PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got == nil || got.UserID != userID {
		t.Fatalf("expected token for user %s, got %+v", userID, got)
	}

	again, err := g.ConsumeActionToken(ctx, "digest-1", PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if again != nil {
		t.Error("a consumed token must not be usable twice")
	}
}

func TestGorm_ActionToken_WrongPurpose(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	tok := &ActionToken{Digest: "digest-2", UserID: uuid.New(), Purpose: PurposeResetPassword, ExpiresAt: time.Now().Add(time.Hour)}
	if err := g.SaveActionToken(ctx, tok); err != nil {
		t.Fatalf("save token: %v", err)
	}
	got, err := g.ConsumeActionToken(ctx, "digest-2", PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("a reset token must not verify an email")
	}
}

func TestGorm_ActionToken_Expired(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	tok := &ActionToken{Digest: "digest-3", UserID: uuid.New(), Purpose: PurposeVerifyEmail, ExpiresAt: time.Now().Add(-time.Minute)}
	if err := g.SaveActionToken(ctx, tok); err != nil {
		t.Fatalf("save token: %v", err)
	}
	got, err := g.ConsumeActionToken(ctx, "digest-3", PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("an expired token must not be consumable")
	}
}

func TestGorm_SetUserRoles_Replaces(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	r1 := &Role{Name: "a"}
	r2 := &Role{Name: "b"}
	for _, r := range []*Role{r1, r2} {
		if err := g.CreateRole(ctx, r); err != nil {
			t.Fatalf("create role: %v", err)
		}
	}
	u := &User{Email: "x@example.com", Username: "x", RoleIDs: []uuid.UUID{r1.ID}}
	if err := g.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := g.SetUserRoles(ctx, u.ID, []uuid.UUID{r2.ID}); err != nil {
		t.Fatalf("set roles: %v", err)
	}
	ids, err := g.UserRoleIDs(ctx, u.ID)
	if err != nil {
		t.Fatalf("role ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != r2.ID {
		t.Errorf("expected roles replaced with [%s], got %v", r2.ID, ids)
	}
}

func TestGorm_SetUserBanned_NotFound(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	err := g.SetUserBanned(ctx, uuid.New(), true)
	if !errors.HasCode(err, errors.ErrCodeUserNotFound) {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestGorm_ListUsers_Filter(t *testing.T) {
	g := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*User{
		{Email: "a@example.com", Username: "a", Verified: true},
		{Email: "b@example.com", Username: "b"},
		{Email: "c@example.com", Username: "c", Banned: true},
	} {
		if err := g.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	verified := true
	users, err := g.ListUsers(ctx, UserFilter{Verified: &verified})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].Email != "a@example.com" {
		t.Errorf("expected only the verified user, got %+v", users)
	}

	banned := true
	users, err = g.ListUsers(ctx, UserFilter{Banned: &banned})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].Email != "c@example.com" {
		t.Errorf("expected only the banned user, got %+v", users)
	}
}
