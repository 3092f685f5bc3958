package user

import "testing"

func TestUser_roles(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		isAdmin   bool
		isTeacher bool
		isStudent bool
	}{
		{name: "no roles"},
		{name: "student", roles: StudentRoles, isStudent: true},
		{name: "teacher", roles: TeacherRoles, isTeacher: true},
		{name: "admin owner", roles: []string{RoleAdminOwner}, isAdmin: true},
		{name: "all roles", roles: AllRoles, isAdmin: true, isTeacher: true, isStudent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.roles}
			if got := usr.IsAdmin(); got != tt.isAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.isAdmin)
			}
			if got := usr.IsTeacher(); got != tt.isTeacher {
				t.Errorf("IsTeacher() = %v, want %v", got, tt.isTeacher)
			}
			if got := usr.IsStudent(); got != tt.isStudent {
				t.Errorf("IsStudent() = %v, want %v", got, tt.isStudent)
			}
		})
	}
}

func TestUser_password(t *testing.T) {
	var usr User
	if err := usr.CheckPassword("s3cr3t"); err == nil {
		t.Error("CheckPassword() on a user without a password should fail")
	}

	if err := usr.SetPassword("s3cr3t"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("s3cr3t"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("nope"); err == nil {
		t.Error("CheckPassword() with the wrong password should fail")
	}
}

func TestUser_active(t *testing.T) {
	var usr User
	if usr.Active() {
		t.Error("Active() should be false when unset")
	}
	usr.SetActive(true)
	if !usr.Active() {
		t.Error("Active() should be true after SetActive(true)")
	}
	usr.SetActive(false)
	if usr.Active() {
		t.Error("Active() should be false after SetActive(false)")
	}
}
