package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with roles, permissions and sample users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			for _, table := range []string{"role_grants", "permissions", "users", "roles"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		roleIDs := seedRoles(db)
		permissionIDs := seedPermissions(db)
		seedGrants(db, roleIDs["Admin"], permissionIDs)
		seedUsers(db, roleIDs)

		fmt.Println("Seeding completed")
	},
}

func seedRoles(db *gorm.DB) map[string]string {
	roles := []string{"SuperAdmin", "Admin", "Finance", "Users"}
	ids := make(map[string]string, len(roles))

	for _, name := range roles {
		var id string
		row := db.Raw("SELECT role_id FROM roles WHERE role_name = ?", name).Row()
		if err := row.Scan(&id); err == nil {
			ids[name] = id
			continue
		}

		id = uuid.NewString()
		if err := db.Exec(
			"INSERT INTO roles (role_id, role_name, created_at, updated_at) VALUES (?, ?, now(), now())",
			id, name).Error; err != nil {
			log.Fatalf("failed to insert role %s: %v", name, err)
		}
		ids[name] = id
		fmt.Println("Seeded role:", name)
	}
	return ids
}

func seedPermissions(db *gorm.DB) []string {
	permissions := []struct {
		API    string
		Name   string
		Module string
		Route  string
	}{
		{"write", "Assign Role", "User Management", "users"},
		{"view", "View Users", "User Management", "users"},
		{"write", "Create Permission", "Permission Management", "permissions"},
		{"view", "View Permissions", "Permission Management", "permissions"},
		{"edit", "Edit Permission", "Permission Management", "permissions"},
		{"delete", "Delete Permission", "Permission Management", "permissions"},
		{"write", "Create Role", "Role Management", "roles"},
		{"view", "View Roles", "Role Management", "roles"},
		{"edit", "Edit Role", "Role Management", "roles"},
		{"delete", "Delete Role", "Role Management", "roles"},
		{"write", "Assign Permission", "Role Management", "role-permissions"},
		{"delete", "Remove Permission", "Role Management", "role-permissions"},
		{"view", "View Role Permissions", "Role Management", "role-permissions"},
		{"edit", "Update Role Permissions", "Role Management", "role-permissions"},
	}

	ids := make([]string, 0, len(permissions))
	for _, p := range permissions {
		var id string
		row := db.Raw(
			"SELECT permission_id FROM permissions WHERE api = ? AND module = ? AND route = ?",
			p.API, p.Module, p.Route).Row()
		if err := row.Scan(&id); err == nil {
			ids = append(ids, id)
			continue
		}

		id = uuid.NewString()
		if err := db.Exec(
			"INSERT INTO permissions (permission_id, api, name, module, route, created_at, updated_at) VALUES (?, ?, ?, ?, ?, now(), now())",
			id, p.API, p.Name, p.Module, p.Route).Error; err != nil {
			log.Fatalf("failed to insert permission %s: %v", p.Name, err)
		}
		ids = append(ids, id)
		fmt.Println("Seeded permission:", p.Name)
	}
	return ids
}

// seedGrants gives the Admin role every seeded permission. SuperAdmin needs
// no grants; the checker bypasses the tuple scan for it.
func seedGrants(db *gorm.DB, adminRoleID string, permissionIDs []string) {
	for _, permissionID := range permissionIDs {
		var exists int
		row := db.Raw(
			"SELECT 1 FROM role_grants WHERE role_id = ? AND permission_id = ?",
			adminRoleID, permissionID).Row()
		if err := row.Scan(&exists); err == nil {
			continue
		}

		if err := db.Exec(
			"INSERT INTO role_grants (id, role_id, permission_id, is_granted, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())",
			uuid.NewString(), adminRoleID, permissionID).Error; err != nil {
			log.Fatalf("failed to grant permission to admin role: %v", err)
		}
	}
	fmt.Println("Granted all permissions to Admin role")
}

func seedUsers(db *gorm.DB, roleIDs map[string]string) {
	password := "password"
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	users := []struct {
		Email  string
		Name   string
		Role   string
		Roles  string
		Status string
	}{
		{"root@tradecore.io", "Root", "SuperAdmin", "SuperAdmin", "active"},
		{"admin@tradecore.io", "Admin", "Admin", "Admin", "active"},
		{"newhire@tradecore.io", "New Hire", "", "Users", "inactive"},
	}

	for _, u := range users {
		var exists int
		row := db.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row()
		if err := row.Scan(&exists); err == nil {
			fmt.Println("user already exists:", u.Email)
			continue
		}

		var roleID interface{}
		if u.Role != "" {
			roleID = roleIDs[u.Role]
		}
		if err := db.Exec(
			"INSERT INTO users (email, name, password_hash, role_id, roles, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, now(), now())",
			u.Email, u.Name, string(hash), roleID, u.Roles, u.Status).Error; err != nil {
			log.Fatalf("failed to insert user %s: %v", u.Email, err)
		}
		fmt.Println("Seeded user:", u.Email)
	}
}
