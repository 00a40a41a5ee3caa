package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AssignmentRepository is the storage surface the role assignment service
// needs. Lookups return (nil, nil) when the record does not exist.
type AssignmentRepository interface {
	GetUserByID(ctx context.Context, userID int64) (*DirectoryUser, error)
	SaveUserRole(ctx context.Context, user *DirectoryUser) error
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	FindUserHoldingRole(ctx context.Context, roleName string, excludeUserID int64) (*DirectoryUser, error)
	UsersPendingAssignment(ctx context.Context, now time.Time) ([]DirectoryUser, error)
	DemoteStaleUnassigned(ctx context.Context, cutoff time.Time) (int64, error)
}

// AssignmentService owns the role fields on user records. No other component
// writes them.
type AssignmentService struct {
	repo   AssignmentRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewAssignmentService(repo AssignmentRepository, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// AssignRole attaches roleName to the user. All failures come back as a
// result object; nothing escapes this boundary as an error.
//
// The SuperAdmin uniqueness check is check-then-act over two store calls with
// no lock: two concurrent elevations of different users can both pass the
// scan before either write lands. That matches the source system's behavior
// and is deliberately not tightened here.
func (s *AssignmentService) AssignRole(ctx context.Context, userID int64, roleName string) AssignResult {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("assign role: user lookup failed", "user_id", userID, "error", err)
		return AssignResult{Success: false, Message: "Internal server error"}
	}
	if user == nil {
		return AssignResult{Success: false, Message: "User not found"}
	}

	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		s.logger.Error("assign role: role lookup failed", "role", roleName, "error", err)
		return AssignResult{Success: false, Message: "Internal server error"}
	}
	if role == nil {
		return AssignResult{Success: false, Message: "Invalid role specified"}
	}

	if roleName == SuperAdminRole {
		holder, err := s.repo.FindUserHoldingRole(ctx, SuperAdminRole, userID)
		if err != nil {
			s.logger.Error("assign role: super admin scan failed", "error", err)
			return AssignResult{Success: false, Message: "Internal server error"}
		}
		if holder != nil {
			return AssignResult{Success: false, Message: "A SuperAdmin already exists"}
		}
	}

	if roleName == DefaultRole {
		user.Roles = DefaultRole
		user.RoleID = nil
		user.Status = StatusInactive
	} else {
		names := user.RoleNames()
		if !user.HoldsRole(roleName) {
			names = append(names, roleName)
		}
		user.Roles = strings.Join(names, ",")
		roleID := role.ID
		user.RoleID = &roleID
		user.Status = StatusActive
	}
	user.UpdatedAt = s.now()

	if err := s.repo.SaveUserRole(ctx, user); err != nil {
		s.logger.Error("assign role: save failed", "user_id", userID, "role", roleName, "error", err)
		return AssignResult{Success: false, Message: "Internal server error"}
	}

	return AssignResult{Success: true, Message: fmt.Sprintf("Role %s assigned successfully", roleName)}
}

// UsersPendingRoleAssignment lists users still waiting for a role: anyone
// without a role foreign key (unless restricted), plus recently created users
// that are still inactive. Used by onboarding tooling; pure read.
func (s *AssignmentService) UsersPendingRoleAssignment(ctx context.Context) ([]DirectoryUser, error) {
	users, err := s.repo.UsersPendingAssignment(ctx, s.now())
	if err != nil {
		s.logger.Error("pending assignment query failed", "error", err)
		return nil, err
	}
	return users, nil
}

// DemoteStaleUnassignedUsers deactivates users that never received a role
// within the grace period. Idempotent; safe to re-run on any schedule.
func (s *AssignmentService) DemoteStaleUnassignedUsers(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-staleUnassignedAfter)
	demoted, err := s.repo.DemoteStaleUnassigned(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale user sweep failed", "error", err)
		return 0, err
	}
	if demoted > 0 {
		s.logger.Info("demoted stale unassigned users", "count", demoted)
	}
	return demoted, nil
}
