package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"task-manager/apperrors"
	"task-manager/authz"
	"task-manager/logging"
	"task-manager/models"
	"task-manager/repositories"

	"golang.org/x/crypto/bcrypt"
)

// AuthResponse is returned by register, login and profile updates.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// UserService is the identity directory: registration, login, profiles and
// the authenticate(token) capability the HTTP layer relies on.
type UserService struct {
	Users            repositories.UserRepository
	Tasks            repositories.TaskRepository
	JWTService       *JWTService
	AdminInviteToken string
	BlackList        map[string]bool
	Now              func() time.Time
}

func NewUserService(users repositories.UserRepository, tasks repositories.TaskRepository, jwtService *JWTService, adminInviteToken string) *UserService {
	return &UserService{
		Users:            users,
		Tasks:            tasks,
		JWTService:       jwtService,
		AdminInviteToken: adminInviteToken,
		Now:              func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "failed to hash password")
	}
	return string(hashed), nil
}

// Register creates a member, or an admin when the invite token matches the
// configured one. An empty configured token disables admin sign-up.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	role := models.RoleMember
	if req.AdminInviteToken != "" {
		if s.AdminInviteToken == "" || subtle.ConstantTimeCompare([]byte(req.AdminInviteToken), []byte(s.AdminInviteToken)) != 1 {
			logging.Logger.Warnf("Event ID: REGISTER_INVALID_INVITE, Description: invalid admin invite token for %s", req.Email)
			return nil, apperrors.Validation(map[string]string{"adminInviteToken": "invalid value"})
		}
		role = models.RoleAdmin
	}

	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, req.AvatarURL, role)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAdmin bootstraps an administrator without an invite token.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	req := models.RegisterRequest{Name: name, Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.createUser(ctx, name, email, password, "", models.RoleAdmin)
}

func (s *UserService) createUser(ctx context.Context, name, email, password, avatarURL string, role models.Role) (*models.User, error) {
	if err := s.checkBlackList(password); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	user := &models.User{
		ID:        repositories.NewID(),
		Name:      strings.TrimSpace(name),
		Email:     normalizeEmail(email),
		Password:  hashed,
		Role:      role,
		AvatarURL: strings.TrimSpace(avatarURL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Users.Insert(ctx, user); err != nil {
		logging.Logger.Warnf("Event ID: REGISTER_FAILED, Description: failed to register %s: %v", user.Email, err)
		return nil, err
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: user %s registered as %s", user.ID, user.Role)
	return user, nil
}

// Login verifies the credentials. Unknown emails and wrong passwords yield the
// same unauthorized error.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.Users.FindByEmail(ctx, normalizeEmail(req.Email))
	if apperrors.Is(err, apperrors.KindNotFound) {
		logging.Logger.Warnf("Event ID: LOGIN_UNKNOWN_USER, Description: login attempt for unknown email %s", req.Email)
		return nil, apperrors.New(apperrors.KindUnauthorized, "invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logging.Logger.Warnf("Event ID: LOGIN_INVALID_PASSWORD, Description: invalid password for user %s", user.ID)
		return nil, apperrors.New(apperrors.KindUnauthorized, "invalid email or password")
	}

	logging.Logger.Infof("Event ID: LOGIN_SUCCESS, Description: user %s logged in", user.ID)
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.JWTService.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to generate token")
	}
	return &AuthResponse{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to an identity. The user must still
// exist; the role comes from the directory, not from the token.
func (s *UserService) Authenticate(ctx context.Context, token string) (authz.Identity, error) {
	claims, err := s.JWTService.ValidateToken(token)
	if err != nil {
		return authz.Identity{}, apperrors.Wrap(apperrors.KindUnauthorized, err, "invalid or expired token")
	}

	user, err := s.Users.FindByID(ctx, claims.UserID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return authz.Identity{}, apperrors.New(apperrors.KindUnauthorized, "user no longer exists")
	}
	if err != nil {
		return authz.Identity{}, err
	}
	return authz.Identity{UserID: user.ID, Role: user.Role}, nil
}

func (s *UserService) Profile(ctx context.Context, actor authz.Identity) (*models.User, error) {
	return s.Users.FindByID(ctx, actor.UserID)
}

// UpdateProfile edits the caller's own record and returns a fresh token.
func (s *UserService) UpdateProfile(ctx context.Context, actor authz.Identity, req models.ProfileUpdateRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	user, err := s.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Password != nil {
		if err := s.checkBlackList(*req.Password); err != nil {
			return nil, err
		}
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}
	user.UpdatedAt = s.Now()

	if err := s.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: PROFILE_UPDATED, Description: user %s updated their profile", user.ID)
	return s.issue(user)
}

// GetUser is open to any authenticated caller.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.Users.FindByID(ctx, id)
}

// ListUsers returns the directory, optionally narrowed to one role.
func (s *UserService) ListUsers(ctx context.Context, actor authz.Identity, role models.Role) ([]models.User, error) {
	if err := authz.Authorize(actor, authz.ListUsers, authz.Resource{}).Err(); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, apperrors.Validation(map[string]string{"role": "invalid value"})
	}
	return s.Users.FindByRole(ctx, role)
}

// DeleteUser removes a user that no task references any more.
func (s *UserService) DeleteUser(ctx context.Context, actor authz.Identity, id string) error {
	if err := authz.Authorize(actor, authz.DeleteUser, authz.Resource{}).Err(); err != nil {
		logging.Logger.Warnf("Event ID: DELETE_USER_FORBIDDEN, Description: user %s may not delete users", actor.UserID)
		return err
	}
	if id == actor.UserID {
		return apperrors.New(apperrors.KindConflict, "administrators cannot delete themselves")
	}
	if _, err := s.Users.FindByID(ctx, id); err != nil {
		return err
	}

	refs, err := s.Tasks.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperrors.Newf(apperrors.KindConflict, "user %s is still referenced by %d tasks", id, refs)
	}

	if err := s.Users.Delete(ctx, id); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: USER_DELETED, Description: user %s deleted by %s", id, actor.UserID)
	return nil
}
