package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	teamserrors "eventbook/internal/teams/errors"
	"eventbook/internal/teams/repository"
	"eventbook/internal/teams/validator"
	"eventbook/pkg/config"
	apperrors "eventbook/pkg/errors"
	"eventbook/pkg/model"
	"eventbook/pkg/notify"
	"eventbook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const joinLinkPathPrefix = "/api/v1/teams/join/link/"

const joinInvitePathPrefix = "/api/v1/teams/join/invite/"

// Notifier publishes team notifications.
type Notifier interface {
	TeamInvited(ctx context.Context, payload notify.TeamInvitedPayload)
}

type TeamService interface {
	Create(ctx context.Context, userID string, team *model.Team) (*model.Team, error)
	GetByID(ctx context.Context, id string) (*model.Team, error)
	Invite(ctx context.Context, userID string, teamID string, req *model.TeamInviteRequest) error
	JoinByInvite(ctx context.Context, userID string, token string) (*model.Team, error)
	JoinByLink(ctx context.Context, userID string, token string) (*model.Team, error)
	Members(ctx context.Context, teamID string, limit int, offset int64) ([]*model.TeamMember, int64, error)
}

type teamService struct {
	repo      repository.TeamRepository
	members   repository.TeamMemberRepository
	notifier  Notifier
	validator *validator.TeamValidator
	cfg       *config.Config
}

func NewTeamService(
	repo repository.TeamRepository,
	members repository.TeamMemberRepository,
	notifier Notifier,
	validator *validator.TeamValidator,
	cfg *config.Config,
) TeamService {
	return &teamService{
		repo:      repo,
		members:   members,
		notifier:  notifier,
		validator: validator,
		cfg:       cfg,
	}
}

// Create persists a team, its shareable join link and the creator's admin
// membership in one transaction.
func (s *teamService) Create(ctx context.Context, userID string, team *model.Team) (*model.Team, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("User identification is required")
	}

	team.ID = ""
	team.CreatorID = userID
	team.Name = sanitizer.NormalizeName(team.Name)
	team.Description = sanitizer.TrimAndNormalize(team.Description)

	if err := s.validator.Validate(team); err != nil {
		s.cfg.Log.Warn("Team validation failed", "error", err)
		return nil, apperrors.Validation("Team validation failed", map[string]any{"error": err.Error()})
	}

	link := joinLinkPathPrefix + uuid.NewString()

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, team); err != nil {
			return err
		}

		if err := s.repo.SetRegistrationLink(sessCtx, team.ID, link); err != nil {
			return err
		}

		creator := &model.TeamMember{
			TeamID:  team.ID,
			UserID:  userID,
			IsAdmin: true,
		}
		return s.members.Create(sessCtx, creator)
	})
	if err != nil {
		if errors.Is(err, teamserrors.ErrDuplicateName) {
			return nil, apperrors.Conflict("Team name is already taken")
		}
		s.cfg.Log.Error("Failed to create team", "name", team.Name, "error", err)
		return nil, apperrors.Internal("Failed to create team", err)
	}

	team.RegistrationLink = link

	s.cfg.Log.Info("Team created",
		"team_id", team.ID,
		"name", team.Name,
		"creator_id", userID,
	)

	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id string) (*model.Team, error) {
	return s.findTeam(ctx, id)
}

// Invite creates a pending membership carrying a one-time token and
// notifies the invitee with a personal join URL. Only team admins may
// invite.
func (s *teamService) Invite(ctx context.Context, userID string, teamID string, req *model.TeamInviteRequest) error {
	if userID == "" {
		return apperrors.Unauthorized("User identification is required")
	}

	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.ValidateInvite(req); err != nil {
		s.cfg.Log.Warn("Team invite validation failed", "team_id", teamID, "error", err)
		return apperrors.Validation("Invite validation failed", map[string]any{"error": err.Error()})
	}

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if err := s.requireAdmin(ctx, team.ID, userID); err != nil {
		return err
	}

	token := uuid.NewString()
	invite := &model.TeamMember{
		TeamID:      team.ID,
		InviteToken: token,
	}
	if err := s.members.Create(ctx, invite); err != nil {
		s.cfg.Log.Error("Failed to create team invite", "team_id", team.ID, "error", err)
		return apperrors.Internal("Failed to create invite", err)
	}

	s.cfg.Log.Info("Team invite created",
		"team_id", team.ID,
		"invited_by", userID,
	)

	s.notifier.TeamInvited(ctx, notify.TeamInvitedPayload{
		TeamID:   team.ID,
		TeamName: team.Name,
		Email:    req.Email,
		JoinURL:  s.cfg.PublicBaseURL + joinInvitePathPrefix + token,
	})

	return nil
}

// JoinByInvite claims a pending invite row for the user. The token is
// single use.
func (s *teamService) JoinByInvite(ctx context.Context, userID string, token string) (*model.Team, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("User identification is required")
	}

	invite, err := s.members.FindByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, teamserrors.ErrInviteNotFound) {
			return nil, apperrors.NotFound("Invite")
		}
		return nil, apperrors.Internal("Failed to look up invite", err)
	}

	team, err := s.findTeam(ctx, invite.TeamID)
	if err != nil {
		return nil, err
	}

	if _, err := s.members.FindByTeamAndUser(ctx, team.ID, userID); err == nil {
		return nil, apperrors.Conflict("You are already a member of this team")
	} else if !errors.Is(err, teamserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check team membership", err)
	}

	if err := s.members.ClaimInvite(ctx, invite.ID, userID); err != nil {
		switch {
		case errors.Is(err, teamserrors.ErrInviteNotFound):
			return nil, apperrors.NotFound("Invite")
		case errors.Is(err, teamserrors.ErrDuplicateMember):
			return nil, apperrors.Conflict("You are already a member of this team")
		default:
			return nil, apperrors.Internal("Failed to join team", err)
		}
	}

	s.cfg.Log.Info("User joined team via invite",
		"team_id", team.ID,
		"user_id", userID,
	)

	return team, nil
}

// JoinByLink adds the user through the team's shareable link. The link is
// reusable; duplicate joins are rejected.
func (s *teamService) JoinByLink(ctx context.Context, userID string, token string) (*model.Team, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("User identification is required")
	}

	team, err := s.repo.FindByRegistrationLink(ctx, joinLinkPathPrefix+token)
	if err != nil {
		if errors.Is(err, teamserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Team")
		}
		return nil, apperrors.Internal("Failed to look up team", err)
	}

	member := &model.TeamMember{
		TeamID: team.ID,
		UserID: userID,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, teamserrors.ErrDuplicateMember) {
			return nil, apperrors.Conflict("You are already a member of this team")
		}
		return nil, apperrors.Internal("Failed to join team", err)
	}

	s.cfg.Log.Info("User joined team via link",
		"team_id", team.ID,
		"user_id", userID,
	)

	return team, nil
}

func (s *teamService) Members(ctx context.Context, teamID string, limit int, offset int64) ([]*model.TeamMember, int64, error) {
	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, 0, err
	}

	var wg sync.WaitGroup
	var members []*model.TeamMember
	var total int64
	var countErr, findErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		total, countErr = s.members.CountByTeam(ctx, team.ID)
	}()
	go func() {
		defer wg.Done()
		members, findErr = s.members.FindByTeam(ctx, team.ID, limit, offset)
	}()
	wg.Wait()

	if countErr != nil {
		return nil, 0, apperrors.Internal("Failed to count team members", countErr)
	}
	if findErr != nil {
		return nil, 0, apperrors.Internal("Failed to list team members", findErr)
	}

	return members, total, nil
}

func (s *teamService) findTeam(ctx context.Context, id string) (*model.Team, error) {
	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, teamserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid team ID: %s", id))
		case errors.Is(err, teamserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Team", id)
		default:
			return nil, apperrors.Internal("Failed to find team", err)
		}
	}
	return team, nil
}

func (s *teamService) requireAdmin(ctx context.Context, teamID string, userID string) error {
	member, err := s.members.FindByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, teamserrors.ErrNotFound) {
			return apperrors.Forbidden("Only team admins can invite members")
		}
		return apperrors.Internal("Failed to check team membership", err)
	}
	if !member.IsAdmin {
		return apperrors.Forbidden("Only team admins can invite members")
	}
	return nil
}
