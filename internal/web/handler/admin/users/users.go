// Package users lists accounts and lets administrators change role grants.
// Role grants of Google linked accounts follow the email patterns and can't be edited.
package users

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/identity"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/middleware/auth"
)

const (
	// Path is the user list page.
	Path = handler.RootPath + "admin/users"

	// APIPath is the base of the json api.
	APIPath = handler.RootPath + "api/admin/users"

	// TemplateName is the name of the user list template.
	TemplateName = "admin/users"
)

// Account is one row of the user list.
type Account struct {
	ID           uint64   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	Active       bool     `json:"active"`
	AuthSource   string   `json:"auth_source"`
	Roles        []string `json:"roles"`
	GoogleLinked bool     `json:"google_linked"`
	Picture      string   `json:"picture,omitempty"`
}

// RolesRequest replaces the roles of an account.
type RolesRequest struct {
	Roles []string `json:"roles"`
}

// Service is the user management handler service.
type Service struct {
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the user management handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg
	s.deps = deps

	admin := auth.RequireRole(models.RoleAdministrator)

	app.Get(Path, admin, s.Page)

	api := app.Group(APIPath, admin)
	api.Get("", s.List)
	api.Put("/:id/roles", s.PutRoles)

	return nil
}

// Page renders the user list.
func (s *Service) Page(c *fiber.Ctx) error {
	accounts, err := s.accounts(c)
	if err != nil {
		return err
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":    s.cfg.Title,
		"Accounts": accounts,
	}, handler.BaseLayout)
}

// List returns all accounts as json.
func (s *Service) List(c *fiber.Ctx) error {
	accounts, err := s.accounts(c)
	if err != nil {
		return err
	}

	return c.JSON(accounts)
}

// PutRoles replaces the role grants of a local account.
func (s *Service) PutRoles(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	req := new(RolesRequest)
	if err = c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid roles")
	}

	ctx := c.UserContext()

	user, err := s.deps.Accounts.FindByID(ctx, id)
	if errors.Is(err, identity.ErrAccountNotFound) {
		return fiber.ErrNotFound
	}

	if err != nil {
		log.Error().Err(err).Uint64("user", id).Msg("failed to load user")

		return fiber.ErrInternalServerError
	}

	meta, err := s.deps.Mapper.Meta(ctx, id)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if identity.IsLocked(meta, identity.FieldRole) {
		return fiber.NewError(fiber.StatusConflict, "roles of accounts linked to Google follow the email patterns")
	}

	if err = s.deps.Mapper.AssignRoles(ctx, user, req.Roles); err != nil {
		log.Error().Err(err).Uint64("user", id).Msg("failed to assign roles")

		return fiber.ErrInternalServerError
	}

	if user, err = s.deps.Accounts.FindByID(ctx, id); err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(toAccount(*user, meta))
}

func (s *Service) accounts(c *fiber.Ctx) ([]Account, error) {
	ctx := c.UserContext()

	list, err := s.deps.Accounts.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")

		return nil, fiber.ErrInternalServerError
	}

	accounts := make([]Account, 0, len(list))

	for _, u := range list {
		meta, err := s.deps.Mapper.Meta(ctx, u.ID)
		if err != nil {
			return nil, fiber.ErrInternalServerError
		}

		accounts = append(accounts, toAccount(u, meta))
	}

	return accounts, nil
}

func toAccount(u models.User, meta models.Meta) Account {
	return Account{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Active:       u.Active,
		AuthSource:   string(u.AuthSource),
		Roles:        u.RoleKeys(),
		GoogleLinked: meta.GoogleLinked(),
		Picture:      meta[models.MetaPicture],
	}
}
