// Package profile lets users view and edit their own account.
// Fields filled from Google are read only for linked accounts, and so is the password.
package profile

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/identity"
	"github.com/wslogin/google-auth/internal/web/handler"
)

const (
	// Path is the path to the profile page.
	Path = handler.RootPath + "profile"

	// TemplateName is the name of the profile template.
	TemplateName = "profile"
)

var (
	// ErrPasswordLocked is shown when a linked account tries to change its password.
	ErrPasswordLocked = errors.New("password changes are disabled for accounts linked to Google")

	// ErrPasswordMismatch is shown when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Form is the profile form.
type Form struct {
	FirstName       string `form:"first_name" validate:"max=100"`
	LastName        string `form:"last_name" validate:"max=100"`
	DisplayName     string `form:"display_name" validate:"max=255"`
	Email           string `form:"email" validate:"omitempty,email"`
	Password        string `form:"password" validate:"omitempty,min=8"`
	PasswordConfirm string `form:"password_confirm"`
}

// Service is the profile handler service.
type Service struct {
	cfg       *config.Config
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the profile handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the profile handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg
	s.deps = deps
	s.validator = validator.New()

	app.Get(Path, s.Get)
	app.Post(Path, s.Post)

	return nil
}

// Get renders the profile of the current user.
func (s *Service) Get(c *fiber.Ctx) error {
	user, meta, err := s.load(c)
	if err != nil {
		return err
	}

	return c.Render(TemplateName, s.data(user, meta), handler.BaseLayout)
}

// Post stores the editable profile fields.
func (s *Service) Post(c *fiber.Ctx) error {
	user, meta, err := s.load(c)
	if err != nil {
		return err
	}

	form := new(Form)
	if err = c.BodyParser(form); err != nil {
		return s.renderError(c, fiber.StatusBadRequest, user, meta, "Invalid form data")
	}

	if err = s.validator.Struct(form); err != nil {
		var validationErrors validator.ValidationErrors
		errors.As(err, &validationErrors)

		messages := make([]string, len(validationErrors))
		for i, ve := range validationErrors {
			messages[i] = "Field '" + ve.Field() + "' failed validation tag '" + ve.Tag() + "'"
		}

		return s.renderError(c, fiber.StatusBadRequest, user, meta, messages...)
	}

	if form.Password != "" {
		switch {
		case !identity.AllowPasswordReset(meta):
			return s.renderError(c, fiber.StatusForbidden, user, meta, ErrPasswordLocked.Error())
		case form.Password != form.PasswordConfirm:
			return s.renderError(c, fiber.StatusBadRequest, user, meta, ErrPasswordMismatch.Error())
		}
	}

	ctx := c.UserContext()

	applyForm(user, meta, form)

	if err = s.deps.Accounts.UpdateProfile(ctx, user); err != nil {
		log.Error().Err(err).Uint64("user", user.ID).Msg("failed to update profile")

		return s.renderError(c, fiber.StatusInternalServerError, user, meta, "Failed to save profile")
	}

	if form.Email != "" && !identity.IsLocked(meta, identity.FieldEmail) && form.Email != user.Email {
		if err = s.deps.Accounts.UpdateEmail(ctx, user.ID, form.Email); err != nil {
			log.Error().Err(err).Uint64("user", user.ID).Msg("failed to update email")

			return s.renderError(c, fiber.StatusInternalServerError, user, meta, "Failed to save profile")
		}
	}

	if form.Password != "" {
		if err = s.deps.Accounts.SetPassword(ctx, user.ID, form.Password); err != nil {
			log.Error().Err(err).Uint64("user", user.ID).Msg("failed to set password")

			return s.renderError(c, fiber.StatusInternalServerError, user, meta, "Failed to save profile")
		}
	}

	if user, err = s.deps.Accounts.FindByID(ctx, user.ID); err != nil {
		return fiber.ErrInternalServerError
	}

	data := s.data(user, meta)
	data["Success"] = "Profile saved"

	return c.Render(TemplateName, data, handler.BaseLayout)
}

// applyForm copies the fields the account may edit.
func applyForm(user *models.User, meta models.Meta, form *Form) {
	if !identity.IsLocked(meta, identity.FieldFirstName) {
		user.FirstName = form.FirstName
	}

	if !identity.IsLocked(meta, identity.FieldLastName) {
		user.LastName = form.LastName
	}

	user.DisplayName = form.DisplayName
}

func (s *Service) load(c *fiber.Ctx) (*models.User, models.Meta, error) {
	current, ok := handler.CurrentUser(c)
	if !ok {
		return nil, nil, fiber.ErrUnauthorized
	}

	ctx := c.UserContext()

	user, err := s.deps.Accounts.FindByID(ctx, current.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user", current.ID).Msg("failed to load user")

		return nil, nil, fiber.ErrInternalServerError
	}

	meta, err := s.deps.Mapper.Meta(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user", user.ID).Msg("failed to load user meta")

		return nil, nil, fiber.ErrInternalServerError
	}

	return user, meta, nil
}

func (s *Service) data(user *models.User, meta models.Meta) fiber.Map {
	locked := make(map[string]bool)
	for _, f := range identity.LockedFields(meta) {
		locked[f] = true
	}

	return fiber.Map{
		"Title":         s.cfg.Title,
		"CurrentUser":   user,
		"Picture":       meta[models.MetaPicture],
		"GoogleLinked":  meta.GoogleLinked(),
		"Locked":        locked,
		"AllowPassword": identity.AllowPasswordReset(meta),
		"Roles":         user.RoleKeys(),
	}
}

func (s *Service) renderError(c *fiber.Ctx, status int, user *models.User, meta models.Meta, messages ...string) error {
	data := s.data(user, meta)
	data["Error"] = messages

	return c.Status(status).Render(TemplateName, data, handler.BaseLayout)
}
