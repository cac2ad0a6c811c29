package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eaglebank/authorization-service/shared/cqrs"
	"github.com/eaglebank/authorization-service/shared/middleware"
	"github.com/eaglebank/authorization-service/shared/models"
	"github.com/gin-gonic/gin"
)

// AuthorizationCommander defines the write-side operations used by AuthorizationHandler.
type AuthorizationCommander interface {
	GrantAccess(context.Context, cqrs.GrantAccessCommand) error
}

// PermissionQuerier defines the read-side operations used by AuthorizationHandler.
type PermissionQuerier interface {
	ListPermittedAccounts(context.Context, cqrs.ListPermittedAccountsQuery) ([]models.AccountSnapshot, error)
}

// AuthorizationHandler handles grant and permitted-account HTTP requests.
type AuthorizationHandler struct {
	commands AuthorizationCommander
	queries  PermissionQuerier
}

type GrantAccessRequest struct {
	GrantorName   string `json:"grantorName" validate:"required,max=255"`
	GranteeName   string `json:"granteeName" validate:"required,max=255"`
	AccountNumber string `json:"accountNumber" validate:"required,max=64"`
	Access        string `json:"access" validate:"required,oneof=READ WRITE"`
}

type ListPermittedAccountsRequest struct {
	UserName string `form:"userName" validate:"required,max=255"`
}

func NewAuthorizationHandler(commands AuthorizationCommander, queries PermissionQuerier) *AuthorizationHandler {
	return &AuthorizationHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the grant and permitted-account endpoints on rg.
func (h *AuthorizationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	authz := rg.Group("/authorizations")
	{
		authz.POST("/payment-accounts", h.GrantAccess(models.SubtypePayment))
		authz.POST("/savings-accounts", h.GrantAccess(models.SubtypeSavings))
	}

	users := rg.Group("/users")
	{
		users.GET("/read-permitted/payment-accounts", h.ListPermittedAccounts(models.AccessRead, models.SubtypePayment))
		users.GET("/read-permitted/savings-accounts", h.ListPermittedAccounts(models.AccessRead, models.SubtypeSavings))
		users.GET("/write-permitted/payment-accounts", h.ListPermittedAccounts(models.AccessWrite, models.SubtypePayment))
		users.GET("/write-permitted/savings-accounts", h.ListPermittedAccounts(models.AccessWrite, models.SubtypeSavings))
	}
}

// GrantAccess returns the handler for one grant endpoint. The endpoint, not
// the payload, decides the subtype stamped on the snapshot.
func (h *AuthorizationHandler) GrantAccess(subtype models.AccountSubtype) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
			middleware.RespondWithValidationError(c, validationErrors)
			return
		}

		err := h.commands.GrantAccess(c.Request.Context(), cqrs.GrantAccessCommand{
			GrantorName:    req.GrantorName,
			GranteeName:    req.GranteeName,
			AccountNumber:  req.AccountNumber,
			AccountSubtype: subtype,
			Access:         models.AccessLevel(req.Access),
		})
		if err != nil {
			respondWithServiceError(c, err, "Failed to grant access")
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// ListPermittedAccounts returns the handler for one of the four
// {read,write} x {payment,savings} listing endpoints.
func (h *AuthorizationHandler) ListPermittedAccounts(access models.AccessLevel, subtype models.AccountSubtype) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPermittedAccountsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters")
			return
		}
		if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
			middleware.RespondWithValidationError(c, validationErrors)
			return
		}

		snapshots, err := h.queries.ListPermittedAccounts(c.Request.Context(), cqrs.ListPermittedAccountsQuery{
			UserName:       req.UserName,
			Access:         access,
			AccountSubtype: subtype,
		})
		if err != nil {
			respondWithServiceError(c, err, "Failed to list permitted accounts")
			return
		}

		views := make([]models.PermittedAccountView, len(snapshots))
		for i, s := range snapshots {
			views[i] = models.SnapshotToView(s)
		}
		c.JSON(http.StatusOK, views)
	}
}

func respondWithServiceError(c *gin.Context, err error, fallback string) {
	var (
		notFound *models.NotFoundError
		invalid  *models.InvalidRequestError
		conflict *models.ConflictError
	)
	switch {
	case errors.As(err, &notFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User does not exist")
	case errors.As(err, &invalid):
		middleware.RespondWithError(c, http.StatusBadRequest, invalid.Message)
	case errors.As(err, &conflict):
		middleware.RespondWithError(c, http.StatusConflict, "The user was modified concurrently, please retry")
	default:
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
