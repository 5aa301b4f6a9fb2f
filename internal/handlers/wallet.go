package handlers

import (
	"errors"

	"yawatu/internal/models"
	"yawatu/internal/repositories"
	"yawatu/internal/services/ledger"
	"yawatu/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const defaultCurrency = "UGX"

type WalletHandler struct {
	ledgerService ledger.Service
}

func NewWalletHandler(ledgerService ledger.Service) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
	}
}

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func currencyParam(c *fiber.Ctx) string {
	if cur := c.Query("currency"); cur != "" {
		return cur
	}
	return defaultCurrency
}

func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Currency string `json:"currency" validate:"required,len=3"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	wallet, err := h.ledgerService.CreateWallet(c.Context(), claims.UserID, input.Currency)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			return utils.Conflict(c, "Wallet already exists for this currency")
		}
		return utils.InternalError(c, "Failed to create wallet")
	}

	return utils.Created(c, fiber.Map{
		"wallet": wallet,
	})
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallet, err := h.ledgerService.GetWallet(c.Context(), claims.UserID, currencyParam(c))
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to get wallet")
	}

	return utils.Success(c, fiber.Map{
		"wallet": wallet,
	})
}

func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallet, err := h.ledgerService.GetWallet(c.Context(), claims.UserID, currencyParam(c))
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to get balance")
	}

	return utils.Success(c, fiber.Map{
		"currency": wallet.Currency,
		"balance":  wallet.Balance,
	})
}
