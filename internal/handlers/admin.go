package handlers

import (
	"errors"
	"log"

	"yawatu/internal/models"
	"yawatu/internal/repositories"
	"yawatu/internal/services/engine"
	"yawatu/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes the manual-approval queue and operational controls.
type AdminHandler struct {
	engine engine.Service
	repo   repositories.LedgerRepository
}

func NewAdminHandler(engineService engine.Service, repo repositories.LedgerRepository) *AdminHandler {
	return &AdminHandler{
		engine: engineService,
		repo:   repo,
	}
}

func (h *AdminHandler) ApproveTransaction(c *fiber.Ctx) error {
	tx, err := h.engine.Approve(c.Context(), c.Params("id"))
	return h.respondDecision(c, tx, err)
}

func (h *AdminHandler) RejectTransaction(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	tx, err := h.engine.Reject(c.Context(), c.Params("id"), input.Reason)
	return h.respondDecision(c, tx, err)
}

// ReconcileTransaction forces an immediate status poll for a single
// transaction, ahead of the background sweep.
func (h *AdminHandler) ReconcileTransaction(c *fiber.Ctx) error {
	tx, err := h.engine.Reconcile(c.Context(), c.Params("id"))
	return h.respondDecision(c, tx, err)
}

func (h *AdminHandler) SuspendWallet(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	return h.setWalletStatus(c, models.WalletStatusSuspended, input.Reason)
}

func (h *AdminHandler) ReinstateWallet(c *fiber.Ctx) error {
	return h.setWalletStatus(c, models.WalletStatusActive, "")
}

func (h *AdminHandler) setWalletStatus(c *fiber.Ctx, status, reason string) error {
	walletID, err := c.ParamsInt("id")
	if err != nil || walletID < 1 {
		return utils.BadRequest(c, "Invalid wallet id")
	}

	wallet, err := h.repo.GetWallet(uint(walletID))
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to get wallet")
	}

	wallet.Status = status
	wallet.StatusReason = reason
	if err := h.repo.UpdateWallet(wallet); err != nil {
		return utils.InternalError(c, "Failed to update wallet")
	}

	return utils.Success(c, fiber.Map{"wallet": wallet})
}

func (h *AdminHandler) respondDecision(c *fiber.Ctx, tx *models.Transaction, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTransactionNotFound):
			return utils.NotFound(c, "Transaction not found")
		case errors.Is(err, engine.ErrInvalidState):
			return utils.Conflict(c, err.Error())
		case errors.Is(err, engine.ErrGatewayRejected), errors.Is(err, engine.ErrGatewayConfig):
			return utils.Respond(c, fiber.StatusBadGateway, fiber.Map{
				"error":       "Payment provider rejected the request",
				"transaction": tx,
			})
		default:
			log.Printf("admin handler: %v", err)
			return utils.InternalError(c, "Failed to process request")
		}
	}
	return utils.Success(c, fiber.Map{"transaction": tx})
}
