package handlers

import (
	"errors"
	"log"

	"yawatu/internal/models"
	"yawatu/internal/repositories"
	"yawatu/internal/services/engine"
	"yawatu/internal/services/gateway"
	"yawatu/internal/services/limits"
	"yawatu/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	engine engine.Service
}

func NewTransactionHandler(engineService engine.Service) *TransactionHandler {
	return &TransactionHandler{
		engine: engineService,
	}
}

type moneyMovementInput struct {
	Currency    string `json:"currency" validate:"required,len=3"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Phone       string `json:"phone" validate:"required"`
	Operator    string `json:"operator"`
	Description string `json:"description"`
}

func (h *TransactionHandler) Deposit(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input moneyMovementInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	tx, err := h.engine.Deposit(c.Context(), engine.DepositRequest{
		UserID:      claims.UserID,
		AccountType: claims.AccountType,
		Currency:    input.Currency,
		Amount:      input.Amount,
		Phone:       input.Phone,
		Operator:    input.Operator,
		Description: input.Description,
	})
	return h.respondMovement(c, tx, err)
}

func (h *TransactionHandler) Withdraw(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input moneyMovementInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	tx, err := h.engine.Withdraw(c.Context(), engine.WithdrawRequest{
		UserID:      claims.UserID,
		AccountType: claims.AccountType,
		Currency:    input.Currency,
		Amount:      input.Amount,
		Phone:       input.Phone,
		Operator:    input.Operator,
		Description: input.Description,
	})
	return h.respondMovement(c, tx, err)
}

func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		ToUserID    uint   `json:"to_user_id" validate:"required"`
		Currency    string `json:"currency" validate:"required,len=3"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	tx, err := h.engine.Transfer(c.Context(), engine.TransferRequest{
		FromUserID:  claims.UserID,
		ToUserID:    input.ToUserID,
		AccountType: claims.AccountType,
		Currency:    input.Currency,
		Amount:      input.Amount,
		Description: input.Description,
	})
	return h.respondMovement(c, tx, err)
}

func (h *TransactionHandler) ConfirmStepUp(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Code string `json:"code" validate:"required,len=6"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	id := c.Params("id")
	tx, err := h.engine.GetTransaction(c.Context(), id)
	if err != nil {
		return utils.NotFound(c, "Transaction not found")
	}
	if tx.UserID != claims.UserID {
		return utils.Forbidden(c, "Access denied")
	}

	tx, err = h.engine.ConfirmStepUp(c.Context(), id, input.Code)
	return h.respondMovement(c, tx, err)
}

// Reconcile lets the owner force an immediate status poll instead of waiting
// for the background sweep.
func (h *TransactionHandler) Reconcile(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	id := c.Params("id")
	tx, err := h.engine.GetTransaction(c.Context(), id)
	if err != nil {
		return utils.NotFound(c, "Transaction not found")
	}
	if tx.UserID != claims.UserID {
		return utils.Forbidden(c, "Access denied")
	}

	tx, err = h.engine.Reconcile(c.Context(), id)
	return h.respondMovement(c, tx, err)
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	tx, err := h.engine.GetTransaction(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return utils.NotFound(c, "Transaction not found")
		}
		return utils.InternalError(c, "Failed to get transaction")
	}
	if tx.UserID != claims.UserID && claims.Role != "admin" {
		return utils.Forbidden(c, "Access denied")
	}

	return utils.Success(c, fiber.Map{"transaction": tx})
}

func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := h.engine.ListTransactions(c.Context(), claims.UserID, limit, offset)
	if err != nil {
		return utils.InternalError(c, "Failed to list transactions")
	}

	return utils.Success(c, fiber.Map{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// respondMovement translates engine outcomes to HTTP. Friction outcomes
// (step-up, pending approval, awaiting gateway) are not errors: the caller
// gets the transaction and reads its status.
func (h *TransactionHandler) respondMovement(c *fiber.Ctx, tx *models.Transaction, err error) error {
	if err != nil {
		var limitErr *limits.LimitError
		switch {
		case errors.As(err, &limitErr):
			return utils.Respond(c, fiber.StatusUnprocessableEntity, fiber.Map{
				"error":       "Transaction limit exceeded",
				"window":      limitErr.Window,
				"limit":       limitErr.Limit,
				"transaction": tx,
			})
		case errors.Is(err, engine.ErrRiskBlocked):
			return utils.Respond(c, fiber.StatusForbidden, fiber.Map{
				"error":       "Transaction blocked",
				"transaction": tx,
			})
		case errors.Is(err, engine.ErrInvalidAmount),
			errors.Is(err, engine.ErrSelfTransfer),
			errors.Is(err, gateway.ErrInvalidPhone),
			errors.Is(err, gateway.ErrUnknownCurrency),
			errors.Is(err, engine.ErrInvalidStepUpCode),
			errors.Is(err, engine.ErrStepUpExpired):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, engine.ErrDuplicateReference),
			errors.Is(err, engine.ErrInvalidState):
			return utils.Conflict(c, err.Error())
		case errors.Is(err, repositories.ErrWalletNotFound):
			return utils.NotFound(c, "Wallet not found")
		case errors.Is(err, repositories.ErrInsufficientFunds):
			return utils.UnprocessableEntity(c, "Insufficient funds")
		case errors.Is(err, repositories.ErrWalletSuspended):
			return utils.Forbidden(c, "Wallet is suspended")
		case errors.Is(err, engine.ErrGatewayRejected), errors.Is(err, engine.ErrGatewayConfig):
			return utils.Respond(c, fiber.StatusBadGateway, fiber.Map{
				"error":       "Payment provider rejected the request",
				"transaction": tx,
			})
		default:
			log.Printf("transaction handler: %v", err)
			return utils.InternalError(c, "Failed to process transaction")
		}
	}

	if tx != nil && !tx.Terminal() {
		return utils.Accepted(c, fiber.Map{"transaction": tx})
	}
	return utils.Success(c, fiber.Map{"transaction": tx})
}
