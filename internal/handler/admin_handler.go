package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mokanichokani/ledger-service/internal/middleware"
	"github.com/mokanichokani/ledger-service/internal/utils"
)

// SuspectManager exposes the quarantine state of the ledger engine.
type SuspectManager interface {
	SuspectAccounts() []string
	ClearSuspect(accountNumber string)
}

// AdminHandler serves the operator surface: inspecting and lifting account
// quarantines after an invariant violation has been remediated by hand.
type AdminHandler struct {
	engine SuspectManager
}

type SuspectAccountsResponse struct {
	SuspectAccounts []string `json:"suspectAccounts"`
}

func NewAdminHandler(engine SuspectManager) *AdminHandler {
	return &AdminHandler{engine: engine}
}

func (h *AdminHandler) ListSuspectAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, SuspectAccountsResponse{SuspectAccounts: h.engine.SuspectAccounts()})
}

func (h *AdminHandler) ClearSuspectAccount(c *gin.Context) {
	accountNumber := c.Param("accountNumber")
	if !utils.ValidateAccountNumber(accountNumber) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid account number format")
		return
	}
	h.engine.ClearSuspect(accountNumber)
	c.JSON(http.StatusOK, gin.H{"message": "Quarantine cleared", "accountNumber": accountNumber})
}
