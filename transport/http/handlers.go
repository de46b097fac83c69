package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/service"
)

// Handlers contains the HTTP handlers of the API
type Handlers struct {
	authService    *service.AuthService
	balanceService *service.BalanceService
	log            *slog.Logger
}

// NewHandlers creates new handlers
func NewHandlers(authService *service.AuthService, balanceService *service.BalanceService, log *slog.Logger) *Handlers {
	return &Handlers{
		authService:    authService,
		balanceService: balanceService,
		log:            log,
	}
}

// Nonce issues a challenge for the address query parameter
func (h *Handlers) Nonce(c *gin.Context) {
	issued, err := h.authService.RequestChallenge(c.Request.Context(), c.Query("address"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, NonceResponse{
		Address:   issued.Challenge.Address.Hex(),
		Nonce:     issued.Challenge.Nonce,
		Message:   issued.Message,
		IssuedAt:  issued.Challenge.IssuedAt,
		ExpiresAt: issued.Challenge.ExpiresAt,
	})
}

// Verify exchanges a signed challenge for a session credential
func (h *Handlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msgAuthFailed})
		return
	}

	credential, session, err := h.authService.SubmitProof(c.Request.Context(), req.Address, req.Signature, req.Message)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, CredentialResponse{
		Credential: credential,
		TokenType:  "Bearer",
		Address:    session.Address.Hex(),
		ExpiresAt:  session.ExpiresAt,
	})
}

// Logout revokes the presented credential
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.authService.Disconnect(c.Request.Context(), credential(c)); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Balances returns the balances of the authenticated address
func (h *Handlers) Balances(c *gin.Context) {
	balances, err := h.balanceService.GetBalances(c.Request.Context(), credential(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := BalancesResponse{
		Address:  balances.Address.Hex(),
		Balances: make(map[string]BalanceEntry, len(balances.Records)),
	}
	for symbol, record := range balances.Records {
		resp.Balances[symbol] = BalanceEntry{
			Raw:      record.Raw.String(),
			Decimals: record.Decimals,
			Display:  record.Display,
		}
	}
	if len(balances.Errors) > 0 {
		resp.Errors = make(map[string]string, len(balances.Errors))
		for symbol := range balances.Errors {
			resp.Errors[symbol] = msgUpstream
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the session of the authenticated address
func (h *Handlers) Me(c *gin.Context) {
	session, err := h.balanceService.Whoami(c.Request.Context(), credential(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		Address:   session.Address.Hex(),
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
	})
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
