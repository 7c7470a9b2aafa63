package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/initiative"
)

// InitiativeHandler turn order endpoints. All rules live in the manager;
// the handler only decodes requests and supplies the actor.
type InitiativeHandler struct {
	manager *initiative.Manager
}

func NewInitiativeHandler(manager *initiative.Manager) *InitiativeHandler {
	return &InitiativeHandler{manager: manager}
}

// Status returns the campaign's current turn order.
// @Summary Initiative status
// @Tags Initiative
// @Produce json
// @Security Bearer
// @Param id path int true "campaign id"
// @Success 200 {object} Response{data=initiative.Status}
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/campaigns/{id}/initiative [get]
func (h *InitiativeHandler) Status(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, err := h.manager.GetStatus(c.Request.Context(), campaignID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, status)
}

// Start opens a session. GM only.
// @Summary Start initiative
// @Tags Initiative
// @Produce json
// @Security Bearer
// @Param id path int true "campaign id"
// @Success 200 {object} Response
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/campaigns/{id}/initiative/start [post]
func (h *InitiativeHandler) Start(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	sessionID, err := h.manager.Start(c.Request.Context(), campaignID, actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Initiative started.", gin.H{"session_id": sessionID})
}

// End closes the active session. GM only.
// @Summary End initiative
// @Tags Initiative
// @Security Bearer
// @Param id path int true "campaign id"
// @Router /api/v1/campaigns/{id}/initiative/end [post]
func (h *InitiativeHandler) End(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.manager.End(c.Request.Context(), campaignID, actor(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Initiative ended.", nil)
}

// Next advances the turn cursor. GM only.
// @Summary Next turn
// @Tags Initiative
// @Security Bearer
// @Param id path int true "campaign id"
// @Success 200 {object} Response{data=initiative.TurnResult}
// @Router /api/v1/campaigns/{id}/initiative/next [post]
func (h *InitiativeHandler) Next(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	turn, err := h.manager.NextTurn(c.Request.Context(), campaignID, actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, turn)
}

// AddEntries adds combatants to a session. Bad items are skipped and listed
// in the result.
// @Summary Add entries
// @Tags Initiative
// @Accept json
// @Produce json
// @Security Bearer
// @Param sessionId path int true "session id"
// @Success 200 {object} Response{data=initiative.AddResult}
// @Router /api/v1/initiative/sessions/{sessionId}/entries [post]
func (h *InitiativeHandler) AddEntries(c *gin.Context) {
	sessionID, valid := idParam(c, "sessionId")
	if !valid {
		return
	}
	var req addEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.manager.AddEntries(c.Request.Context(), sessionID, actor(c), decodeEntries(req.Entries))
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Added to initiative.", result)
}

// RemoveEntry drops one combatant. GM or the character's owner.
// @Summary Remove entry
// @Tags Initiative
// @Security Bearer
// @Param id path int true "campaign id"
// @Param entryId path int true "entry id"
// @Router /api/v1/campaigns/{id}/initiative/entries/{entryId} [delete]
func (h *InitiativeHandler) RemoveEntry(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	entryID, valid := idParam(c, "entryId")
	if !valid {
		return
	}
	if err := h.manager.RemoveEntry(c.Request.Context(), campaignID, entryID, actor(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Removed from initiative.", nil)
}

// History lists past and present sessions of the campaign.
// @Summary Session history
// @Tags Initiative
// @Security Bearer
// @Param id path int true "campaign id"
// @Router /api/v1/campaigns/{id}/initiative/sessions [get]
func (h *InitiativeHandler) History(c *gin.Context) {
	campaignID, valid := idParam(c, "id")
	if !valid {
		return
	}
	page, pageSize := pageParams(c)
	history, err := h.manager.History(c.Request.Context(), campaignID, currentUser(c), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, history)
}
