package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/service"
)

// CampaignHandler campaigns and membership
type CampaignHandler struct {
	campaigns  service.CampaignService
	characters service.CharacterService
}

func NewCampaignHandler(campaigns service.CampaignService, characters service.CharacterService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, characters: characters}
}

// List campaigns the user runs or plays in.
// @Summary My campaigns
// @Tags Campaigns
// @Produce json
// @Security Bearer
// @Param page query int false "page"
// @Param page_size query int false "page size"
// @Success 200 {object} Response
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	campaigns, pagination, err := h.campaigns.ListForUser(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"campaigns": campaigns, "pagination": pagination})
}

// Create a campaign run by the caller.
// @Summary Create campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body service.CreateCampaignRequest true "campaign"
// @Success 201 {object} Response{data=models.Campaign}
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.GameMasterID = currentUser(c)

	campaign, err := h.campaigns.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, campaign)
}

type joinRequest struct {
	JoinCode string `json:"join_code" binding:"required"`
}

// Join a campaign by its code.
// @Summary Join campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security Bearer
// @Router /api/v1/campaigns/join [post]
func (h *CampaignHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	campaign, err := h.campaigns.Join(c.Request.Context(), req.JoinCode, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Joined campaign.", campaign)
}

func (h *CampaignHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	details, err := h.campaigns.Get(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, details)
}

func (h *CampaignHandler) Archive(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.campaigns.Archive(c.Request.Context(), id, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Campaign archived.", nil)
}

// ListCharacters active sheets of the campaign.
// @Summary Campaign characters
// @Tags Characters
// @Produce json
// @Security Bearer
// @Router /api/v1/campaigns/{id}/characters [get]
func (h *CampaignHandler) ListCharacters(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	characters, err := h.characters.ListForCampaign(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, characters)
}

// CreateCharacter adds a sheet to the campaign for the caller.
// @Summary Create character
// @Tags Characters
// @Accept json
// @Produce json
// @Security Bearer
// @Router /api/v1/campaigns/{id}/characters [post]
func (h *CampaignHandler) CreateCharacter(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req service.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserID = currentUser(c)
	req.CampaignID = &id

	character, err := h.characters.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, character)
}

func (h *CampaignHandler) DeleteCharacter(c *gin.Context) {
	id, valid := idParam(c, "characterId")
	if !valid {
		return
	}
	if err := h.characters.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	okMessage(c, "Character deleted.", nil)
}
