package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/service"
	ws "github.com/wfunc/initiative-tracker/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler push subscriptions
type WebSocketHandler struct {
	hub       *ws.Hub
	campaigns service.CampaignService
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, campaigns service.CampaignService, cfg config.WebSocketConfig, trustedOrigins []string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		campaigns: campaigns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin(trustedOrigins),
		},
		logger: log,
	}
}

// checkOrigin allows same-host and trusted origins. Non-browser clients send
// no Origin.
func checkOrigin(trusted []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if u.Host == r.Host {
			return true
		}
		for _, host := range trusted {
			if host == u.Host {
				return true
			}
		}
		return false
	}
}

// Subscribe upgrades to a push channel for one campaign. Members only.
// @Summary Initiative push channel
// @Tags Initiative
// @Param campaign_id query int true "campaign id"
// @Param token query string false "access token"
// @Router /api/v1/ws [get]
func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Query("campaign_id"), 10, 64)
	if err != nil || campaignID == 0 {
		badRequest(c, "Invalid campaign_id.")
		return
	}
	userID := currentUser(c)

	member, err := h.campaigns.IsCampaignMember(c.Request.Context(), uint(campaignID), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if !member {
		fail(c, errors.New(errors.ErrPermissionDenied, "You are not a member of this campaign."))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID, uint(campaignID))
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}
