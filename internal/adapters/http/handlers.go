package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/auth"
	"github.com/talkrooms/talkrooms/internal/config"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/store"
)

type handlers struct {
	store  *store.Store
	tokens *auth.Tokens
	cfg    *config.Config
}

func (h *handlers) setAccessCookie(c *gin.Context, token string) {
	secure := h.cfg.Mode == "release"
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(auth.CookieName, token, int(h.tokens.TTL().Seconds()), "/", "", secure, true)
}

func (h *handlers) register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	user, err := h.store.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameTaken), errors.Is(err, store.ErrEmailTaken),
			errors.Is(err, domain.ErrUsernameInvalid), errors.Is(err, domain.ErrEmailInvalid),
			errors.Is(err, domain.ErrPasswordTooWeak):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			log.Error().Err(err).Str("module", "adapters.http").Msg("register")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		}
		return
	}

	tok, err := h.tokens.Sign(user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		return
	}
	h.setAccessCookie(c, tok)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *handlers) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	user, err := h.store.VerifyUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	tok, err := h.tokens.Sign(user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}
	h.setAccessCookie(c, tok)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *handlers) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cfg.Mode == "release", true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *handlers) me(c *gin.Context) {
	user, err := h.store.UserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, currentUser(c))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNameInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Room name is required"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create room"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

func (h *handlers) myRooms(c *gin.Context) {
	rooms, err := h.store.RoomsByHost(c.Request.Context(), currentUser(c))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not list rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *handlers) roomByCode(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))
	room, err := h.store.RoomByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Room not found"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("room by code")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *handlers) roomMessages(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))
	room, err := h.store.RoomByCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Room not found"})
		return
	}
	msgs, err := h.store.MessagesByRoom(c.Request.Context(), room.ID, 100)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("room messages")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *handlers) renameRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("code"))
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	room, err := h.store.RenameRoom(c.Request.Context(), id, currentUser(c), req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Room not found or unauthorized"})
			return
		}
		if errors.Is(err, domain.ErrRoomNameInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Room name is required"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("rename room")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *handlers) deleteRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("code"))
	if err := h.store.DeleteRoom(c.Request.Context(), id, currentUser(c)); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Room not found or unauthorized"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("delete room")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not delete room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted successfully"})
}

// webrtcConfig hands clients the ICE servers to dial peers with. The
// server itself never joins the media path.
func (h *handlers) webrtcConfig(c *gin.Context) {
	servers := make([]webrtc.ICEServer, 0, len(h.cfg.STUNServers))
	for _, u := range h.cfg.STUNServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	c.JSON(http.StatusOK, webrtc.Configuration{ICEServers: servers})
}
