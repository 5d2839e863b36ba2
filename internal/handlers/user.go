package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/carefully-app/carefully-backend/internal/requestdata"
	"github.com/carefully-app/carefully-backend/internal/services"
)

const maxAvatarUploadBytes = 5 << 20

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/user
func (uh *UserHandler) GetMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	user, err := uh.userService.GetByID(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

// GET /api/user/stats
func (uh *UserHandler) GetStats(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	stats, err := uh.userService.GetStats(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}

// POST /api/user/avatar
func (uh *UserHandler) UpdateAvatar(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, 401, "unauthorized", errors.New("missing request context"))
		return
	}
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		RespondError(c, 400, "bad_body", errors.New("missing avatar file"))
		return
	}
	if fileHeader.Size > maxAvatarUploadBytes {
		RespondError(c, 400, "file_too_large", errors.New("avatar file exceeds 5MB"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, 400, "bad_body", errors.New("could not open avatar file"))
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, 400, "bad_body", errors.New("could not read avatar file"))
		return
	}
	user, err := uh.userService.UpdateAvatarFromImage(c.Request.Context(), rd.UserID, raw)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}
